// Package engine implements the transaction coordinator of the fact store.
//
// Every mutation goes through Engine.Commit, which runs these steps while
// holding the engine's commit lock:
//
//  1. Normalize the change-set: facts on both sides cancel, Nil objects are
//     stripped from the add side.
//  2. Materialize inverse facts (lifecycle.Infer).
//  3. Validate each graph's share with that graph's chain. Any violation
//     aborts the commit before anything is written.
//  4. Reduce the change to the facts that actually change state. An empty
//     reduction is a no-op: nothing is written or logged.
//  5. Apply the change and the lifecycle records in one store transaction.
//  6. Register newly created protected resources.
//  7. Append the change to the transaction log. If the append fails the
//     store write is compensated and the commit has no effect.
//  8. Mirror the change into the search index.
//  9. Hand commit events to the outbound channel.
//
// Once step 5 begins the commit runs to completion regardless of caller
// cancellation.
//
// Engine errors:
//   - validation.ValidationError: the change was rejected; nothing happened.
//   - StoreError: the store write failed; nothing was logged or indexed.
//   - LogError: the log append failed; the store write was undone.
//   - search.IndexError: the index could not be updated under the required
//     policy. The commit is durable but the process should stop.
//   - events.DeliveryError: the commit is durable but its events were not
//     delivered under the required policy.
package engine
