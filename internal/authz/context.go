package authz

import "context"

type actorKey struct{}

// ContextWithActor records the actor performing a permission change. The
// Service sets it on the context handed to the Notifier.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor recorded by ContextWithActor.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
