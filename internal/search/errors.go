package search

import (
	"errors"
	"fmt"
)

// ErrCodeIndexBatchFailed identifies an IndexError.
const ErrCodeIndexBatchFailed = "INDEX_BATCH_FAILED"

// IndexError reports a batch the engine rejected while indexing is required.
// The store and index can no longer be assumed consistent; callers should
// treat it as fatal.
type IndexError struct {
	Batch int
	Size  int
	Err   error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s: batch %d (%d operations): %v", ErrCodeIndexBatchFailed, e.Batch, e.Size, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// IsIndexError returns true if err is an IndexError.
func IsIndexError(err error) bool {
	var ie *IndexError
	return errors.As(err, &ie)
}
