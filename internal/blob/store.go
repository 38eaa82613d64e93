// Package blob abstracts the object storage service that backs the
// persisted notification logs. Objects are opaque byte blobs addressed by
// key; a missing object is reported as ErrNotFound so callers can treat it
// as an empty log rather than a failure.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound reports that no object exists under the requested key.
var ErrNotFound = errors.New("object not found")

// ObjectStore is the storage contract the journal is built on. Put is a
// whole-object overwrite; there is no append or conditional write, which is
// why the journal's read-modify-write cycle can lose a concurrent update.
type ObjectStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
}
