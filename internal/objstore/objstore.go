// Package objstore abstracts the object storage destination for immutable
// columnar files and their sidecar indexes, generalizing the teacher's
// ParquetTarget (write-only) into a read/write/delete interface: C5 needs
// to fetch files back for scanning, and the catalog's retention sweep
// needs to physically remove a tombstoned file's bytes once its grace
// period elapses.
package objstore

import (
	"context"
)

// Target is the object storage abstraction every C2/C3/C5 component
// depends on -- never a concrete filesystem or S3 client directly.
type Target interface {
	// Put writes data under key, creating any parent structure the
	// implementation needs. Overwrites an existing object at key.
	Put(ctx context.Context, key string, data []byte) error

	// Get returns the full contents of the object at key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the object at key. Deleting a missing key is not an
	// error (idempotent, matching the catalog's tombstone-sweep retry).
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object exists at key without reading it.
	Exists(ctx context.Context, key string) (bool, error)
}

// ReaderAt is implemented by targets that can serve a ranged read. Both
// included implementations satisfy it; the query executor reads files and
// sidecar indexes whole, through Get.
type ReaderAt interface {
	GetRange(ctx context.Context, key string, offset, length int64) ([]byte, error)
}
