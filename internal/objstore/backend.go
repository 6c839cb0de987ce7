package objstore

import (
	"context"

	"github.com/shoalstore/shoalstore/internal/idgen"
)

// Backend is the underlying "object service" (spec §6.1): raw block-level
// storage for a single object's byte container, addressed only by its
// 128-bit ID. All striping, layout, and composite-layer logic lives in
// Gateway, above this interface.
type Backend interface {
	// CreateObject reserves storage for a new, empty object.
	CreateObject(ctx context.Context, id idgen.ID) error

	// DeleteObject removes an object's storage entirely. Idempotent.
	DeleteObject(ctx context.Context, id idgen.ID) error

	// WriteBlock writes data at a block-aligned offset. last marks the
	// final block of the object; backends may use it to trim or finalize
	// storage (the gateway itself handles zero-padding before the call).
	WriteBlock(ctx context.Context, id idgen.ID, offset int64, data []byte, last bool) error

	// ReadBlock reads up to size bytes starting at offset. A short read
	// (fewer than size bytes, nil error) signals end of object.
	ReadBlock(ctx context.Context, id idgen.ID, offset, size int64) ([]byte, error)

	// Exists reports whether id has been created and not yet deleted.
	Exists(ctx context.Context, id idgen.ID) (bool, error)

	// HealthCheck verifies the backend is reachable and operational.
	HealthCheck(ctx context.Context) error
}
