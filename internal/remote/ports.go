package remote

import (
	"context"

	"kakeibo/internal/core"
)

// RecordStore is the narrow repository contract a remote backing store
// must satisfy. Any implementation works — an in-memory slice, a flat
// file, a spreadsheet tab — as long as it honors these five
// operations.
type RecordStore interface {
	// FetchAll returns the store's full record set.
	FetchAll(ctx context.Context) ([]core.Record, error)

	// Add appends a single record.
	Add(ctx context.Context, rec core.Record) error

	// Update replaces the record with the matching id, or reports
	// core.ErrNotFound.
	Update(ctx context.Context, rec core.Record) error

	// Delete removes the record with the matching id, or reports
	// core.ErrNotFound.
	Delete(ctx context.Context, id string) error

	// ReplaceAll discards the stored set and installs the given one
	// verbatim.
	ReplaceAll(ctx context.Context, records []core.Record) error
}

// Mirror is the client-side view of the remote store: one best-effort
// round trip per call, no retry, no queueing, no ordering guarantee
// between in-flight calls. The Bridge implements it; tests substitute
// spies.
type Mirror interface {
	FetchAll(ctx context.Context) ([]core.Record, error)
	PushAdd(ctx context.Context, rec core.Record) error
	PushUpdate(ctx context.Context, rec core.Record) error
	PushDelete(ctx context.Context, id string) error

	// PushSyncAll replaces the entire remote set and returns the
	// remote-reported count of installed records.
	PushSyncAll(ctx context.Context, records []core.Record) (int, error)
}
