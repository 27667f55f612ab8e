package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/event"
	"kakeibo/internal/log"
	"kakeibo/internal/remote"
	"kakeibo/internal/storage"
)

// MirrorOutcome is the secondary result of a local mutation: whether a
// remote call was attempted and how it went. It never affects the
// local result; callers are free to ignore the channel entirely.
type MirrorOutcome struct {
	Attempted bool
	Err       error
}

// mirrorTimeout bounds each fire-and-forget remote call. Mirror calls
// run on a detached context so a cancelled request cannot abort a
// mirror of an already-committed mutation.
const mirrorTimeout = 20 * time.Second

// ExpenseService orchestrates record mutations: persist locally first,
// then mirror to the remote store in the background. The local store
// is authoritative; the remote is a best-effort copy.
type ExpenseService struct {
	repo   *storage.SQLiteRepository
	mirror remote.Mirror
	events *event.Client
}

func NewExpenseService(repo *storage.SQLiteRepository, mirror remote.Mirror, events *event.Client) *ExpenseService {
	return &ExpenseService{repo: repo, mirror: mirror, events: events}
}

// Create validates the input, persists a new record, and dispatches
// the remote mirror call. The record is returned as stored.
func (s *ExpenseService) Create(ctx context.Context, in core.RecordInput) (core.Record, <-chan MirrorOutcome, error) {
	if err := in.Validate(); err != nil {
		return core.Record{}, nil, err
	}

	rec := core.NewRecord(in)
	if err := s.repo.AddRecord(ctx, rec); err != nil {
		return core.Record{}, nil, fmt.Errorf("persist record: %w", err)
	}

	s.publishEvent(ctx, event.OpAdded, rec.ID)
	outcome := s.dispatchMirror(func(mctx context.Context) error {
		return s.mirror.PushAdd(mctx, rec)
	})
	return rec, outcome, nil
}

// Update replaces every mutable field of the record with the given id.
func (s *ExpenseService) Update(ctx context.Context, id string, in core.RecordInput) (core.Record, <-chan MirrorOutcome, error) {
	if err := in.Validate(); err != nil {
		return core.Record{}, nil, err
	}

	in = in.Normalize()
	rec := core.Record{
		ID:            id,
		Date:          in.Date,
		Category:      in.Category,
		PaymentMethod: in.PaymentMethod,
		Amount:        in.Amount,
		Memo:          in.Memo,
	}
	if err := s.repo.UpdateRecord(ctx, rec); err != nil {
		return core.Record{}, nil, err
	}

	s.publishEvent(ctx, event.OpUpdated, rec.ID)
	outcome := s.dispatchMirror(func(mctx context.Context) error {
		return s.mirror.PushUpdate(mctx, rec)
	})
	return rec, outcome, nil
}

// Delete removes the record with the given id.
func (s *ExpenseService) Delete(ctx context.Context, id string) (<-chan MirrorOutcome, error) {
	if err := s.repo.DeleteRecord(ctx, id); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, event.OpDeleted, id)
	outcome := s.dispatchMirror(func(mctx context.Context) error {
		return s.mirror.PushDelete(mctx, id)
	})
	return outcome, nil
}

// List returns the records matching the currently persisted filter.
func (s *ExpenseService) List(ctx context.Context) ([]core.Record, error) {
	f, err := s.repo.GetFilter(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListRecords(ctx, f)
}

// Summary recomputes the aggregates over the filtered set.
func (s *ExpenseService) Summary(ctx context.Context) (core.Summary, error) {
	records, err := s.List(ctx)
	if err != nil {
		return core.Summary{}, err
	}
	return core.Summarize(records), nil
}

// Filter returns the active filter.
func (s *ExpenseService) Filter(ctx context.Context) (core.Filter, error) {
	return s.repo.GetFilter(ctx)
}

// SetFilter persists a new active filter.
func (s *ExpenseService) SetFilter(ctx context.Context, f core.Filter) error {
	return s.repo.SaveFilter(ctx, f)
}

// dispatchMirror runs one best-effort remote call on its own goroutine
// and reports the outcome on a buffered channel. A skipped call
// (mirroring disabled, or no mirror wired) reports Attempted=false
// with no error.
func (s *ExpenseService) dispatchMirror(call func(context.Context) error) <-chan MirrorOutcome {
	out := make(chan MirrorOutcome, 1)
	if s.mirror == nil {
		out <- MirrorOutcome{}
		close(out)
		return out
	}

	go func() {
		defer close(out)
		mctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()

		err := call(mctx)
		switch {
		case err == nil:
			out <- MirrorOutcome{Attempted: true}
		case errors.Is(err, remote.ErrSyncDisabled):
			out <- MirrorOutcome{}
		default:
			slog.Warn("Remote mirror call failed", log.FieldError, err)
			out <- MirrorOutcome{Attempted: true, Err: err}
		}
	}()
	return out
}

func (s *ExpenseService) publishEvent(ctx context.Context, op, recordID string) {
	if err := s.events.PublishRecordEvent(ctx, op, recordID); err != nil {
		slog.WarnContext(ctx, "Failed to publish record event",
			"op", op, log.FieldRecordID, recordID, log.FieldError, err)
	}
}
