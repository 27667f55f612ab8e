package services

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/remote"
	"kakeibo/internal/storage"
)

// mirrorSpy records every bridge call so tests can assert exactly
// which remote operations a local mutation triggered.
type mirrorSpy struct {
	mu       sync.Mutex
	adds     []core.Record
	updates  []core.Record
	deletes  []string
	syncSets [][]core.Record
	fetches  int
	err      error
}

func (m *mirrorSpy) FetchAll(context.Context) ([]core.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetches++
	return nil, m.err
}

func (m *mirrorSpy) PushAdd(_ context.Context, rec core.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adds = append(m.adds, rec)
	return m.err
}

func (m *mirrorSpy) PushUpdate(_ context.Context, rec core.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, rec)
	return m.err
}

func (m *mirrorSpy) PushDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, id)
	return m.err
}

func (m *mirrorSpy) PushSyncAll(_ context.Context, records []core.Record) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncSets = append(m.syncSets, records)
	return len(records), m.err
}

func (m *mirrorSpy) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.adds) + len(m.updates) + len(m.deletes) + len(m.syncSets) + m.fetches
}

func newTestService(t *testing.T, mirror remote.Mirror) (*ExpenseService, *storage.SQLiteRepository) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "kakeibo.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return NewExpenseService(repo, mirror, nil), repo
}

func waitOutcome(t *testing.T, ch <-chan MirrorOutcome) MirrorOutcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for mirror outcome")
		return MirrorOutcome{}
	}
}

func validInput() core.RecordInput {
	return core.RecordInput{Date: "2024-03-01", Category: "食費", PaymentMethod: "現金", Amount: 1200, Memo: "lunch"}
}

func TestCreatePersistsAndMirrorsOnce(t *testing.T) {
	spy := &mirrorSpy{}
	svc, repo := newTestService(t, spy)
	ctx := context.Background()

	rec, outcome, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected assigned id")
	}

	got, err := repo.GetRecord(ctx, rec.ID)
	if err != nil || !reflect.DeepEqual(got, rec) {
		t.Fatalf("lookup by returned id: %+v (%v), want %+v", got, err, rec)
	}

	o := waitOutcome(t, outcome)
	if !o.Attempted || o.Err != nil {
		t.Fatalf("unexpected mirror outcome: %+v", o)
	}
	if spy.callCount() != 1 || len(spy.adds) != 1 {
		t.Fatalf("expected exactly one PushAdd, got %d calls", spy.callCount())
	}
	if !reflect.DeepEqual(spy.adds[0], rec) {
		t.Fatalf("mirrored payload mismatch: %+v vs %+v", spy.adds[0], rec)
	}
}

func TestCreateValidationRejected(t *testing.T) {
	spy := &mirrorSpy{}
	svc, repo := newTestService(t, spy)
	ctx := context.Background()

	cases := []core.RecordInput{
		{Category: "食費", PaymentMethod: "現金"},                    // no date
		{Date: "2024-03-01", PaymentMethod: "現金"},                // no category
		{Date: "2024-03-01", Category: "食費"},                     // no payment method
		{Date: "not-a-date", Category: "食費", PaymentMethod: "現金"}, // malformed date
	}
	for i, in := range cases {
		if _, _, err := svc.Create(ctx, in); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}

	if all, _ := repo.ListAllRecords(ctx); len(all) != 0 {
		t.Fatalf("invalid input reached the store: %+v", all)
	}
	if spy.callCount() != 0 {
		t.Fatalf("invalid input reached the mirror: %d calls", spy.callCount())
	}
}

func TestUpdateMirrorsFullRecord(t *testing.T) {
	spy := &mirrorSpy{}
	svc, _ := newTestService(t, spy)
	ctx := context.Background()

	rec, o1, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitOutcome(t, o1)

	in := core.RecordInput{Date: "2024-04-01", Category: "交通", PaymentMethod: "IC", Amount: 210}
	updated, o2, err := svc.Update(ctx, rec.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	waitOutcome(t, o2)

	if updated.ID != rec.ID {
		t.Fatalf("id changed on update: %s -> %s", rec.ID, updated.ID)
	}
	if len(spy.updates) != 1 || spy.updates[0].ID != rec.ID || spy.updates[0].Amount != 210 {
		t.Fatalf("unexpected mirrored update: %+v", spy.updates)
	}
}

func TestUpdateNormalizesDate(t *testing.T) {
	svc, repo := newTestService(t, nil)
	ctx := context.Background()

	rec, o1, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	waitOutcome(t, o1)

	in := core.RecordInput{Date: " 2024-01-03", Category: "食費", PaymentMethod: "現金", Amount: 300}
	updated, o2, err := svc.Update(ctx, rec.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	waitOutcome(t, o2)

	if updated.Date != "2024-01-03" {
		t.Fatalf("returned date not trimmed: %q", updated.Date)
	}
	got, err := repo.GetRecord(ctx, rec.ID)
	if err != nil || got.Date != "2024-01-03" {
		t.Fatalf("stored date after update: %q (%v)", got.Date, err)
	}

	// A padded stored date would fall out of every range view.
	if err := svc.SetFilter(ctx, core.Filter{From: "2024-01-01", To: "2024-01-31"}); err != nil {
		t.Fatalf("set filter: %v", err)
	}
	listed, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != rec.ID {
		t.Fatalf("updated record missing from range view: %+v", listed)
	}
}

func TestUpdateNotFoundDoesNotMirror(t *testing.T) {
	spy := &mirrorSpy{}
	svc, _ := newTestService(t, spy)

	_, _, err := svc.Update(context.Background(), "missing", validInput())
	if !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if spy.callCount() != 0 {
		t.Fatalf("failed mutation reached the mirror: %d calls", spy.callCount())
	}
}

func TestDeleteMirrorsID(t *testing.T) {
	spy := &mirrorSpy{}
	svc, repo := newTestService(t, spy)
	ctx := context.Background()

	rec, o1, _ := svc.Create(ctx, validInput())
	waitOutcome(t, o1)

	outcome, err := svc.Delete(ctx, rec.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	waitOutcome(t, outcome)

	if _, err := repo.GetRecord(ctx, rec.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("record still present: %v", err)
	}
	if len(spy.deletes) != 1 || spy.deletes[0] != rec.ID {
		t.Fatalf("unexpected mirrored delete: %+v", spy.deletes)
	}
}

func TestMirrorFailureDoesNotAffectLocal(t *testing.T) {
	spy := &mirrorSpy{err: remote.ErrRemoteUnavailable}
	svc, repo := newTestService(t, spy)
	ctx := context.Background()

	rec, outcome, err := svc.Create(ctx, validInput())
	if err != nil {
		t.Fatalf("create must succeed despite remote failure: %v", err)
	}

	o := waitOutcome(t, outcome)
	if !o.Attempted || !errors.Is(o.Err, remote.ErrRemoteUnavailable) {
		t.Fatalf("unexpected outcome: %+v", o)
	}

	if _, err := repo.GetRecord(ctx, rec.ID); err != nil {
		t.Fatalf("local record lost: %v", err)
	}
}

func TestMirrorDisabledReportsNotAttempted(t *testing.T) {
	spy := &mirrorSpy{err: remote.ErrSyncDisabled}
	svc, _ := newTestService(t, spy)

	_, outcome, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	o := waitOutcome(t, outcome)
	if o.Attempted || o.Err != nil {
		t.Fatalf("disabled mirror should report a skip: %+v", o)
	}
}

func TestNoMirrorWired(t *testing.T) {
	svc, _ := newTestService(t, nil)

	rec, outcome, err := svc.Create(context.Background(), validInput())
	if err != nil || rec.ID == "" {
		t.Fatalf("create without mirror: %+v, %v", rec, err)
	}
	o := waitOutcome(t, outcome)
	if o.Attempted || o.Err != nil {
		t.Fatalf("unexpected outcome without mirror: %+v", o)
	}
}

func TestListUsesPersistedFilter(t *testing.T) {
	svc, _ := newTestService(t, nil)
	ctx := context.Background()

	for _, in := range []core.RecordInput{
		{Date: "2024-01-01", Category: "食費", PaymentMethod: "現金", Amount: 100},
		{Date: "2024-02-01", Category: "交通", PaymentMethod: "IC", Amount: 200},
	} {
		if _, _, err := svc.Create(ctx, in); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if err := svc.SetFilter(ctx, core.Filter{Category: "交通", PaymentMethod: core.FilterAll}); err != nil {
		t.Fatalf("set filter: %v", err)
	}

	got, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Category != "交通" {
		t.Fatalf("filter not applied: %+v", got)
	}

	sum, err := svc.Summary(ctx)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Total != 200 || len(sum.ByCategory) != 1 || sum.ByCategory[0].Key != "交通" {
		t.Fatalf("summary over filtered set wrong: %+v", sum)
	}
}
