package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"syncline/internal/model"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "queue.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s, path
}

func newTestRecord(tenantID string) *model.QueueRecord {
	return &model.QueueRecord{
		ID:       uuid.New(),
		TenantID: tenantID,
		Endpoint: "contacts",
		Method:   model.MethodCreate,
		Payload:  []byte(`{"name":"Ada"}`),
		Headers:  map[string]string{"X-Request-Source": "console"},
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("Open(blank) error = nil, want error")
	}
}

func TestInsertRecordAssignsMonotoneTimestamps(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	var prev int64

	for i := 0; i < 5; i++ {
		rec := newTestRecord("acme")

		if err := s.InsertRecord(ctx, rec); err != nil {
			t.Fatalf("InsertRecord() error = %v", err)
		}

		if rec.Timestamp <= prev {
			t.Fatalf("Timestamp = %d, want > %d", rec.Timestamp, prev)
		}

		prev = rec.Timestamp
	}
}

func TestInsertRecordKeepsExplicitTimestamp(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord("acme")
	rec.Timestamp = 42

	if err := s.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}

	if rec.Timestamp != 42 {
		t.Fatalf("Timestamp = %d, want 42", rec.Timestamp)
	}
}

func TestRecordsSurviveReopen(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord("acme")
	if err := s.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open() after close error = %v", err)
	}

	defer reopened.Close()

	pending, err := reopened.SelectPendingByTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("SelectPendingByTenant() error = %v", err)
	}

	if len(pending) != 1 {
		t.Fatalf("len(pending) = %d, want 1", len(pending))
	}

	got := pending[0]

	if got.ID != rec.ID {
		t.Errorf("ID = %v, want %v", got.ID, rec.ID)
	}

	if got.Endpoint != rec.Endpoint || got.Method != rec.Method {
		t.Errorf("record = %s %s, want %s %s", got.Method, got.Endpoint, rec.Method, rec.Endpoint)
	}

	if string(got.Payload) != string(rec.Payload) {
		t.Errorf("Payload = %s, want %s", got.Payload, rec.Payload)
	}

	if got.Headers["X-Request-Source"] != "console" {
		t.Errorf("Headers = %v, want X-Request-Source=console", got.Headers)
	}
}

func TestSelectPendingByTenantOrdersAndIsolates(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	first := newTestRecord("acme")
	second := newTestRecord("acme")
	other := newTestRecord("globex")

	for _, rec := range []*model.QueueRecord{first, second, other} {
		if err := s.InsertRecord(ctx, rec); err != nil {
			t.Fatalf("InsertRecord() error = %v", err)
		}
	}

	pending, err := s.SelectPendingByTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("SelectPendingByTenant() error = %v", err)
	}

	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d, want 2", len(pending))
	}

	if pending[0].ID != first.ID || pending[1].ID != second.ID {
		t.Fatalf("pending order = [%v %v], want [%v %v]",
			pending[0].ID, pending[1].ID, first.ID, second.ID)
	}

	for _, rec := range pending {
		if rec.TenantID != "acme" {
			t.Fatalf("TenantID = %q, want %q", rec.TenantID, "acme")
		}
	}
}

func TestUpdateAsSyncedRemovesFromPending(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord("acme")
	if err := s.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}

	if err := s.UpdateAsSynced(ctx, rec.ID); err != nil {
		t.Fatalf("UpdateAsSynced() error = %v", err)
	}

	// Marking twice must be harmless.
	if err := s.UpdateAsSynced(ctx, rec.ID); err != nil {
		t.Fatalf("UpdateAsSynced() second call error = %v", err)
	}

	pending, err := s.SelectPendingByTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("SelectPendingByTenant() error = %v", err)
	}

	if len(pending) != 0 {
		t.Fatalf("len(pending) = %d, want 0", len(pending))
	}
}

func TestUpdateAsFailedAndPendingRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord("acme")
	if err := s.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}

	if err := s.UpdateAsFailed(ctx, rec.ID, "validation rejected"); err != nil {
		t.Fatalf("UpdateAsFailed() error = %v", err)
	}

	pending, err := s.SelectPendingByTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("SelectPendingByTenant() error = %v", err)
	}

	if len(pending) != 0 {
		t.Fatalf("len(pending) after fail = %d, want 0", len(pending))
	}

	failed, err := s.SelectFailedByTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("SelectFailedByTenant() error = %v", err)
	}

	if len(failed) != 1 {
		t.Fatalf("len(failed) = %d, want 1", len(failed))
	}

	if failed[0].LastError != "validation rejected" {
		t.Errorf("LastError = %q, want %q", failed[0].LastError, "validation rejected")
	}

	if err := s.UpdateAsPending(ctx, rec.ID); err != nil {
		t.Fatalf("UpdateAsPending() error = %v", err)
	}

	pending, err = s.SelectPendingByTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("SelectPendingByTenant() error = %v", err)
	}

	if len(pending) != 1 {
		t.Fatalf("len(pending) after requeue = %d, want 1", len(pending))
	}

	if pending[0].Timestamp != rec.Timestamp {
		t.Errorf("Timestamp after requeue = %d, want %d", pending[0].Timestamp, rec.Timestamp)
	}

	if pending[0].Attempts != 0 || pending[0].LastError != "" {
		t.Errorf("requeued record = attempts %d, last_error %q, want 0 and empty",
			pending[0].Attempts, pending[0].LastError)
	}
}

func TestUpdateAsPendingOnNonFailedRecord(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord("acme")
	if err := s.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}

	if err := s.UpdateAsPending(ctx, rec.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("UpdateAsPending() error = %v, want sql.ErrNoRows", err)
	}
}

func TestSelectTenantsWithPending(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	acme := newTestRecord("acme")
	globex := newTestRecord("globex")
	doneRec := newTestRecord("initech")

	for _, rec := range []*model.QueueRecord{acme, globex, doneRec} {
		if err := s.InsertRecord(ctx, rec); err != nil {
			t.Fatalf("InsertRecord() error = %v", err)
		}
	}

	if err := s.UpdateAsSynced(ctx, doneRec.ID); err != nil {
		t.Fatalf("UpdateAsSynced() error = %v", err)
	}

	tenants, err := s.SelectTenantsWithPending(ctx)
	if err != nil {
		t.Fatalf("SelectTenantsWithPending() error = %v", err)
	}

	want := []string{"acme", "globex"}

	if len(tenants) != len(want) {
		t.Fatalf("tenants = %v, want %v", tenants, want)
	}

	for i := range want {
		if tenants[i] != want[i] {
			t.Fatalf("tenants = %v, want %v", tenants, want)
		}
	}
}

func TestDeleteRecord(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	rec := newTestRecord("acme")
	if err := s.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("InsertRecord() error = %v", err)
	}

	if err := s.DeleteRecord(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteRecord() error = %v", err)
	}

	// Deleting again must be a no-op.
	if err := s.DeleteRecord(ctx, rec.ID); err != nil {
		t.Fatalf("DeleteRecord() second call error = %v", err)
	}

	pending, err := s.SelectPendingByTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("SelectPendingByTenant() error = %v", err)
	}

	if len(pending) != 0 {
		t.Fatalf("len(pending) = %d, want 0", len(pending))
	}
}
