package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"respondr/internal/domain"
	"respondr/internal/storage"
	"respondr/internal/storage/memory"
)

// flaky wraps a backend and fails every operation while down is set.
type flaky struct {
	inner storage.Backend
	down  bool
}

var errDown = errors.New("backend down")

func (f *flaky) Upsert(ctx context.Context, rec domain.ResponderMessage) error {
	if f.down {
		return errDown
	}
	return f.inner.Upsert(ctx, rec)
}

func (f *flaky) Get(ctx context.Context, id string) (domain.ResponderMessage, bool, error) {
	if f.down {
		return domain.ResponderMessage{}, false, errDown
	}
	return f.inner.Get(ctx, id)
}

func (f *flaky) List(ctx context.Context, groupID string, includeDeleted bool) ([]domain.ResponderMessage, error) {
	if f.down {
		return nil, errDown
	}
	return f.inner.List(ctx, groupID, includeDeleted)
}

func (f *flaky) SoftDelete(ctx context.Context, id string) error {
	if f.down {
		return errDown
	}
	return f.inner.SoftDelete(ctx, id)
}

func (f *flaky) Undelete(ctx context.Context, id string) error {
	if f.down {
		return errDown
	}
	return f.inner.Undelete(ctx, id)
}

func (f *flaky) Purge(ctx context.Context, id string) error {
	if f.down {
		return errDown
	}
	return f.inner.Purge(ctx, id)
}

func (f *flaky) Ping(ctx context.Context) error {
	if f.down {
		return errDown
	}
	return f.inner.Ping(ctx)
}

func rec(id string) domain.ResponderMessage {
	return domain.ResponderMessage{
		ID:            id,
		GroupID:       "g1",
		Name:          "Alice",
		Text:          "Taking SAR78, ETA 15 minutes",
		ReceivedAt:    time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
		Vehicle:       "SAR-78",
		ArrivalStatus: domain.StatusResponding,
	}
}

func newManager(primary, fallback storage.Backend) *storage.Manager {
	return storage.NewManager(primary, storage.ManagerOptions{
		Fallback:     fallback,
		NewEmergency: func() storage.Backend { return memory.New() },
	})
}

func TestManagerFailoverIsInvisibleToCallers(t *testing.T) {
	ctx := context.Background()
	primary := &flaky{inner: memory.New()}
	fallback := memory.New()
	m := newManager(primary, fallback)

	if err := m.Upsert(ctx, rec("a")); err != nil {
		t.Fatal(err)
	}
	if m.State() != storage.PrimaryHealthy {
		t.Fatalf("state = %v", m.State())
	}

	primary.down = true
	if err := m.Upsert(ctx, rec("b")); err != nil {
		t.Fatalf("failover surfaced an error: %v", err)
	}
	if m.State() != storage.FallbackActive {
		t.Fatalf("state = %v, want fallback-active", m.State())
	}
	// the write landed in the fallback, not the primary
	if _, found, _ := fallback.Get(ctx, "b"); !found {
		t.Fatal("record b not in fallback")
	}
}

func TestManagerProbeRecoversPrimary(t *testing.T) {
	ctx := context.Background()
	primary := &flaky{inner: memory.New()}
	m := newManager(primary, memory.New())

	primary.down = true
	if err := m.Upsert(ctx, rec("a")); err != nil {
		t.Fatal(err)
	}
	if m.State() != storage.FallbackActive {
		t.Fatalf("state = %v", m.State())
	}

	m.Probe(ctx)
	if m.State() != storage.FallbackActive {
		t.Fatal("probe promoted while primary still down")
	}

	primary.down = false
	m.Probe(ctx)
	if m.State() != storage.PrimaryHealthy {
		t.Fatalf("state = %v after recovery, want primary-healthy", m.State())
	}
	if err := m.Upsert(ctx, rec("c")); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := primary.inner.Get(ctx, "c"); !found {
		t.Fatal("post-recovery write did not hit primary")
	}
}

func TestManagerEmergencyBackend(t *testing.T) {
	ctx := context.Background()
	primary := &flaky{inner: memory.New(), down: true}
	fallback := &flaky{inner: memory.New(), down: true}
	m := newManager(primary, fallback)

	if err := m.Upsert(ctx, rec("a")); err != nil {
		t.Fatalf("emergency upsert failed: %v", err)
	}
	if m.State() != storage.Emergency {
		t.Fatalf("state = %v, want emergency", m.State())
	}
	if _, found, err := m.Get(ctx, "a"); err != nil || !found {
		t.Fatalf("emergency get = %v, %v", found, err)
	}

	fallback.down = false
	m.Probe(ctx)
	if m.State() != storage.FallbackActive {
		t.Fatalf("state = %v, want fallback-active", m.State())
	}
}

func TestManagerGetFallsThroughOnMiss(t *testing.T) {
	ctx := context.Background()
	primary := &flaky{inner: memory.New()}
	fallback := memory.New()
	m := newManager(primary, fallback)

	// written while the primary was down
	primary.down = true
	if err := m.Upsert(ctx, rec("orphan")); err != nil {
		t.Fatal(err)
	}
	primary.down = false
	m.Probe(ctx)
	if m.State() != storage.PrimaryHealthy {
		t.Fatalf("state = %v", m.State())
	}

	if _, found, err := m.Get(ctx, "orphan"); err != nil || !found {
		t.Fatalf("record written during fallback window not readable: %v, %v", found, err)
	}
}

func TestManagerListIncludesFallbackWindowRecords(t *testing.T) {
	ctx := context.Background()
	primary := &flaky{inner: memory.New()}
	fallback := memory.New()
	m := newManager(primary, fallback)

	both := rec("both")
	if err := m.Upsert(ctx, both); err != nil {
		t.Fatal(err)
	}

	// written while the primary was down: lands in the fallback only
	primary.down = true
	orphan := rec("orphan")
	orphan.ReceivedAt = orphan.ReceivedAt.Add(time.Hour)
	if err := m.Upsert(ctx, orphan); err != nil {
		t.Fatal(err)
	}
	stale := rec("both")
	stale.Vehicle = "POV"
	if err := m.Upsert(ctx, stale); err != nil {
		t.Fatal(err)
	}
	primary.down = false
	m.Probe(ctx)
	if m.State() != storage.PrimaryHealthy {
		t.Fatalf("state = %v", m.State())
	}

	list, err := m.List(ctx, "g1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("merged list has %d records, want 2: %v", len(list), list)
	}
	if list[0].ID != "orphan" || list[1].ID != "both" {
		t.Fatalf("merged list order wrong: %v, %v", list[0].ID, list[1].ID)
	}
	// on an id conflict the active backend's record wins
	if list[1].Vehicle != "SAR-78" {
		t.Errorf("conflict resolved against active backend: vehicle = %q", list[1].Vehicle)
	}
}

func TestManagerNotFoundDoesNotFailOver(t *testing.T) {
	ctx := context.Background()
	m := newManager(&flaky{inner: memory.New()}, memory.New())

	if err := m.SoftDelete(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if m.State() != storage.PrimaryHealthy {
		t.Fatalf("not-found triggered failover: %v", m.State())
	}
}

func TestManagerSoftDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := newManager(&flaky{inner: memory.New()}, memory.New())
	original := rec("r1")
	if err := m.Upsert(ctx, original); err != nil {
		t.Fatal(err)
	}

	if err := m.SoftDelete(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	active, err := m.List(ctx, "g1", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 0 {
		t.Fatalf("soft-deleted record still listed: %v", active)
	}
	archived, err := m.List(ctx, "g1", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(archived) != 1 || !archived[0].Deleted {
		t.Fatalf("archive listing wrong: %v", archived)
	}

	if err := m.Undelete(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	got, found, err := m.Get(ctx, "r1")
	if err != nil || !found {
		t.Fatal(found, err)
	}
	if got != original {
		t.Errorf("undelete changed the record:\n got %+v\nwant %+v", got, original)
	}

	if err := m.Purge(ctx, "r1"); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := m.Get(ctx, "r1"); found {
		t.Fatal("record survived purge")
	}
}

func TestManagerUpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := newManager(&flaky{inner: memory.New()}, memory.New())
	r := rec("dup")
	if err := m.Upsert(ctx, r); err != nil {
		t.Fatal(err)
	}
	if err := m.Upsert(ctx, r); err != nil {
		t.Fatal(err)
	}
	list, err := m.List(ctx, "g1", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("duplicate upsert produced %d records", len(list))
	}
}
