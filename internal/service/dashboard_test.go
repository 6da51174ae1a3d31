package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"respondr/internal/domain"
	"respondr/internal/storage"
	"respondr/internal/storage/memory"
)

func newDashboard() *Dashboard {
	n := 0
	return &Dashboard{
		Store: memory.New(),
		IDGen: func() string { n++; return "adm_" + string(rune('a'+n-1)) },
	}
}

var now = time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)

func TestCreateDefaults(t *testing.T) {
	d := newDashboard()
	rec, err := d.Create(context.Background(), CreateRequest{GroupID: "g1", Name: "Ops", Text: "manual entry"}, now)
	if err != nil {
		t.Fatal(err)
	}
	if rec.Vehicle != domain.VehicleUnknown || rec.ArrivalStatus != domain.StatusUnknown {
		t.Errorf("defaults wrong: %+v", rec)
	}
	if !rec.ReceivedAt.Equal(now) {
		t.Errorf("received_at = %v", rec.ReceivedAt)
	}
}

func TestCreateRequiresText(t *testing.T) {
	d := newDashboard()
	if _, err := d.Create(context.Background(), CreateRequest{GroupID: "g1"}, now); !errors.Is(err, domain.ErrMissingFields) {
		t.Fatalf("err = %v", err)
	}
}

func TestUpdateRejectsTextEdit(t *testing.T) {
	ctx := context.Background()
	d := newDashboard()
	rec, err := d.Create(ctx, CreateRequest{GroupID: "g1", Text: "original"}, now)
	if err != nil {
		t.Fatal(err)
	}

	newText := "doctored"
	if _, err := d.Update(ctx, rec.ID, domain.RecordPatch{Text: &newText}, now); !errors.Is(err, domain.ErrTextImmutable) {
		t.Fatalf("err = %v, want ErrTextImmutable", err)
	}

	// sending the unchanged text alongside other edits is fine
	same := "original"
	vehicle := "SAR-12"
	got, err := d.Update(ctx, rec.ID, domain.RecordPatch{Text: &same, Vehicle: &vehicle}, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if got.Vehicle != "SAR-12" || got.Text != "original" {
		t.Errorf("merge wrong: %+v", got)
	}
}

func TestUpdateMergesPartially(t *testing.T) {
	ctx := context.Background()
	d := newDashboard()
	rec, err := d.Create(ctx, CreateRequest{GroupID: "g1", Name: "Alice", Text: "x", Vehicle: "SAR-7"}, now)
	if err != nil {
		t.Fatal(err)
	}

	status := domain.StatusCancelled
	got, err := d.Update(ctx, rec.ID, domain.RecordPatch{ArrivalStatus: &status}, now.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if got.ArrivalStatus != domain.StatusCancelled {
		t.Errorf("status = %q", got.ArrivalStatus)
	}
	if got.Vehicle != "SAR-7" || got.Name != "Alice" {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestUpdateUnknownID(t *testing.T) {
	d := newDashboard()
	if _, err := d.Update(context.Background(), "missing", domain.RecordPatch{}, now); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestListComputesMinutesUntilArrival(t *testing.T) {
	ctx := context.Background()
	d := newDashboard()
	eta := now.Add(25 * time.Minute)
	if _, err := d.Create(ctx, CreateRequest{GroupID: "g1", Text: "x", ETAAt: &eta}, now); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Create(ctx, CreateRequest{GroupID: "g1", Text: "no eta"}, now); err != nil {
		t.Fatal(err)
	}

	recs, err := d.List(ctx, "g1", false, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}
	for _, rec := range recs {
		switch rec.Text {
		case "x":
			if rec.MinutesUntilETA == nil || *rec.MinutesUntilETA != 25 {
				t.Errorf("minutes = %v, want 25", rec.MinutesUntilETA)
			}
		case "no eta":
			if rec.MinutesUntilETA != nil {
				t.Errorf("minutes = %v, want nil", rec.MinutesUntilETA)
			}
		}
	}

	// past the eta the distance goes negative
	late, err := d.List(ctx, "g1", false, now.Add(40*time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	for _, rec := range late {
		if rec.Text == "x" && (rec.MinutesUntilETA == nil || *rec.MinutesUntilETA != -15) {
			t.Errorf("minutes = %v, want -15", rec.MinutesUntilETA)
		}
	}
}

func TestSoftDeleteUndeletePurge(t *testing.T) {
	ctx := context.Background()
	d := newDashboard()
	rec, err := d.Create(ctx, CreateRequest{GroupID: "g1", Text: "x"}, now)
	if err != nil {
		t.Fatal(err)
	}

	if err := d.SoftDelete(ctx, rec.ID); err != nil {
		t.Fatal(err)
	}
	if recs, _ := d.List(ctx, "g1", false, now); len(recs) != 0 {
		t.Fatal("soft-deleted record still visible")
	}
	if err := d.Undelete(ctx, rec.ID); err != nil {
		t.Fatal(err)
	}
	if recs, _ := d.List(ctx, "g1", false, now); len(recs) != 1 {
		t.Fatal("undelete did not restore")
	}
	if err := d.Purge(ctx, rec.ID); err != nil {
		t.Fatal(err)
	}
	if _, found, _ := d.Get(ctx, rec.ID, now); found {
		t.Fatal("purged record still present")
	}
}
