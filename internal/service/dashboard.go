// Package service is the dashboard-facing layer over the storage abstraction:
// listing with derived fields, and the administrative record operations.
package service

import (
	"context"
	"time"

	"respondr/internal/domain"
	"respondr/internal/storage"
)

type Store interface {
	Upsert(ctx context.Context, rec domain.ResponderMessage) error
	Get(ctx context.Context, id string) (domain.ResponderMessage, bool, error)
	List(ctx context.Context, groupID string, includeDeleted bool) ([]domain.ResponderMessage, error)
	SoftDelete(ctx context.Context, id string) error
	Undelete(ctx context.Context, id string) error
	Purge(ctx context.Context, id string) error
}

type Dashboard struct {
	Store Store
	IDGen func() string
}

// List returns records newest first with MinutesUntilETA derived against now.
func (d *Dashboard) List(ctx context.Context, groupID string, includeDeleted bool, now time.Time) ([]domain.ResponderMessage, error) {
	recs, err := d.Store.List(ctx, groupID, includeDeleted)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		recs[i].ComputeMinutesUntilETA(now)
	}
	return recs, nil
}

func (d *Dashboard) Get(ctx context.Context, id string, now time.Time) (domain.ResponderMessage, bool, error) {
	rec, found, err := d.Store.Get(ctx, id)
	if err != nil || !found {
		return domain.ResponderMessage{}, found, err
	}
	rec.ComputeMinutesUntilETA(now)
	return rec, true, nil
}

type CreateRequest struct {
	GroupID       string               `json:"groupId"`
	Name          string               `json:"name"`
	Text          string               `json:"text"`
	ReceivedAt    *time.Time           `json:"receivedAt,omitempty"`
	Vehicle       string               `json:"vehicle,omitempty"`
	ETARaw        string               `json:"etaRaw,omitempty"`
	ETAAt         *time.Time           `json:"etaAt,omitempty"`
	ArrivalStatus domain.ArrivalStatus `json:"arrivalStatus,omitempty"`
}

// Create stores an administratively entered record under a fresh id.
func (d *Dashboard) Create(ctx context.Context, req CreateRequest, now time.Time) (domain.ResponderMessage, error) {
	if req.Text == "" {
		return domain.ResponderMessage{}, domain.ErrMissingFields
	}
	rec := domain.ResponderMessage{
		ID:            d.IDGen(),
		GroupID:       req.GroupID,
		Name:          req.Name,
		Text:          req.Text,
		ReceivedAt:    now,
		Vehicle:       req.Vehicle,
		ETARaw:        req.ETARaw,
		ETAAt:         req.ETAAt,
		ArrivalStatus: req.ArrivalStatus,
		UpdatedAt:     now,
	}
	if req.ReceivedAt != nil {
		rec.ReceivedAt = *req.ReceivedAt
	}
	if rec.Vehicle == "" {
		rec.Vehicle = domain.VehicleUnknown
	}
	if rec.ArrivalStatus == "" {
		rec.ArrivalStatus = domain.StatusUnknown
	}
	if err := d.Store.Upsert(ctx, rec); err != nil {
		return domain.ResponderMessage{}, err
	}
	return rec, nil
}

// Update merges a partial edit into the stored record. Text is immutable
// after creation; an edit that tries to change it is rejected here, not left
// to the UI.
func (d *Dashboard) Update(ctx context.Context, id string, patch domain.RecordPatch, now time.Time) (domain.ResponderMessage, error) {
	rec, found, err := d.Store.Get(ctx, id)
	if err != nil {
		return domain.ResponderMessage{}, err
	}
	if !found {
		return domain.ResponderMessage{}, storage.ErrNotFound
	}
	if patch.Text != nil && *patch.Text != rec.Text {
		return domain.ResponderMessage{}, domain.ErrTextImmutable
	}
	if patch.Name != nil {
		rec.Name = *patch.Name
	}
	if patch.Vehicle != nil {
		rec.Vehicle = *patch.Vehicle
	}
	if patch.ETARaw != nil {
		rec.ETARaw = *patch.ETARaw
	}
	if patch.ETAAt != nil {
		rec.ETAAt = patch.ETAAt
	}
	if patch.ArrivalStatus != nil {
		rec.ArrivalStatus = *patch.ArrivalStatus
	}
	if patch.StatusConfidence != nil {
		rec.StatusConfidence = *patch.StatusConfidence
	}
	rec.UpdatedAt = now
	if err := d.Store.Upsert(ctx, rec); err != nil {
		return domain.ResponderMessage{}, err
	}
	return rec, nil
}

func (d *Dashboard) SoftDelete(ctx context.Context, id string) error {
	return d.Store.SoftDelete(ctx, id)
}

func (d *Dashboard) Undelete(ctx context.Context, id string) error {
	return d.Store.Undelete(ctx, id)
}

func (d *Dashboard) Purge(ctx context.Context, id string) error {
	return d.Store.Purge(ctx, id)
}
