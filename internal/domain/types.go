package domain

import (
	"errors"
	"time"
)

type ArrivalStatus string

const (
	StatusResponding    ArrivalStatus = "Responding"
	StatusAvailable     ArrivalStatus = "Available"
	StatusNotResponding ArrivalStatus = "Not Responding"
	StatusCancelled     ArrivalStatus = "Cancelled"
	StatusInformational ArrivalStatus = "Informational"
	StatusUnknown       ArrivalStatus = "Unknown"
)

// Non-unit vehicle values. Unit codes (SAR-7, SAR-78, ...) come from config.
const (
	VehiclePOV           = "POV"
	VehicleUnknown       = "Unknown"
	VehicleNotResponding = "Not Responding"
)

// InboundMessage is the normalized queue payload produced by the webhook
// receiver. CreatedAt is epoch seconds as delivered by the group-messaging
// platform.
type InboundMessage struct {
	Name            string `json:"name"`
	Text            string `json:"text"`
	CreatedAt       int64  `json:"createdAt"`
	GroupID         string `json:"groupId"`
	SourceMessageID string `json:"sourceMessageId"`
}

func (m InboundMessage) Validate() error {
	if m.Text == "" || m.CreatedAt == 0 || m.SourceMessageID == "" {
		return ErrMissingFields
	}
	return nil
}

var (
	ErrMissingFields = errors.New("missing required fields")
	ErrTextImmutable = errors.New("text is not editable after creation")
)

// ResponderMessage is the canonical stored record. Text is immutable after
// creation; everything else changes only through administrative edits.
type ResponderMessage struct {
	ID               string        `json:"id"`
	GroupID          string        `json:"groupId"`
	Name             string        `json:"name"`
	Text             string        `json:"text"`
	ReceivedAt       time.Time     `json:"receivedAt"`
	Vehicle          string        `json:"vehicle"`
	ETARaw           string        `json:"etaRaw,omitempty"`
	ETAAt            *time.Time    `json:"etaAt,omitempty"`
	MinutesUntilETA  *int          `json:"minutesUntilArrival,omitempty"`
	ArrivalStatus    ArrivalStatus `json:"arrivalStatus"`
	StatusConfidence float64       `json:"statusConfidence"`
	Deleted          bool          `json:"deleted"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// ComputeMinutesUntilETA fills MinutesUntilETA relative to now. Derived on
// read, never stored.
func (r *ResponderMessage) ComputeMinutesUntilETA(now time.Time) {
	if r.ETAAt == nil {
		r.MinutesUntilETA = nil
		return
	}
	m := int(r.ETAAt.Sub(now).Round(time.Minute) / time.Minute)
	r.MinutesUntilETA = &m
}

// RecordPatch is a partial administrative edit. Nil fields are left alone.
// Text is carried only so the service layer can reject attempts to change it.
type RecordPatch struct {
	Name             *string        `json:"name,omitempty"`
	Text             *string        `json:"text,omitempty"`
	Vehicle          *string        `json:"vehicle,omitempty"`
	ETARaw           *string        `json:"etaRaw,omitempty"`
	ETAAt            *time.Time     `json:"etaAt,omitempty"`
	ArrivalStatus    *ArrivalStatus `json:"arrivalStatus,omitempty"`
	StatusConfidence *float64       `json:"statusConfidence,omitempty"`
}
