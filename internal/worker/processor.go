// Package worker drains the inbound queue and runs each message through the
// extraction, normalization, classification and storage pipeline.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"respondr/internal/classify"
	"respondr/internal/domain"
	"respondr/internal/extract"
	"respondr/internal/observability"
	sqsqueue "respondr/internal/queue/sqs"
	"respondr/internal/timenorm"
	"respondr/internal/util"
)

type Store interface {
	Upsert(ctx context.Context, rec domain.ResponderMessage) error
	Get(ctx context.Context, id string) (domain.ResponderMessage, bool, error)
	List(ctx context.Context, groupID string, includeDeleted bool) ([]domain.ResponderMessage, error)
}

type Extractor interface {
	Extract(ctx context.Context, in extract.Input) (extract.Result, error)
}

type Processor struct {
	Store     Store
	Extractor Extractor
	// Location resolves clock-time ETAs; nil means UTC.
	Location *time.Location
	// Lookback bounds the vehicle-continuity window over the sender's prior
	// records.
	Lookback int
}

// Process handles one dequeued message. A nil return acknowledges the queue
// item; an error leaves it for redelivery. Malformed input is terminal and
// acknowledged without persisting so poison messages cannot loop. Extraction
// and normalization failures are not pipeline failures: they land on the
// record as Unknown/nil and the record is stored anyway.
func (p *Processor) Process(ctx context.Context, job sqsqueue.InboundJob) error {
	msg := job.Message()
	if err := msg.Validate(); err != nil {
		observability.PipelineMessages.WithLabelValues("terminal").Inc()
		slog.Warn("dropping malformed inbound message",
			"err", err,
			"group_id", msg.GroupID,
			"source_message_id", msg.SourceMessageID,
		)
		return nil
	}

	id := util.RecordIDFromSource(msg.SourceMessageID)
	if _, found, err := p.Store.Get(ctx, id); err != nil {
		observability.PipelineMessages.WithLabelValues("retryable").Inc()
		return err
	} else if found {
		// redelivery of an already-processed message; never re-extract
		observability.PipelineMessages.WithLabelValues("duplicate").Inc()
		return nil
	}

	loc := p.Location
	if loc == nil {
		loc = time.UTC
	}
	received := time.Unix(msg.CreatedAt, 0).In(loc)

	res, err := p.Extractor.Extract(ctx, extract.Input{
		Name:  msg.Name,
		Text:  msg.Text,
		Ref:   received,
		Prior: p.priorState(ctx, msg),
	})
	if err != nil {
		observability.PipelineMessages.WithLabelValues("retryable").Inc()
		return err
	}

	var etaAt *time.Time
	if res.ETARaw != "" {
		t, err := timenorm.Normalize(res.ETARaw, received)
		if err != nil {
			// recorded as a nil eta_at on the stored record, not a failure
			slog.Info("eta normalization failed",
				"err", err,
				"eta_raw", res.ETARaw,
				"source_message_id", msg.SourceMessageID,
			)
		} else {
			etaAt = &t
		}
	}

	vehicle := res.Vehicle
	if vehicle == domain.VehicleUnknown && len(res.Cues) == 0 {
		vehicle = p.continuityVehicle(ctx, msg)
	}

	status := classify.Classify(classify.Input{
		Vehicle:     vehicle,
		ETAResolved: etaAt != nil,
		Cues:        res.Cues,
	})

	rec := domain.ResponderMessage{
		ID:               id,
		GroupID:          msg.GroupID,
		Name:             msg.Name,
		Text:             msg.Text,
		ReceivedAt:       received,
		Vehicle:          vehicle,
		ETARaw:           res.ETARaw,
		ETAAt:            etaAt,
		ArrivalStatus:    status,
		StatusConfidence: res.Confidence,
		UpdatedAt:        time.Now().UTC(),
	}
	if err := p.Store.Upsert(ctx, rec); err != nil {
		observability.PipelineMessages.WithLabelValues("retryable").Inc()
		return err
	}
	observability.PipelineMessages.WithLabelValues("ok").Inc()
	return nil
}

// priorState collects the sender's recent extracted state, newest first,
// bounded by Lookback. Failures here degrade the prompt, not the pipeline.
func (p *Processor) priorState(ctx context.Context, msg domain.InboundMessage) []extract.PriorState {
	recs, err := p.Store.List(ctx, msg.GroupID, false)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			slog.Warn("prior state lookup failed", "err", err, "group_id", msg.GroupID)
		}
		return nil
	}
	lookback := p.Lookback
	if lookback <= 0 {
		lookback = 10
	}
	var out []extract.PriorState
	for _, r := range recs {
		if r.Name != msg.Name {
			continue
		}
		out = append(out, extract.PriorState{Vehicle: r.Vehicle, Status: r.ArrivalStatus})
		if len(out) >= lookback {
			break
		}
	}
	return out
}

// continuityVehicle fills an unresolved vehicle from the sender's most recent
// record that named one.
func (p *Processor) continuityVehicle(ctx context.Context, msg domain.InboundMessage) string {
	for _, prior := range p.priorState(ctx, msg) {
		if prior.Vehicle != domain.VehicleUnknown && prior.Vehicle != domain.VehicleNotResponding {
			return prior.Vehicle
		}
	}
	return domain.VehicleUnknown
}
