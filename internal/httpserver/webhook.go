package httpserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"respondr/internal/observability"
	sqsqueue "respondr/internal/queue/sqs"
)

type Enqueuer interface {
	Enqueue(ctx context.Context, job sqsqueue.InboundJob) error
}

// Webhook takes the group-messaging platform's callback and hands it to the
// queue. Processing happens in the worker; this path only validates shape and
// enqueues, so the platform gets its 200 fast.
type Webhook struct {
	Queue Enqueuer
	// Token must match the X-Webhook-Token header when non-empty.
	Token string
}

// callbackPayload is the platform's message-created callback shape.
type callbackPayload struct {
	ID         string `json:"id"`
	SourceGUID string `json:"source_guid"`
	CreatedAt  int64  `json:"created_at"`
	GroupID    string `json:"group_id"`
	Name       string `json:"name"`
	Text       string `json:"text"`
	SenderType string `json:"sender_type"`
}

func (wh *Webhook) Register(r *mux.Router) {
	r.HandleFunc("/v1/webhooks/group", wh.handleMessage).Methods(http.MethodPost)
}

func (wh *Webhook) handleMessage(w http.ResponseWriter, r *http.Request) {
	if wh.Token != "" {
		provided := r.Header.Get("X-Webhook-Token")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(wh.Token)) != 1 {
			observability.WebhookInbound.WithLabelValues("unauthorized").Inc()
			http.Error(w, ErrInvalidToken, http.StatusUnauthorized)
			return
		}
	}

	var p callbackPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		observability.WebhookInbound.WithLabelValues("bad_payload").Inc()
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	if p.SenderType == "bot" {
		// our own dashboard bot posts into the group too; don't loop
		observability.WebhookInbound.WithLabelValues("skipped_bot").Inc()
		w.WriteHeader(http.StatusOK)
		return
	}

	job := sqsqueue.InboundJob{
		Name:            p.Name,
		Text:            p.Text,
		CreatedAt:       p.CreatedAt,
		GroupID:         p.GroupID,
		SourceMessageID: p.ID,
	}
	if err := wh.Queue.Enqueue(r.Context(), job); err != nil {
		observability.WebhookInbound.WithLabelValues("enqueue_error").Inc()
		observability.Enqueues.WithLabelValues("error").Inc()
		slog.Error("webhook enqueue failed", "err", err, "source_message_id", p.ID, "group_id", p.GroupID)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	observability.WebhookInbound.WithLabelValues("ok").Inc()
	observability.Enqueues.WithLabelValues("ok").Inc()
	w.WriteHeader(http.StatusOK)
}
