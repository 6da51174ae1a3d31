package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"respondr/internal/domain"
	sqsqueue "respondr/internal/queue/sqs"
	"respondr/internal/service"
	"respondr/internal/storage/memory"
	"respondr/internal/util"
)

func newAPI() (*API, *memory.Store) {
	store := memory.New()
	return &API{Svc: &service.Dashboard{Store: store, IDGen: util.NewRecordID}}, store
}

func seed(t *testing.T, store *memory.Store, id string) domain.ResponderMessage {
	t.Helper()
	rec := domain.ResponderMessage{
		ID:            id,
		GroupID:       "g1",
		Name:          "Alice",
		Text:          "Taking SAR78, ETA 15 minutes",
		ReceivedAt:    time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC),
		Vehicle:       "SAR-78",
		ArrivalStatus: domain.StatusResponding,
	}
	if err := store.Upsert(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	return rec
}

func serve(api *API, req *http.Request) *httptest.ResponseRecorder {
	s := New()
	api.Register(s.Mux)
	rr := httptest.NewRecorder()
	s.Mux.ServeHTTP(rr, req)
	return rr
}

func TestListExcludesDeletedByDefault(t *testing.T) {
	api, store := newAPI()
	seed(t, store, "keep")
	seed(t, store, "gone")
	if err := store.SoftDelete(context.Background(), "gone"); err != nil {
		t.Fatal(err)
	}

	rr := serve(api, httptest.NewRequest(http.MethodGet, "/v1/responders?group_id=g1", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var recs []domain.ResponderMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].ID != "keep" {
		t.Fatalf("records = %v", recs)
	}

	rr = serve(api, httptest.NewRequest(http.MethodGet, "/v1/responders?group_id=g1&include_deleted=true", nil))
	if err := json.Unmarshal(rr.Body.Bytes(), &recs); err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected both records, got %d", len(recs))
	}
}

func TestGetNotFound(t *testing.T) {
	api, _ := newAPI()
	rr := serve(api, httptest.NewRequest(http.MethodGet, "/v1/responders/none", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCreateAndGet(t *testing.T) {
	api, _ := newAPI()
	body := bytes.NewBufferString(`{"groupId":"g1","name":"Ops","text":"manual entry"}`)
	rr := serve(api, httptest.NewRequest(http.MethodPost, "/v1/responders", body))
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var rec domain.ResponderMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.ID == "" || rec.ArrivalStatus != domain.StatusUnknown {
		t.Fatalf("created record: %+v", rec)
	}

	rr = serve(api, httptest.NewRequest(http.MethodGet, "/v1/responders/"+rec.ID, nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestCreateMissingText(t *testing.T) {
	api, _ := newAPI()
	rr := serve(api, httptest.NewRequest(http.MethodPost, "/v1/responders", bytes.NewBufferString(`{"groupId":"g1"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestUpdateRejectsTextEdit(t *testing.T) {
	api, store := newAPI()
	seed(t, store, "r1")

	body := bytes.NewBufferString(`{"text":"rewritten history"}`)
	rr := serve(api, httptest.NewRequest(http.MethodPatch, "/v1/responders/r1", body))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	body = bytes.NewBufferString(`{"vehicle":"POV"}`)
	rr = serve(api, httptest.NewRequest(http.MethodPatch, "/v1/responders/r1", body))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rr.Code, rr.Body.String())
	}
	var rec domain.ResponderMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Vehicle != domain.VehiclePOV {
		t.Errorf("vehicle = %q", rec.Vehicle)
	}
}

func TestDeleteUndeletePurge(t *testing.T) {
	api, store := newAPI()
	seed(t, store, "r1")

	if rr := serve(api, httptest.NewRequest(http.MethodDelete, "/v1/responders/r1", nil)); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", rr.Code)
	}
	if rr := serve(api, httptest.NewRequest(http.MethodPost, "/v1/responders/r1/undelete", nil)); rr.Code != http.StatusNoContent {
		t.Fatalf("undelete status = %d", rr.Code)
	}
	if rr := serve(api, httptest.NewRequest(http.MethodDelete, "/v1/responders/r1/purge", nil)); rr.Code != http.StatusNoContent {
		t.Fatalf("purge status = %d", rr.Code)
	}
	if rr := serve(api, httptest.NewRequest(http.MethodDelete, "/v1/responders/r1", nil)); rr.Code != http.StatusNotFound {
		t.Fatalf("delete after purge status = %d", rr.Code)
	}
}

type fakeQueue struct {
	jobs []sqsqueue.InboundJob
	err  error
}

func (f *fakeQueue) Enqueue(ctx context.Context, job sqsqueue.InboundJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func serveWebhook(wh *Webhook, req *http.Request) *httptest.ResponseRecorder {
	s := New()
	wh.Register(s.Mux)
	rr := httptest.NewRecorder()
	s.Mux.ServeHTTP(rr, req)
	return rr
}

func TestWebhookEnqueues(t *testing.T) {
	q := &fakeQueue{}
	wh := &Webhook{Queue: q, Token: "s3cret"}

	body := bytes.NewBufferString(`{"id":"m1","created_at":1754049600,"group_id":"g1","name":"Alice","text":"Taking SAR78, ETA 15 minutes","sender_type":"user"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/group", body)
	req.Header.Set("X-Webhook-Token", "s3cret")
	if rr := serveWebhook(wh, req); rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(q.jobs) != 1 || q.jobs[0].SourceMessageID != "m1" || q.jobs[0].CreatedAt != 1754049600 {
		t.Fatalf("jobs = %+v", q.jobs)
	}
}

func TestWebhookRejectsBadToken(t *testing.T) {
	wh := &Webhook{Queue: &fakeQueue{}, Token: "s3cret"}
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/group", bytes.NewBufferString(`{}`))
	req.Header.Set("X-Webhook-Token", "wrong")
	if rr := serveWebhook(wh, req); rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestWebhookSkipsBotMessages(t *testing.T) {
	q := &fakeQueue{}
	wh := &Webhook{Queue: q}
	body := bytes.NewBufferString(`{"id":"m2","created_at":1,"sender_type":"bot","text":"dashboard update"}`)
	if rr := serveWebhook(wh, httptest.NewRequest(http.MethodPost, "/v1/webhooks/group", body)); rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(q.jobs) != 0 {
		t.Fatal("bot message was enqueued")
	}
}

func TestWebhookEnqueueFailure(t *testing.T) {
	wh := &Webhook{Queue: &fakeQueue{err: errors.New("queue down")}}
	body := bytes.NewBufferString(`{"id":"m3","created_at":1,"text":"x"}`)
	if rr := serveWebhook(wh, httptest.NewRequest(http.MethodPost, "/v1/webhooks/group", body)); rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rr.Code)
	}
}
