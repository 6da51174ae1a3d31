package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"respondr/internal/domain"
	"respondr/internal/service"
	"respondr/internal/storage"
	"respondr/internal/util"
)

// API serves the dashboard: read access to responder records plus the
// administrative write operations. Extraction or normalization problems never
// show up here; they live on the records as Unknown/nil fields.
type API struct {
	Svc *service.Dashboard
}

func (a *API) Register(r *mux.Router) {
	r.HandleFunc("/v1/responders", a.handleList).Methods(http.MethodGet)
	r.HandleFunc("/v1/responders", a.handleCreate).Methods(http.MethodPost)
	r.HandleFunc("/v1/responders/{id}", a.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/v1/responders/{id}", a.handleUpdate).Methods(http.MethodPatch)
	r.HandleFunc("/v1/responders/{id}", a.handleSoftDelete).Methods(http.MethodDelete)
	r.HandleFunc("/v1/responders/{id}/undelete", a.handleUndelete).Methods(http.MethodPost)
	r.HandleFunc("/v1/responders/{id}/purge", a.handlePurge).Methods(http.MethodDelete)
}

func (a *API) handleList(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("group_id")
	includeDeleted := r.URL.Query().Get("include_deleted") == "true"

	recs, err := a.Svc.List(r.Context(), groupID, includeDeleted, util.NowUTC())
	if err != nil {
		slog.Error("list responders failed", "err", err, "group_id", groupID)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (a *API) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, found, err := a.Svc.Get(r.Context(), id, util.NowUTC())
	if err != nil {
		slog.Error("get responder failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	if !found {
		http.Error(w, ErrNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	rec, err := a.Svc.Create(r.Context(), req, util.NowUTC())
	if err != nil {
		if errors.Is(err, domain.ErrMissingFields) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Error("create responder failed", "err", err, "group_id", req.GroupID)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var patch domain.RecordPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		http.Error(w, ErrInvalidJSON, http.StatusBadRequest)
		return
	}
	rec, err := a.Svc.Update(r.Context(), id, patch, util.NowUTC())
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			http.Error(w, ErrNotFound, http.StatusNotFound)
		case errors.Is(err, domain.ErrTextImmutable):
			http.Error(w, ErrTextImmutable, http.StatusBadRequest)
		default:
			slog.Error("update responder failed", "err", err, "id", id)
			http.Error(w, ErrDependency, http.StatusBadGateway)
		}
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) handleSoftDelete(w http.ResponseWriter, r *http.Request) {
	a.mutate(w, r, a.Svc.SoftDelete, "soft delete")
}

func (a *API) handleUndelete(w http.ResponseWriter, r *http.Request) {
	a.mutate(w, r, a.Svc.Undelete, "undelete")
}

func (a *API) handlePurge(w http.ResponseWriter, r *http.Request) {
	a.mutate(w, r, a.Svc.Purge, "purge")
}

func (a *API) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) error, name string) {
	id := mux.Vars(r)["id"]
	if err := op(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, ErrNotFound, http.StatusNotFound)
			return
		}
		slog.Error(name+" responder failed", "err", err, "id", id)
		http.Error(w, ErrDependency, http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
