package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	app "github.com/itemgrid/itemgrid/internal/app"
	"github.com/itemgrid/itemgrid/internal/app/domain/item"
	"github.com/itemgrid/itemgrid/internal/app/events"
	"github.com/itemgrid/itemgrid/internal/app/metrics"
	"github.com/itemgrid/itemgrid/internal/app/storage"
)

// maxBodyBytes caps request bodies before JSON decoding.
const maxBodyBytes = 1 << 20

// handler bundles HTTP endpoints for the item service.
type handler struct {
	app   *app.Application
	watch *watchHub
	audit *auditLog
}

// NewHandler returns a router exposing the item REST API, the watch stream,
// and the operational endpoints. Audit entries stay in memory.
func NewHandler(application *app.Application) http.Handler {
	return newHandler(application, nil)
}

// NewHandlerWithAudit additionally appends audit entries to a JSONL file at
// auditPath.
func NewHandlerWithAudit(application *app.Application, auditPath string) (http.Handler, error) {
	sink, err := newFileAuditSink(auditPath)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return newHandler(application, sink), nil
}

func newHandler(application *app.Application, sink auditSink) http.Handler {
	h := &handler{
		app:   application,
		watch: newWatchHub(application.Events),
		audit: newAuditLog(0, sink),
	}

	r := mux.NewRouter()
	r.HandleFunc("/items", h.listItems).Methods(http.MethodGet)
	r.HandleFunc("/items", h.createItem).Methods(http.MethodPost)
	r.HandleFunc("/items/events", h.listEvents).Methods(http.MethodGet)
	r.HandleFunc("/items/watch", h.watchItems).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}", h.getItem).Methods(http.MethodGet)
	r.HandleFunc("/items/{id}", h.updateItem).Methods(http.MethodPut)
	r.HandleFunc("/items/{id}", h.deleteItem).Methods(http.MethodDelete)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)
	r.HandleFunc("/audit", h.listAudit).Methods(http.MethodGet)
	r.HandleFunc("/openapi.json", h.openapiDocument).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	return h.withAudit(r)
}

func (h *handler) listItems(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Items.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []item.Item{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *handler) createItem(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Attributes map[string]any `json:"attributes"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	created, err := h.app.Items.Create(r.Context(), payload.Attributes)
	metrics.RecordItemMutation("create", time.Since(start), err == nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *handler) getItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	it, err := h.app.Items.Get(r.Context(), id)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (h *handler) updateItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var payload struct {
		Attributes map[string]any `json:"attributes"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	updated, err := h.app.Items.Update(r.Context(), id, payload.Attributes)
	metrics.RecordItemMutation("update", time.Since(start), err == nil)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	start := time.Now()
	err := h.app.Items.Delete(r.Context(), id)
	metrics.RecordItemMutation("delete", time.Since(start), err == nil)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, storage.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	var recent []events.Event
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		recent = h.app.Events.RecentByType(events.EventType(raw), limit)
	} else {
		recent = h.app.Events.Recent(limit)
	}
	if recent == nil {
		recent = []events.Event{}
	}
	writeJSON(w, http.StatusOK, recent)
}

func (h *handler) watchItems(w http.ResponseWriter, r *http.Request) {
	h.watch.serve(w, r)
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if !h.app.Healthy() {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":   status,
		"services": h.app.Statuses(),
	})
}

func (h *handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	writeJSON(w, http.StatusOK, h.audit.listLimit(limit))
}

func decodeJSON(body io.ReadCloser, dst interface{}) error {
	defer body.Close()
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
