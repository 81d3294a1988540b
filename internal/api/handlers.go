package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"

	"pumpwatch-backend/internal/bus"
	"pumpwatch-backend/internal/history"
	"pumpwatch-backend/internal/monitor"
	"pumpwatch-backend/internal/storage"
	"pumpwatch-backend/internal/tagcache"
)

// TagReader is the slice of the store the API needs for single-tag lookups.
type TagReader interface {
	TagByID(ctx context.Context, id int) (storage.TagDefinition, error)
}

type Handler struct {
	Cache   *tagcache.Cache
	Monitor *monitor.Service
	History *history.Service
	Tags    TagReader
	Logger  *slog.Logger
	Timeout time.Duration

	// SSE bridge; nil when the broker connection is not available.
	Bus              *bus.Conn
	BroadcastSubject string
}

type monitorDataRequest struct {
	PumpID   string `json:"pumpId"`
	FromDate string `json:"fromDate"`
	ToDate   string `json:"toDate"`
	Page     int    `json:"page"`
	PageSize int    `json:"pageSize"`
}

type historyRequest struct {
	EventType        string `json:"eventType"`
	SearchText       string `json:"searchText"`
	FromDate         string `json:"fromDate"`
	ToDate           string `json:"toDate"`
	IncludeLoginLogs *bool  `json:"includeLoginLogs"`
	Page             int    `json:"page"`
	PageSize         int    `json:"pageSize"`
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/monitor", func(r chi.Router) {
		r.Get("/tags", h.handleAllLatestTags)
		r.Get("/tags/{pumpId}", h.handleLatestTags)
		r.Get("/data", h.handleMonitorData)
		r.Post("/data", h.handleMonitorDataPost)
		r.Get("/pumps", h.handlePumps)
		r.Get("/stream", h.handleMonitorStream)
	})
	r.Route("/api/history", func(r chi.Router) {
		r.Get("/", h.handleHistory)
		r.Post("/search", h.handleHistorySearch)
		r.Get("/event-types", h.handleEventTypes)
	})
	r.Get("/api/tags/{id}", h.handleTagByID)
}

func (h *Handler) handleAllLatestTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Cache.AllLatest())
}

func (h *Handler) handleLatestTags(w http.ResponseWriter, r *http.Request) {
	pumpNumber, ok := parsePumpParam(chi.URLParam(r, "pumpId"))
	if !ok {
		// Unparseable pump ids are an empty success, not a fault.
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, h.Cache.Latest(pumpNumber))
}

func (h *Handler) handleMonitorData(w http.ResponseWriter, r *http.Request) {
	req := monitorDataRequest{
		PumpID:   r.URL.Query().Get("pumpId"),
		FromDate: r.URL.Query().Get("fromDate"),
		ToDate:   r.URL.Query().Get("toDate"),
		Page:     queryInt(r, "page", 1),
		PageSize: queryInt(r, "pageSize", 15),
	}
	h.serveMonitorData(w, r, req)
}

func (h *Handler) handleMonitorDataPost(w http.ResponseWriter, r *http.Request) {
	req := monitorDataRequest{Page: 1, PageSize: 15}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 15
	}
	h.serveMonitorData(w, r, req)
}

func (h *Handler) serveMonitorData(w http.ResponseWriter, r *http.Request, req monitorDataRequest) {
	pumpID := req.PumpID
	if pumpID == "" {
		pumpID = "pump1"
	}
	from, err := parseDate(req.FromDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "invalid fromDate"})
		return
	}
	to, err := parseDate(req.ToDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "invalid toDate"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	result, err := h.Monitor.MonitorData(ctx, pumpID, from, to, req.Page, req.PageSize)
	if err != nil {
		h.Logger.Error("monitor data query failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handlePumps(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	pumps, err := h.Monitor.Pumps(ctx)
	if err != nil {
		h.Logger.Error("pump list query failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, pumps)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	includeLogins := queryBool(r, "includeLoginLogs", true)
	req := historyRequest{
		EventType:        r.URL.Query().Get("eventType"),
		SearchText:       r.URL.Query().Get("searchText"),
		FromDate:         r.URL.Query().Get("fromDate"),
		ToDate:           r.URL.Query().Get("toDate"),
		IncludeLoginLogs: &includeLogins,
		Page:             queryInt(r, "page", 1),
		PageSize:         queryInt(r, "pageSize", 15),
	}
	h.serveHistory(w, r, req)
}

func (h *Handler) handleHistorySearch(w http.ResponseWriter, r *http.Request) {
	req := historyRequest{Page: 1, PageSize: 15}
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": err.Error()})
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 15
	}
	h.serveHistory(w, r, req)
}

func (h *Handler) serveHistory(w http.ResponseWriter, r *http.Request, req historyRequest) {
	from, err := parseDate(req.FromDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "invalid fromDate"})
		return
	}
	to, err := parseDate(req.ToDate)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "invalid toDate"})
		return
	}
	includeLogins := true
	if req.IncludeLoginLogs != nil {
		includeLogins = *req.IncludeLoginLogs
	}
	eventType := req.EventType
	if eventType == "" {
		eventType = "all"
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	result, err := h.History.History(ctx, history.Query{
		EventType:     eventType,
		SearchText:    req.SearchText,
		From:          from,
		To:            to,
		IncludeLogins: includeLogins,
		Page:          req.Page,
		PageSize:      req.PageSize,
	})
	if err != nil {
		h.Logger.Error("history query failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleEventTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.History.EventTypeOptions())
}

func (h *Handler) handleTagByID(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIntParam(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "message": "invalid tag id"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.Timeout)
	defer cancel()
	tag, err := h.Tags.TagByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "message": "tag not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "query failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":       tag.ID,
		"name":     tag.Name,
		"unit":     tag.Unit,
		"dataType": tag.DataType,
		"pumpId":   tag.PumpID,
		"isActive": tag.IsActive,
	})
}

// handleMonitorStream re-broadcasts TagUpdate envelopes to the client over
// SSE. Each client gets its own buffered subscription, so a stalled client
// only drops its own messages and never backs up ingestion.
func (h *Handler) handleMonitorStream(w http.ResponseWriter, r *http.Request) {
	if h.Bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "message": "realtime feed unavailable"})
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "message": "streaming unsupported"})
		return
	}
	ch := make(chan *nats.Msg, 64)
	sub, err := h.Bus.ChanSubscribe(h.BroadcastSubject, ch)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "message": "realtime feed unavailable"})
		return
	}
	defer func() { _ = sub.Unsubscribe() }()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg := <-ch:
			if _, err := w.Write([]byte("data: ")); err != nil {
				return
			}
			if _, err := w.Write(msg.Data); err != nil {
				return
			}
			if _, err := w.Write([]byte("\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
