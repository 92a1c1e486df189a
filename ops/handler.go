package ops

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/pawish/deck-ticker/ticker"
)

// InstanceLister provides the live instance table.
type InstanceLister interface {
	ListAll() []ticker.InstanceInfo
}

// Handler serves the ops endpoints.
type Handler struct {
	instances InstanceLister
	buf       *Buffer
	logger    *slog.Logger
	version   string
	startedAt time.Time
}

// NewHandler creates an ops Handler.
func NewHandler(instances InstanceLister, buf *Buffer, logger *slog.Logger, version string, startedAt time.Time) *Handler {
	return &Handler{
		instances: instances,
		buf:       buf,
		logger:    logger,
		version:   version,
		startedAt: startedAt,
	}
}

// RegisterRoutes mounts the ops endpoints on mux, each wrapped by mw.
func (h *Handler) RegisterRoutes(mux *http.ServeMux, mw func(http.Handler) http.Handler) {
	mux.Handle("/ops/health", mw(http.HandlerFunc(h.serveHealth)))
	mux.Handle("/ops/instances", mw(http.HandlerFunc(h.serveInstances)))
	mux.Handle("/ops/logs", mw(http.HandlerFunc(h.serveLogs)))
	mux.Handle("/ops/logs/stream", mw(http.HandlerFunc(h.serveLogStream)))
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Instances int    `json:"instances"`
}

func (h *Handler) serveHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, healthResponse{
		Status:    "ok",
		Version:   h.version,
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Instances: len(h.instances.ListAll()),
	})
}

func (h *Handler) serveInstances(w http.ResponseWriter, r *http.Request) {
	list := h.instances.ListAll()
	if list == nil {
		list = []ticker.InstanceInfo{}
	}
	h.writeJSON(w, list)
}

func (h *Handler) serveLogs(w http.ResponseWriter, r *http.Request) {
	n := 100
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			http.Error(w, "invalid n", http.StatusBadRequest)
			return
		}
		n = parsed
	}

	records := h.buf.Recent(n)
	if records == nil {
		records = []Record{}
	}
	h.writeJSON(w, records)
}

// serveLogStream tails the log buffer as Server-Sent Events.
func (h *Handler) serveLogStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	id, ch := h.buf.Subscribe()
	defer h.buf.Unsubscribe(id)
	h.logger.Debug("Log stream started", "subscriber", id)

	keepalive := time.NewTicker(15 * time.Second)
	defer keepalive.Stop()

	done := r.Context().Done()
	for {
		select {
		case <-done:
			h.logger.Debug("Log stream closed", "subscriber", id)
			return

		case rec := <-ch:
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			if _, err := w.Write(append(append([]byte("data: "), data...), '\n', '\n')); err != nil {
				return
			}
			flusher.Flush()

		case <-keepalive.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to encode ops response", "error", err)
	}
}
