package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/obsidianstack/reportvault/server/internal/docstore"
	"github.com/obsidianstack/reportvault/server/internal/ledger"
	"github.com/obsidianstack/reportvault/server/internal/queue"
)

// maxItemBytes bounds the body of an enqueue request.
const maxItemBytes = 1 << 20

// Collections is the read side of the cached collections facade.
type Collections interface {
	Read(name string) ([]docstore.Document, error)
	Find(name, id string) (docstore.Document, bool, error)
	List() ([]string, error)
}

// Queue is the view of the ingestion queue the API reports on.
type Queue interface {
	Dir() string
	Target() string
	Running() bool
	Status() (queue.Status, error)
	Stats() queue.Stats
}

// History is the outcome journal. A nil History disables /queue/history.
type History interface {
	Recent(ctx context.Context, limit int) ([]ledger.Entry, error)
	Counts(ctx context.Context) (map[queue.Outcome]int64, error)
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	colls   Collections
	queue   Queue
	history History
	mux     *http.ServeMux
}

// New creates a Handler and registers all routes. history may be nil.
func New(colls Collections, q Queue, history History) http.Handler {
	h := &Handler{colls: colls, queue: q, history: history, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/queue/status", h.queueStatus)
	h.mux.HandleFunc("/api/v1/queue/history", h.queueHistory)
	h.mux.HandleFunc("/api/v1/collections", h.listCollections)
	h.mux.HandleFunc("/api/v1/collections/", h.collection) // subtree: {name}[/{id}|/enqueue]

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := HealthResponse{State: "ok", QueueRunning: h.queue.Running()}
	if names, err := h.colls.List(); err != nil {
		slog.Warn("api: list collections", "err", err)
		resp.State = "error"
	} else {
		resp.CollectionCount = len(names)
	}
	if st, err := h.queue.Status(); err != nil {
		slog.Warn("api: queue status", "err", err)
		resp.State = "error"
	} else {
		resp.QueueFiles = st.FileCount
	}
	if resp.State == "ok" && !resp.QueueRunning {
		resp.State = "degraded"
	}
	jsonResp(w, http.StatusOK, resp)
}

// queueStatus returns GET /api/v1/queue/status.
func (h *Handler) queueStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	resp, err := BuildQueueStatus(h.queue)
	if err != nil {
		slog.Error("api: queue status", "err", err)
		jsonErr(w, http.StatusServiceUnavailable, "queue status unavailable")
		return
	}
	jsonResp(w, http.StatusOK, resp)
}

// queueHistory returns GET /api/v1/queue/history?limit=N.
func (h *Handler) queueHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.history == nil {
		jsonErr(w, http.StatusNotFound, "ledger disabled")
		return
	}

	limit := ledger.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	entries, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		slog.Error("api: ledger recent", "err", err)
		jsonErr(w, http.StatusInternalServerError, "ledger unavailable")
		return
	}
	counts, err := h.history.Counts(r.Context())
	if err != nil {
		slog.Error("api: ledger counts", "err", err)
		jsonErr(w, http.StatusInternalServerError, "ledger unavailable")
		return
	}
	jsonResp(w, http.StatusOK, HistoryResponse{Entries: entries, Counts: counts})
}

// listCollections returns GET /api/v1/collections.
func (h *Handler) listCollections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	names, err := h.colls.List()
	if err != nil {
		storeErr(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	jsonResp(w, http.StatusOK, names)
}

// collection dispatches /api/v1/collections/{name}[/{id}|/enqueue].
func (h *Handler) collection(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/collections/"), "/")
	if rest == "" {
		h.listCollections(w, r)
		return
	}

	parts := strings.Split(rest, "/")
	switch {
	case len(parts) == 2 && parts[1] == "enqueue" && r.Method == http.MethodPost:
		h.enqueue(w, r, parts[0])
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.readCollection(w, parts[0])
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.findDocument(w, parts[0], parts[1])
	case len(parts) > 2:
		jsonErr(w, http.StatusNotFound, "not found")
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) readCollection(w http.ResponseWriter, name string) {
	docs, err := h.colls.Read(name)
	if err != nil {
		storeErr(w, err)
		return
	}
	jsonResp(w, http.StatusOK, docs)
}

func (h *Handler) findDocument(w http.ResponseWriter, name, id string) {
	doc, ok, err := h.colls.Find(name, id)
	if err != nil {
		storeErr(w, err)
		return
	}
	if !ok {
		jsonErr(w, http.StatusNotFound, "document not found")
		return
	}
	jsonResp(w, http.StatusOK, doc)
}

// enqueue handles POST /api/v1/collections/{name}/enqueue. Only the queue's
// target collection accepts items.
func (h *Handler) enqueue(w http.ResponseWriter, r *http.Request, name string) {
	if name != h.queue.Target() {
		jsonErr(w, http.StatusNotFound, "collection "+name+" is not fed by the queue")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxItemBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonErr(w, http.StatusRequestEntityTooLarge, "item too large")
			return
		}
		jsonErr(w, http.StatusBadRequest, "read body failed")
		return
	}

	path, err := queue.Enqueue(h.queue.Dir(), body)
	if err != nil {
		if errors.Is(err, queue.ErrNotObject) {
			jsonErr(w, http.StatusBadRequest, "body must be a JSON object")
			return
		}
		slog.Error("api: enqueue", "collection", name, "err", err)
		jsonErr(w, http.StatusServiceUnavailable, "enqueue failed")
		return
	}

	slog.Info("api: item enqueued", "collection", name, "file", filepath.Base(path))
	jsonResp(w, http.StatusAccepted, EnqueueResponse{File: filepath.Base(path), Collection: name})
}

// BuildQueueStatus assembles the queue status payload shared by the REST API
// and the WebSocket hub.
func BuildQueueStatus(q Queue) (QueueStatusResponse, error) {
	st, err := q.Status()
	if err != nil {
		return QueueStatusResponse{}, err
	}
	stats := q.Stats()
	running := q.Running()
	return QueueStatusResponse{
		Status:      st,
		Target:      q.Target(),
		Running:     running,
		Stats:       stats,
		Diagnostics: computeDiagnostics(st, stats, running),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// storeErr maps a document store error to an HTTP status.
func storeErr(w http.ResponseWriter, err error) {
	var se *docstore.StorageError
	switch {
	case errors.Is(err, docstore.ErrInvalidName):
		jsonErr(w, http.StatusBadRequest, "invalid collection name")
	case errors.Is(err, docstore.ErrParse):
		slog.Error("api: corrupt collection", "err", err)
		jsonErr(w, http.StatusInternalServerError, "collection file is corrupt")
	case errors.As(err, &se):
		slog.Error("api: storage", "op", se.Op, "collection", se.Collection, "err", err)
		jsonErr(w, http.StatusServiceUnavailable, "storage busy, retry later")
	default:
		slog.Error("api: store", "err", err)
		jsonErr(w, http.StatusInternalServerError, "internal error")
	}
}
