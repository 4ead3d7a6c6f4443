package api

import (
	"github.com/obsidianstack/reportvault/server/internal/ledger"
	"github.com/obsidianstack/reportvault/server/internal/queue"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	// State is "ok", "degraded" (queue stopped) or "error" (queue unreadable).
	State           string `json:"state"`
	CollectionCount int    `json:"collection_count"`
	QueueFiles      int    `json:"queue_files"`
	QueueRunning    bool   `json:"queue_running"`
}

// QueueStatusResponse is the payload for GET /api/v1/queue/status and the
// data of every WebSocket "queue" message. The embedded Status keeps its
// queuePath/fileCount/totalSizeBytes field names.
type QueueStatusResponse struct {
	queue.Status
	Target      string           `json:"target"`
	Running     bool             `json:"running"`
	Stats       queue.Stats      `json:"stats"`
	Diagnostics []DiagnosticHint `json:"diagnostics"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// HistoryResponse is the payload for GET /api/v1/queue/history.
type HistoryResponse struct {
	Entries []ledger.Entry          `json:"entries"`
	Counts  map[queue.Outcome]int64 `json:"counts"`
}

// EnqueueResponse is the payload for POST /api/v1/collections/{name}/enqueue.
type EnqueueResponse struct {
	File       string `json:"file"`
	Collection string `json:"collection"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
