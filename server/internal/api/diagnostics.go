package api

import (
	"fmt"

	"github.com/obsidianstack/reportvault/server/internal/queue"
)

// backlogWarn is the pending item count at which the queue is considered
// backed up.
const backlogWarn = 100

// DiagnosticHint is one human-readable insight about the ingestion queue.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints from a queue snapshot, critical first.
func computeDiagnostics(st queue.Status, stats queue.Stats, running bool) []DiagnosticHint {
	var hints []DiagnosticHint

	if !running {
		hints = append(hints, DiagnosticHint{
			Key:   "queue_stopped",
			Level: "critical",
			Title: "Queue stopped",
			Detail: "The ingestion queue is not watching its directory. " +
				"New reports will pile up in the queue folder and never reach the collection " +
				"until the daemon is restarted. Check the server log for a start-up error, " +
				"such as another consumer holding the queue lock.",
		})
	}

	if st.FileCount >= backlogWarn {
		v := float64(st.FileCount)
		hints = append(hints, DiagnosticHint{
			Key:   "backlog",
			Level: "warning",
			Title: fmt.Sprintf("%d items waiting", st.FileCount),
			Detail: fmt.Sprintf(
				"%d items (%d bytes) are waiting in %s. "+
					"Either producers are writing faster than the consumer can append, "+
					"or items keep failing and being retained. Compare the retained counter.",
				st.FileCount, st.TotalSizeBytes, st.QueuePath,
			),
			Value: &v,
		})
	}

	if stats.Retained > 0 && st.FileCount > 0 {
		v := float64(stats.Retained)
		hints = append(hints, DiagnosticHint{
			Key:   "retained",
			Level: "warning",
			Title: "Items awaiting retry",
			Detail: fmt.Sprintf(
				"%d append attempts failed with a storage error and the items were left in place. "+
					"They are retried on the next rescan. Persistent failures usually mean the "+
					"collection file is locked by another program or the data root is not writable.",
				stats.Retained,
			),
			Value: &v,
		})
	}

	if stats.Poisoned > 0 {
		v := float64(stats.Poisoned)
		hints = append(hints, DiagnosticHint{
			Key:   "poisoned",
			Level: "info",
			Title: fmt.Sprintf("%d poison items", stats.Poisoned),
			Detail: "Some items were not valid JSON objects or duplicated an existing id. " +
				"They were removed from the queue (or moved to the dead-letter directory when one " +
				"is configured) so they cannot block later items.",
			Value: &v,
		})
	}

	if len(hints) == 0 {
		v := float64(stats.Ingested)
		hints = append(hints, DiagnosticHint{
			Key:    "healthy",
			Level:  "ok",
			Title:  "All clear",
			Detail: fmt.Sprintf("The queue is running and %d items have been ingested so far.", stats.Ingested),
			Value:  &v,
		})
	}

	return hints
}
