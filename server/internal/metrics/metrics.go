package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/obsidianstack/reportvault/server/internal/queue"
)

// Metric names.
const (
	QueueFiles = "reportvault_queue_files"
	QueueBytes = "reportvault_queue_bytes"
	QueueItems = "reportvault_queue_items_total"
)

// Source is the queue view the metrics are computed from. *queue.Queue
// satisfies it.
type Source interface {
	Status() (queue.Status, error)
	Stats() queue.Stats
}

// Families builds the metric families for one snapshot.
func Families(st queue.Status, stats queue.Stats) []*dto.MetricFamily {
	items := &dto.MetricFamily{
		Name: proto.String(QueueItems),
		Help: proto.String("Queue items handled since start, by outcome."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	for _, c := range []struct {
		outcome queue.Outcome
		n       int64
	}{
		{queue.Ingested, stats.Ingested},
		{queue.Poisoned, stats.Poisoned},
		{queue.Retained, stats.Retained},
		{queue.Skipped, stats.Skipped},
	} {
		items.Metric = append(items.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{{Name: proto.String("outcome"), Value: proto.String(string(c.outcome))}},
			Counter: &dto.Counter{Value: proto.Float64(float64(c.n))},
		})
	}

	return []*dto.MetricFamily{
		gauge(QueueFiles, "Pending items in the queue directory.", float64(st.FileCount)),
		gauge(QueueBytes, "Total size of pending items in bytes.", float64(st.TotalSizeBytes)),
		items,
	}
}

// WriteText writes the families for one snapshot in text format.
func WriteText(w io.Writer, st queue.Status, stats queue.Stats) error {
	for _, mf := range Families(st, stats) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves the current snapshot of src.
func Handler(src Source) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		st, err := src.Status()
		if err != nil {
			slog.Error("metrics: queue status", "err", err)
			http.Error(w, "queue status unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		if err := WriteText(w, st, src.Stats()); err != nil {
			slog.Error("metrics: write", "err", err)
		}
	})
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: proto.Float64(v)}}},
	}
}
