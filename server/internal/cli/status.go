package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/reportvault/server/internal/ledger"
	"github.com/obsidianstack/reportvault/server/internal/queue"
)

// StatusResult is the data of the status command.
type StatusResult struct {
	queue.Status
	Target string                  `json:"target"`
	Ledger map[queue.Outcome]int64 `json:"ledger,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show pending queue items and journaled outcomes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(rootOpts, cmd)
		},
	}
}

func runStatus(opts *RootOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}

	st, err := queue.Inspect(cfg.Queue.Dir)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeStorage, "inspect queue", err)
	}
	res := StatusResult{Status: st, Target: cfg.Queue.TargetCollection}

	if p := cfg.Ledger.Path; p != "" {
		counts, err := ledgerCounts(cmd.Context(), p)
		if err != nil {
			return out.Fail(ExitFailure, ErrCodeStorage, "read ledger", err)
		}
		res.Ledger = counts
	}

	var b strings.Builder
	fmt.Fprintf(&b, "queue:   %s\n", st.QueuePath)
	fmt.Fprintf(&b, "target:  %s\n", res.Target)
	fmt.Fprintf(&b, "pending: %d files, %d bytes\n", st.FileCount, st.TotalSizeBytes)
	if res.Ledger != nil {
		fmt.Fprintf(&b, "ledger:  %d ingested, %d poisoned, %d retained, %d skipped\n",
			res.Ledger[queue.Ingested], res.Ledger[queue.Poisoned],
			res.Ledger[queue.Retained], res.Ledger[queue.Skipped])
	}
	return out.Success(res, b.String())
}

// ledgerCounts reads outcome counts without creating a missing database.
func ledgerCounts(ctx context.Context, path string) (map[queue.Outcome]int64, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return map[queue.Outcome]int64{}, nil
	}
	l, err := ledger.Open(path)
	if err != nil {
		return nil, err
	}
	defer l.Close()
	if ctx == nil {
		ctx = context.Background()
	}
	return l.Counts(ctx)
}
