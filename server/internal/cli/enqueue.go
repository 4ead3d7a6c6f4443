package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/reportvault/server/internal/queue"
)

// EnqueueResult is the data of a successful enqueue.
type EnqueueResult struct {
	File       string `json:"file"`
	Path       string `json:"path"`
	Collection string `json:"collection"`
}

// NewEnqueueCommand creates the enqueue command.
func NewEnqueueCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <file|->",
		Short: "Drop a JSON report into the ingestion queue",
		Long: `Drop a JSON object into the queue directory. The daemon appends it to the
target collection and removes the queued file. Use "-" to read from stdin.

An item without an "id" field gets the queued file's name as its id.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEnqueue(rootOpts, cmd, args[0])
		},
	}
}

func runEnqueue(opts *RootOptions, cmd *cobra.Command, src string) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}

	var body []byte
	if src == "-" {
		body, err = io.ReadAll(cmd.InOrStdin())
	} else {
		body, err = os.ReadFile(src)
	}
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeInput, "read item", err)
	}

	path, err := queue.Enqueue(cfg.Queue.Dir, body)
	if err != nil {
		if errors.Is(err, queue.ErrNotObject) {
			return out.Fail(ExitCommandError, ErrCodeInput, "item must be a JSON object", nil)
		}
		return out.Fail(ExitFailure, ErrCodeStorage, "enqueue", err)
	}

	res := EnqueueResult{File: filepath.Base(path), Path: path, Collection: cfg.Queue.TargetCollection}
	return out.Success(res, fmt.Sprintf("queued %s for %s\n", res.File, res.Collection))
}
