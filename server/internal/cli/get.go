package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/reportvault/server/internal/docstore"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> [id]",
		Short: "Print a collection or one document",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 2 {
				id = args[1]
			}
			return runGet(rootOpts, cmd, args[0], id)
		},
	}
}

func runGet(opts *RootOptions, cmd *cobra.Command, name, id string) error {
	out := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return out.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
	}
	st, err := openStore(cfg)
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeStorage, "open store", err)
	}

	var data any
	if id == "" {
		docs, err := st.ReadCollection(name)
		if err != nil {
			return storeFail(out, err)
		}
		data = docs
	} else {
		doc, ok, err := st.FindByID(name, id)
		if err != nil {
			return storeFail(out, err)
		}
		if !ok {
			return out.Fail(ExitCommandError, ErrCodeNotFound, (&docstore.NotFoundError{Collection: name, ID: id}).Error(), nil)
		}
		data = doc
	}

	text, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return out.Fail(ExitFailure, ErrCodeStorage, "encode", err)
	}
	return out.Success(data, string(text)+"\n")
}

func storeFail(out *OutputFormatter, err error) error {
	if errors.Is(err, docstore.ErrInvalidName) {
		return out.Fail(ExitCommandError, ErrCodeInput, "invalid collection name", err)
	}
	return out.Fail(ExitFailure, ErrCodeStorage, "read collection", err)
}
