package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewCollectionsCommand creates the collections command.
func NewCollectionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the collections in the data root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := rootOpts.formatter(cmd)

			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return out.Fail(ExitCommandError, ErrCodeConfig, "load config", err)
			}
			st, err := openStore(cfg)
			if err != nil {
				return out.Fail(ExitFailure, ErrCodeStorage, "open store", err)
			}
			names, err := st.ListCollections()
			if err != nil {
				return out.Fail(ExitFailure, ErrCodeStorage, "list collections", err)
			}
			if names == nil {
				names = []string{}
			}

			text := strings.Join(names, "\n")
			if text != "" {
				text += "\n"
			}
			return out.Success(names, text)
		},
	}
}
