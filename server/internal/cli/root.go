package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/obsidianstack/reportvault/server/internal/config"
	"github.com/obsidianstack/reportvault/server/internal/docstore"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "config.yaml"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"

	// configSet records whether --config was passed explicitly.
	configSet bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for vaultctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "vaultctl",
		Short: "vaultctl - operate a reportvault data root",
		Long: `Operate a reportvault data root: enqueue reports for ingestion,
inspect the queue and read collections. Works on the files directly and does
not need the daemon to be running.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.configSet = cmd.Flags().Changed("config")
			level := slog.LevelWarn
			if opts.Verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", DefaultConfigPath, "path to config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewEnqueueCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewCollectionsCommand(opts))

	return cmd
}

// loadConfig reads the configured file. A missing default config.yaml falls
// back to the built-in defaults; a missing explicit --config is an error.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		if !o.configSet && errors.Is(err, fs.ErrNotExist) {
			slog.Debug("cli: no config file, using defaults", "path", o.ConfigPath)
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// openStore opens the document store described by cfg.
func openStore(cfg *config.Config) (*docstore.Store, error) {
	return docstore.New(cfg.Store.DataRoot, docstore.Options{
		Attempts: cfg.Store.Retry.Attempts,
		Delay:    cfg.Store.Retry.Delay,
		Strict:   cfg.Store.Strict,
	})
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: o.Format, Writer: cmd.OutOrStdout()}
}
