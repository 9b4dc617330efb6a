package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // overrides database.path
	Models   string // overrides models
	Config   string // optional YAML config file
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the tingo CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tingo",
		Short: "tingo - embedded document store for ORM models",
		Long: `Query and modify an embedded tingodb document store through the same
connector an ORM uses.

Models come from a CUE file (--models). Without one, every model is
schemaless and stored in a collection of the same name.

Settings are read from --config, then from TINGO_* environment variables
(TINGO_DATABASE_PATH, TINGO_MODELS, TINGO_LOGGING_LEVEL, ...). A .env file
in the working directory is loaded first. Flags win over both.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the database file")
	cmd.PersistentFlags().StringVar(&opts.Models, "models", "", "CUE file or directory with model definitions")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "YAML config file")

	// Document commands
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewUpsertCommand(opts))
	cmd.AddCommand(NewDestroyCommand(opts))

	// Query commands
	cmd.AddCommand(NewAllCommand(opts))
	cmd.AddCommand(NewCountCommand(opts))
	cmd.AddCommand(NewDestroyAllCommand(opts))
	cmd.AddCommand(NewCollectionsCommand(opts))

	// Tooling
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
