// Package cli implements the footprint command line tool.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"example.com/footprint/internal/config"
	"example.com/footprint/internal/logging"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// state is shared by the subcommands once the root pre-run has loaded it.
type state struct {
	configPath string
	output     string
	debug      bool

	cfg    config.Config
	logger zerolog.Logger
}

// NewRootCmd creates the root command with calculate, convert, categories,
// summary and migrate subcommands.
func NewRootCmd(version string) *cobra.Command {
	st := &state{}

	cmd := &cobra.Command{
		Use:           "footprint",
		Short:         "Carbon footprint calculator and aggregation tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			level := cfg.LogLevel
			if st.debug {
				level = "debug"
			}
			st.cfg = cfg
			st.logger = logging.NewWithWriter(cmd.ErrOrStderr(), "footprint-cli", level, "console")

			if st.output != outputText && st.output != outputJSON {
				return fmt.Errorf("unknown output format %q", st.output)
			}
			return nil
		},
		Example: `  # Preview the emissions of a 120 km car trip
  footprint calculate --category travel --subcategory car --quantity 120 --unit km

  # Show the factor table
  footprint categories --output json

  # Summarise June for one owner
  footprint summary --tenant acme --owner u-42 --start 2024-06-01 --end 2024-06-30

  # Apply database migrations
  footprint migrate up`,
	}

	cmd.PersistentFlags().StringVar(&st.configPath, "config", os.Getenv("FOOTPRINT_CONFIG"), "path to a footprint.yaml config file")
	cmd.PersistentFlags().StringVarP(&st.output, "output", "o", outputText, "output format: text or json")
	cmd.PersistentFlags().BoolVar(&st.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newCalculateCmd(st),
		newConvertCmd(st),
		newCategoriesCmd(st),
		newSummaryCmd(st),
		newMigrateCmd(st),
	)
	return cmd
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
