// Command qlconsole classifies Quake Live server console output.
//
// It can follow a running server's qconsole.log and print what happens on
// the server, classify saved console output, and list the active rules.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/pattern"
)

var (
	verbose      bool
	patternsFile string
)

var rootCmd = &cobra.Command{
	Use:   "qlconsole",
	Short: "Classify Quake Live server console output",
	Long: `qlconsole reads Quake Live server console output, classifies each block
(player notices, command responses, map changes) and keeps a live roster of
the players on the server.

Flag defaults can be set with QLCONSOLE_* environment variables, e.g.
QLCONSOLE_LOGDIR, QLCONSOLE_BOT_NAME, QLCONSOLE_FORMAT, QLCONSOLE_LISTEN.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return applyConfig(cmd, cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&patternsFile, "patterns", "",
		"YAML rule file replacing the built-in rules")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newLogger returns the CLI's logger. Only warnings are shown unless
// --verbose is set.
func newLogger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadTable returns the rule table selected by --patterns.
func loadTable() (*pattern.Table, error) {
	if patternsFile == "" {
		return pattern.Default()
	}
	t, err := pattern.LoadTable(patternsFile)
	if err != nil {
		// Errors from the pattern package do not carry the path.
		return nil, fmt.Errorf("pattern file: %w", err)
	}
	return t, nil
}
