package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/qlconsole/qlconsole-go/internal/safefile"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
)

// maxBlockBytes bounds a block read with --hint.
const maxBlockBytes = 4 << 20

var (
	// parse flags
	parseFormat   string
	parseHint     string
	parseRoster   bool
	parseRaw      bool
	parseBotName  string
	parseMatching bool
)

var parseCmd = &cobra.Command{
	Use:   "parse [file...]",
	Short: "Classify saved console output",
	Long: `Classify console output read from files or stdin and output every block.

Files are read in order as one session, so --roster prints the roster the
server had at the end of the last file.

With --hint the whole input is classified as the response to one command.

Examples:
  # Classify a saved log
  qlconsole parse qconsole.log

  # Final roster only
  qlconsole parse --roster --format pretty qconsole.log

  # A players dump pasted on stdin
  qlconsole parse --hint players < dump.txt`,
	RunE: runParse,
}

func init() {
	parseCmd.Flags().StringVarP(&parseFormat, "format", "f", "auto",
		"Output format: auto, jsonl, pretty")
	parseCmd.Flags().StringVar(&parseHint, "hint", "",
		"Classify the whole input as the response to this kind of command")
	parseCmd.Flags().BoolVar(&parseRoster, "roster", false,
		"Only print the roster at the end of input")
	parseCmd.Flags().BoolVar(&parseRaw, "raw", false,
		"Include the raw block in output")
	parseCmd.Flags().StringVar(&parseBotName, "bot-name", "",
		"Account name of the client that wrote the log")
	parseCmd.Flags().BoolVar(&parseMatching, "matched-only", false,
		"Skip blocks classified as ignored")

	_ = parseCmd.RegisterFlagCompletionFunc("hint", completeKinds)
	_ = parseCmd.RegisterFlagCompletionFunc("format", completeFormats)

	rootCmd.AddCommand(parseCmd)
}

func runParse(cmd *cobra.Command, args []string) error {
	outFormat, err := resolveFormat(parseFormat, os.Stdout)
	if err != nil {
		return err
	}
	hint, err := ParseHint(parseHint)
	if err != nil {
		return fmt.Errorf("--hint: %w", err)
	}
	table, err := loadTable()
	if err != nil {
		return err
	}

	engine, err := qlconsole.NewEngine(
		qlconsole.WithTable(table),
		qlconsole.WithSelfName(parseBotName),
		qlconsole.WithIncludeRaw(parseRaw),
		qlconsole.WithLogger(newLogger(cmd.ErrOrStderr())),
	)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var outErr error
	emit := func(_ qlconsole.Block, res event.Result) {
		if outErr != nil || parseRoster || (parseMatching && !res.Matched()) {
			return
		}
		outErr = OutputResult(outFormat, res, out)
	}

	inputs := args
	if len(inputs) == 0 {
		inputs = []string{"-"}
	}
	for _, name := range inputs {
		if err := parseInput(cmd, engine, name, hint, emit); err != nil {
			return err
		}
		if outErr != nil {
			return fmt.Errorf("output error: %w", outErr)
		}
	}

	if parseRoster {
		return OutputSnapshot(outFormat, engine.Projector().Current(), out)
	}
	return nil
}

func parseInput(cmd *cobra.Command, engine *qlconsole.Engine, name string, hint event.Kind,
	emit func(qlconsole.Block, event.Result)) error {
	var r io.Reader = cmd.InOrStdin()
	if name != "-" {
		f, _, err := safefile.OpenRegular(name)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		defer f.Close()
		r = f
	}

	if hint == event.Ignored {
		if err := engine.ProcessReader(cmd.Context(), r, emit); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBlockBytes+1))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if len(data) > maxBlockBytes {
		return fmt.Errorf("%s: block larger than %d bytes", name, maxBlockBytes)
	}
	b := qlconsole.Block{Seq: 1, Text: string(data), Hint: hint}
	emit(b, engine.Apply(b))
	return nil
}
