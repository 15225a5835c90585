package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/feed"
)

var (
	// tail flags
	logDir       string
	format       string
	kindNames    []string
	excludeNames []string
	includeRaw   bool
	botName      string
	replayLast   int
	showDeltas   bool
	listenAddr   string
	workers      int
	dedupWindow  time.Duration
	poll         bool
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Follow a server's console log and output events",
	Long: `Follow the newest qconsole.log of a Quake Live server and output every
classified block. A roster of the players on the server is kept while
following.

Results are output as JSON Lines when stdout is not a terminal, which makes
it easy to process with tools like jq.

Examples:
  # Follow with default settings (auto-detect log directory)
  qlconsole tail

  # Specify log directory
  qlconsole tail --log-dir ~/.steam/steamapps/common/"Quake Live"/baseq3

  # Only player notices
  qlconsole tail --types player_connected,player_disconnected,player_kicked,player_ragequit

  # Print roster changes instead of results
  qlconsole tail --deltas --bot-name MyBot

  # Serve the roster over HTTP and a websocket at /deltas
  qlconsole tail --listen :8080

  # Replay the whole log first
  qlconsole tail --replay-last 0

  # Pipe to jq for filtering
  qlconsole tail | jq 'select(.kind == "player_connected")'`,
	RunE: runTail,
}

func init() {
	tailCmd.Flags().StringVarP(&logDir, "log-dir", "d", "",
		"Quake Live log directory (auto-detected if not specified)")
	tailCmd.Flags().StringVarP(&format, "format", "f", "auto",
		"Output format: auto, jsonl, pretty")
	tailCmd.Flags().StringSliceVarP(&kindNames, "types", "t", nil,
		"Kinds to show (comma-separated, e.g. player_connected,map_loaded)")
	tailCmd.Flags().StringSliceVar(&excludeNames, "exclude-types", nil,
		"Kinds to hide (comma-separated)")
	tailCmd.Flags().BoolVar(&includeRaw, "raw", false,
		"Include the raw block in output")
	tailCmd.Flags().StringVar(&botName, "bot-name", "",
		"Account name of the client writing the log; never listed as a player")
	tailCmd.Flags().IntVar(&replayLast, "replay-last", -1,
		"Replay last N lines before tailing (-1 = disabled, 0 = from start)")
	tailCmd.Flags().BoolVar(&showDeltas, "deltas", false,
		"Output roster changes instead of classified blocks")
	tailCmd.Flags().StringVar(&listenAddr, "listen", "",
		"Serve /roster, /deltas and /metrics on this address (e.g. :8080)")
	tailCmd.Flags().IntVar(&workers, "workers", 0,
		"Classification workers (0 = number of CPUs)")
	tailCmd.Flags().DurationVar(&dedupWindow, "dedup", 0,
		"Drop repeated player notices within this window (0 = disabled)")
	tailCmd.Flags().BoolVar(&poll, "poll", false,
		"Poll the log file instead of using file system notifications")

	_ = tailCmd.RegisterFlagCompletionFunc("types", completeKinds)
	_ = tailCmd.RegisterFlagCompletionFunc("exclude-types", completeKinds)
	_ = tailCmd.RegisterFlagCompletionFunc("format", completeFormats)

	rootCmd.AddCommand(tailCmd)
}

// replayConfig maps --replay-last to a replay configuration.
func replayConfig(last int) qlconsole.ReplayConfig {
	switch {
	case last == 0:
		return qlconsole.ReplayConfig{Mode: qlconsole.ReplayFromStart}
	case last > 0:
		return qlconsole.ReplayConfig{Mode: qlconsole.ReplayLastN, LastN: last}
	default:
		return qlconsole.ReplayConfig{}
	}
}

func runTail(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	outFormat, err := resolveFormat(format, os.Stdout)
	if err != nil {
		return err
	}
	include, err := NormalizeKinds(kindNames)
	if err != nil {
		return fmt.Errorf("--types: %w", err)
	}
	exclude, err := NormalizeKinds(excludeNames)
	if err != nil {
		return fmt.Errorf("--exclude-types: %w", err)
	}
	if err := RejectOverlap(include, exclude); err != nil {
		return err
	}
	table, err := loadTable()
	if err != nil {
		return err
	}

	logger := newLogger(cmd.ErrOrStderr())
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())

	engineOpts := []qlconsole.Option{
		qlconsole.WithTable(table),
		qlconsole.WithSelfName(botName),
		qlconsole.WithLogger(logger),
		qlconsole.WithMetrics(qlconsole.NewMetrics(reg)),
		qlconsole.WithIncludeRaw(includeRaw),
		qlconsole.WithNoticeDedup(dedupWindow),
	}
	if workers > 0 {
		engineOpts = append(engineOpts, qlconsole.WithWorkers(workers))
	}

	var deltas *qlconsole.ChannelSink
	if showDeltas {
		deltas = qlconsole.NewChannelSink(256)
		engineOpts = append(engineOpts, qlconsole.WithSink(deltas))
	}
	var hub *feed.Hub
	if listenAddr != "" {
		hub = feed.NewHub(0)
		engineOpts = append(engineOpts, qlconsole.WithSink(hub))
	}

	engine, err := qlconsole.NewEngine(engineOpts...)
	if err != nil {
		return err
	}

	watcher, err := qlconsole.NewWatcher(
		qlconsole.WithLogDir(logDir),
		qlconsole.WithEngine(engine),
		qlconsole.WithReplay(replayConfig(replayLast)),
		qlconsole.WithFilter(include, exclude),
		qlconsole.WithPolling(poll),
		qlconsole.WithWatchLogger(logger),
	)
	if err != nil {
		return err
	}
	defer watcher.Close()

	if hub != nil {
		srv := feed.New(engine.Projector(), hub, feed.WithLogger(logger), feed.WithGatherer(reg))
		go func() {
			if err := srv.ListenAndServe(ctx, listenAddr); err != nil {
				logger.Error("feed server stopped", "addr", listenAddr, "error", err)
				stop()
			}
		}()
	}

	results, errs, err := watcher.Watch(ctx)
	if err != nil {
		return err
	}

	var deltaCh <-chan qlconsole.RosterDelta
	if deltas != nil {
		deltaCh = deltas.C()
	}
	return outputLoop(ctx, outFormat, results, deltaCh, errs, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// outputLoop writes results, or deltas when deltaCh is set, until the
// results channel closes or ctx is done.
func outputLoop(ctx context.Context, outFormat string, results <-chan event.Result,
	deltaCh <-chan qlconsole.RosterDelta, errs <-chan error, out, errOut io.Writer) error {
	for {
		select {
		case res, ok := <-results:
			if !ok {
				return nil
			}
			if deltaCh != nil {
				continue
			}
			if err := OutputResult(outFormat, res, out); err != nil {
				return fmt.Errorf("output error: %w", err)
			}

		case d := <-deltaCh:
			if err := OutputDelta(outFormat, d, out); err != nil {
				return fmt.Errorf("output error: %w", err)
			}

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintf(errOut, "warning: %v\n", err)

		case <-ctx.Done():
			return nil
		}
	}
}
