package qlconsole

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/qlconsole/qlconsole-go/internal/logfinder"
	"github.com/qlconsole/qlconsole-go/internal/tailer"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
)

// watcherErrBuffer is the buffer size for the error channel.
const watcherErrBuffer = 16

// watcherBlockBuffer is how many assembled blocks may wait for a worker.
const watcherBlockBuffer = 64

// Watcher follows a Quake Live server's qconsole.log, feeds it through an
// Engine and emits the matched results.
type Watcher struct {
	cfg    watchConfig // immutable after creation
	logDir string
	log    *slog.Logger
	engine *Engine

	mu       sync.Mutex
	closed   bool
	cancel   context.CancelFunc
	doneCh   chan struct{} // closed when run exits
	watching bool
}

// NewWatcher creates a watcher. It validates options, locates the log
// directory and builds the engine, but does not start any goroutines.
//
// Example:
//
//	w, err := qlconsole.NewWatcher(
//	    qlconsole.WithLogDir("/srv/ql/baseq3"),
//	    qlconsole.WithEngineOptions(qlconsole.WithSelfName("minqlx")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	results, errs, err := w.Watch(ctx)
func NewWatcher(opts ...WatchOption) (*Watcher, error) {
	cfg := applyWatchOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	logDir, err := logfinder.FindLogDir(cfg.logDir)
	if err != nil {
		return nil, fmt.Errorf("finding log directory: %w", err)
	}

	log := cfg.logger
	if log == nil {
		log = discardLogger
	}

	engine := cfg.engine
	if engine == nil {
		engine, err = NewEngine(cfg.engineOpts...)
		if err != nil {
			return nil, err
		}
	}

	return &Watcher{
		cfg:    *cfg,
		logDir: logDir,
		log:    log,
		engine: engine,
	}, nil
}

// WatchWithOptions creates a watcher and starts watching. The watcher stops
// when ctx is cancelled; use NewWatcher and Watcher.Close for synchronous
// shutdown.
func WatchWithOptions(ctx context.Context, opts ...WatchOption) (<-chan event.Result, <-chan error, error) {
	w, err := NewWatcher(opts...)
	if err != nil {
		return nil, nil, err
	}
	return w.Watch(ctx)
}

// Engine returns the engine the watcher feeds. Its projector holds the
// roster built from the log.
func (w *Watcher) Engine() *Engine {
	return w.engine
}

// LogDir returns the resolved log directory.
func (w *Watcher) LogDir() string {
	return w.logDir
}

// Watch starts watching and returns the result and error channels. Every
// classified block is applied to the engine's projector; only matched
// results that pass the kind filter are sent on the result channel.
//
// Both channels are closed when ctx is cancelled, Close is called, or a
// fatal error occurs. Watch can only be called once per Watcher.
func (w *Watcher) Watch(ctx context.Context) (<-chan event.Result, <-chan error, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, nil, ErrWatcherClosed
	}
	if w.watching {
		return nil, nil, ErrAlreadyWatching
	}
	w.watching = true

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.doneCh = make(chan struct{})

	resultCh := make(chan event.Result)
	errCh := make(chan error, watcherErrBuffer)

	go w.run(ctx, resultCh, errCh)

	return resultCh, errCh, nil
}

// Close stops the watcher and waits for its goroutines to exit.
// Safe to call multiple times.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.cancel != nil {
		w.cancel()
	}
	doneCh := w.doneCh
	w.mu.Unlock()

	if doneCh != nil {
		<-doneCh
	}
	return nil
}

func (w *Watcher) run(ctx context.Context, resultCh chan<- event.Result, errCh chan<- error) {
	defer close(w.doneCh)
	defer close(errCh)
	defer close(resultCh)

	logFile, err := w.findLogFileWithWait(ctx, errCh)
	if err != nil {
		return
	}
	w.log.Debug("found latest log file", "path", logFile)

	blocks := make(chan Block, watcherBlockBuffer)
	processed := make(chan struct{})
	go func() {
		defer close(processed)
		err := w.engine.ProcessFunc(ctx, blocks, func(_ Block, res event.Result) {
			w.emit(ctx, res, resultCh)
		})
		if err != nil && ctx.Err() == nil {
			sendError(ctx, errCh, &WatchError{Op: WatchOpProcess, Path: logFile, Err: err})
		}
	}()
	// The processor must be gone before resultCh is closed.
	defer func() {
		close(blocks)
		<-processed
	}()

	w.follow(ctx, logFile, blocks, errCh)
}

func (w *Watcher) follow(ctx context.Context, logFile string, blocks chan<- Block, errCh chan<- error) {
	asm := w.engine.NewAssembler()
	send := func(bs ...Block) bool {
		for _, b := range bs {
			select {
			case blocks <- b:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	cfg := tailer.DefaultConfig()
	cfg.Poll = w.cfg.poll
	cfg.FromStart = w.cfg.replay.Mode == ReplayFromStart

	if w.cfg.replay.Mode == ReplayLastN && w.cfg.replay.LastN > 0 {
		w.log.Debug("replaying last N lines", "n", w.cfg.replay.LastN, "path", logFile)
		lines, err := readLastNLines(logFile, w.cfg.replay.LastN, w.cfg.maxReplayBytes, w.cfg.maxReplayLineBytes)
		if err != nil {
			sendError(ctx, errCh, &WatchError{Op: WatchOpReplay, Path: logFile, Err: err})
		}
		for _, line := range lines {
			if !send(asm.Push(line)...) {
				return
			}
		}
		if b, ok := asm.Flush(); ok && !send(b) {
			return
		}
	}

	t, err := tailer.New(ctx, logFile, cfg)
	if err != nil {
		sendError(ctx, errCh, &WatchError{Op: WatchOpTail, Path: logFile, Err: err})
		return
	}
	defer func() { _ = t.Stop() }()
	w.log.Debug("started tailing", "path", logFile, "from_start", cfg.FromStart)

	rotationTicker := time.NewTicker(w.cfg.pollInterval)
	defer rotationTicker.Stop()

	// flushTimer closes a command response after a quiet period.
	flushTimer := time.NewTimer(w.cfg.flushInterval)
	flushTimer.Stop()
	defer flushTimer.Stop()

	currentFile := logFile
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-t.Lines():
			if !ok {
				if b, ok := asm.Flush(); ok {
					send(b)
				}
				return
			}
			if !send(asm.Push(line)...) {
				return
			}
			if asm.Pending() {
				flushTimer.Reset(w.cfg.flushInterval)
			}
		case <-flushTimer.C:
			if b, ok := asm.Flush(); ok && !send(b) {
				return
			}
		case err, ok := <-t.Errors():
			if !ok {
				if b, ok := asm.Flush(); ok {
					send(b)
				}
				return
			}
			sendError(ctx, errCh, &WatchError{Op: WatchOpTail, Path: currentFile, Err: err})
		case <-rotationTicker.C:
			newFile, err := logfinder.FindLatestLogFile(w.logDir)
			if err != nil {
				sendError(ctx, errCh, &WatchError{Op: WatchOpRotation, Err: err})
				continue
			}
			if newFile == currentFile {
				continue
			}
			w.log.Debug("log rotation detected", "from", currentFile, "to", newFile)
			if b, ok := asm.Flush(); ok && !send(b) {
				return
			}
			_ = t.Stop()
			cfg := tailer.DefaultConfig()
			cfg.Poll = w.cfg.poll
			cfg.FromStart = true
			next, err := tailer.New(ctx, newFile, cfg)
			if err != nil {
				sendError(ctx, errCh, &WatchError{Op: WatchOpTail, Path: newFile, Err: err})
				return
			}
			t = next
			currentFile = newFile
		}
	}
}

// emit sends res to the consumer if it matched and passes the filter.
func (w *Watcher) emit(ctx context.Context, res event.Result, resultCh chan<- event.Result) {
	if !res.Matched() || !w.cfg.filter.Allows(res.Kind) {
		return
	}
	select {
	case resultCh <- res:
	case <-ctx.Done():
	}
}

// findLogFileWithWait finds the latest log file, optionally waiting for one
// to appear. Errors are also sent to errCh.
func (w *Watcher) findLogFileWithWait(ctx context.Context, errCh chan<- error) (string, error) {
	logFile, err := logfinder.FindLatestLogFile(w.logDir)
	if err == nil {
		return logFile, nil
	}
	if !errors.Is(err, ErrNoLogFiles) || !w.cfg.waitForLogs {
		sendError(ctx, errCh, &WatchError{Op: WatchOpFindLatest, Err: err})
		return "", err
	}

	w.log.Debug("no log files found, waiting for logs to appear", "poll_interval", w.cfg.pollInterval)
	ticker := time.NewTicker(w.cfg.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// sendError would drop this: ctx is already done.
			err := ctx.Err()
			select {
			case errCh <- &WatchError{Op: WatchOpFindLatest, Err: err}:
			default:
			}
			return "", err
		case <-ticker.C:
			logFile, err := logfinder.FindLatestLogFile(w.logDir)
			if err == nil {
				w.log.Debug("log file appeared", "path", logFile)
				return logFile, nil
			}
			if !errors.Is(err, ErrNoLogFiles) {
				sendError(ctx, errCh, &WatchError{Op: WatchOpFindLatest, Err: err})
				return "", err
			}
		}
	}
}

// sendError sends err without blocking. Errors are dropped only when the
// buffer is full or ctx is done.
func sendError(ctx context.Context, errCh chan<- error, err error) {
	if err == nil {
		return
	}
	select {
	case errCh <- err:
	case <-ctx.Done():
	default:
	}
}
