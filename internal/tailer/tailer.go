// Package tailer follows a growing log file line by line.
package tailer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nxadm/tail"
)

// Config configures a Tailer.
type Config struct {
	// FromStart reads the file from the beginning instead of the end.
	FromStart bool

	// Poll uses stat polling instead of inotify/ReadDirectoryChanges.
	// Needed for network shares and some container mounts.
	Poll bool

	// ReOpen follows the file across truncation and re-creation, the way
	// the game rewrites qconsole.log on every start.
	ReOpen bool

	// MaxLineSize splits longer lines. 0 means unlimited.
	MaxLineSize int
}

// DefaultConfig returns the configuration used by the watcher.
func DefaultConfig() Config {
	return Config{
		ReOpen:      true,
		MaxLineSize: 512 * 1024,
	}
}

// Tailer delivers complete lines appended to a file.
type Tailer struct {
	t      *tail.Tail
	lines  chan string
	errs   chan error
	cancel context.CancelFunc
	done   chan struct{}

	stopOnce sync.Once
	stopErr  error
}

// New starts tailing path. Lines are delivered without the trailing newline
// or carriage return. The tailer stops when ctx is cancelled or Stop is called.
func New(ctx context.Context, path string, cfg Config) (*Tailer, error) {
	loc := &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	if cfg.FromStart {
		loc = &tail.SeekInfo{Offset: 0, Whence: io.SeekStart}
	}

	t, err := tail.TailFile(path, tail.Config{
		Location:    loc,
		ReOpen:      cfg.ReOpen,
		MustExist:   true,
		Poll:        cfg.Poll,
		Follow:      true,
		MaxLineSize: cfg.MaxLineSize,
		Logger:      tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("tail %s: %w", path, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	tr := &Tailer{
		t:      t,
		lines:  make(chan string),
		errs:   make(chan error, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go tr.run(ctx)
	return tr, nil
}

// Lines returns the channel of new lines. It is closed when the tailer stops.
func (tr *Tailer) Lines() <-chan string {
	return tr.lines
}

// Errors returns the channel of read errors. It is closed when the tailer stops.
func (tr *Tailer) Errors() <-chan error {
	return tr.errs
}

// Stop stops tailing and waits for the delivery goroutine to exit.
// Safe to call multiple times.
func (tr *Tailer) Stop() error {
	tr.stopOnce.Do(func() {
		tr.cancel()
		tr.stopErr = tr.t.Stop()
		<-tr.done
		tr.t.Cleanup()
	})
	return tr.stopErr
}

func (tr *Tailer) run(ctx context.Context) {
	defer close(tr.done)
	defer close(tr.lines)
	defer close(tr.errs)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-tr.t.Lines:
			if !ok {
				if err := tr.t.Err(); err != nil {
					tr.sendError(ctx, err)
				}
				return
			}
			if line.Err != nil {
				tr.sendError(ctx, line.Err)
				continue
			}
			select {
			case tr.lines <- strings.TrimRight(line.Text, "\r"):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (tr *Tailer) sendError(ctx context.Context, err error) {
	select {
	case tr.errs <- err:
	case <-ctx.Done():
	default:
	}
}
