package qlconsole

import (
	"errors"
	"fmt"

	"github.com/qlconsole/qlconsole-go/internal/logfinder"
)

// Sentinel errors.
var (
	// ErrWatcherClosed is returned by Watch after Close.
	ErrWatcherClosed = errors.New("watcher is closed")

	// ErrAlreadyWatching is returned when Watch is called more than once.
	ErrAlreadyWatching = errors.New("watch already started")

	// ErrNoLogFiles is returned when the log directory holds no qconsole log.
	ErrNoLogFiles = logfinder.ErrNoLogFiles

	// ErrLogDirNotFound is returned when no log directory could be located.
	ErrLogDirNotFound = logfinder.ErrLogDirNotFound

	// ErrReplayLimitExceeded is returned when a replay would read more than
	// the configured byte limits.
	ErrReplayLimitExceeded = errors.New("replay limit exceeded")
)

// WatchOp identifies the watcher step that failed.
type WatchOp string

const (
	WatchOpFindLatest WatchOp = "find_latest"
	WatchOpTail       WatchOp = "tail"
	WatchOpRotation   WatchOp = "rotation"
	WatchOpReplay     WatchOp = "replay"
	WatchOpProcess    WatchOp = "process"
)

// WatchError is sent on the watcher's error channel.
type WatchError struct {
	Op   WatchOp
	Path string // may be empty
	Err  error
}

func (e *WatchError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *WatchError) Unwrap() error {
	return e.Err
}
