package qlconsole_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
)

func appendLog(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	require.NoError(t, err)
	defer f.Close()
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Sync())
}

func nextResult(t *testing.T, results <-chan event.Result, errs <-chan error, timeout time.Duration) event.Result {
	t.Helper()
	select {
	case res, ok := <-results:
		require.True(t, ok, "results channel closed")
		return res
	case err := <-errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(timeout):
		t.Fatal("timeout waiting for result")
	}
	return event.Result{}
}

func newWatcher(t *testing.T, opts ...qlconsole.WatchOption) *qlconsole.Watcher {
	t.Helper()
	opts = append([]qlconsole.WatchOption{
		qlconsole.WithPolling(true),
		qlconsole.WithPollInterval(100 * time.Millisecond),
		qlconsole.WithFlushInterval(50 * time.Millisecond),
	}, opts...)
	w, err := qlconsole.NewWatcher(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestNewWatcher_InvalidOptions(t *testing.T) {
	dir := t.TempDir()
	e, err := qlconsole.NewEngine()
	require.NoError(t, err)

	tests := []struct {
		name    string
		opts    []qlconsole.WatchOption
		wantErr string
	}{
		{"negative last n", []qlconsole.WatchOption{qlconsole.WithReplayLastN(-1)}, "non-negative"},
		{"last n over max", []qlconsole.WatchOption{qlconsole.WithReplayLastN(qlconsole.DefaultMaxReplayLastN + 1)}, "exceeds maximum"},
		{"zero poll interval", []qlconsole.WatchOption{qlconsole.WithPollInterval(0)}, "poll interval"},
		{"zero flush interval", []qlconsole.WatchOption{qlconsole.WithFlushInterval(0)}, "flush interval"},
		{"negative max bytes", []qlconsole.WatchOption{qlconsole.WithMaxReplayBytes(-1)}, "maxReplayBytes"},
		{"engine and engine options", []qlconsole.WatchOption{
			qlconsole.WithEngine(e),
			qlconsole.WithEngineOptions(qlconsole.WithWorkers(2)),
		}, "cannot be combined"},
		{"bad engine options", []qlconsole.WatchOption{
			qlconsole.WithEngineOptions(qlconsole.WithWorkers(0)),
		}, "workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := append([]qlconsole.WatchOption{qlconsole.WithLogDir(dir)}, tt.opts...)
			_, err := qlconsole.NewWatcher(opts...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewWatcher_MissingDir(t *testing.T) {
	_, err := qlconsole.NewWatcher(qlconsole.WithLogDir(filepath.Join(t.TempDir(), "missing")))
	require.Error(t, err)
	assert.ErrorIs(t, err, qlconsole.ErrLogDirNotFound)
}

func TestWatcher_WatchTwice(t *testing.T) {
	w := newWatcher(t, qlconsole.WithLogDir(t.TempDir()), qlconsole.WithWaitForLogs(true))

	_, _, err := w.Watch(context.Background())
	require.NoError(t, err)
	_, _, err = w.Watch(context.Background())
	assert.ErrorIs(t, err, qlconsole.ErrAlreadyWatching)

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	_, _, err = w.Watch(context.Background())
	assert.ErrorIs(t, err, qlconsole.ErrWatcherClosed)
}

func TestWatcher_NoLogFiles(t *testing.T) {
	w := newWatcher(t, qlconsole.WithLogDir(t.TempDir()))

	results, errs, err := w.Watch(context.Background())
	require.NoError(t, err)

	select {
	case err := <-errs:
		var watchErr *qlconsole.WatchError
		require.True(t, errors.As(err, &watchErr), "got %T", err)
		assert.Equal(t, qlconsole.WatchOpFindLatest, watchErr.Op)
		assert.ErrorIs(t, err, qlconsole.ErrNoLogFiles)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for error")
	}

	_, ok := <-results
	assert.False(t, ok, "results channel should be closed")
}

func TestWatcher_WaitForLogs(t *testing.T) {
	dir := t.TempDir()
	w := newWatcher(t, qlconsole.WithLogDir(dir), qlconsole.WithWaitForLogs(true), qlconsole.WithReplayFromStart())

	results, errs, err := w.Watch(context.Background())
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)
	appendLog(t, filepath.Join(dir, "qconsole.log"), "Lucy connected\n")

	res := nextResult(t, results, errs, 3*time.Second)
	assert.Equal(t, event.PlayerConnected, res.Kind)
	assert.Equal(t, "Lucy", res.PlayerName)
}

func TestWatcher_WaitForLogsCancelled(t *testing.T) {
	w := newWatcher(t, qlconsole.WithLogDir(t.TempDir()), qlconsole.WithWaitForLogs(true))
	ctx, cancel := context.WithCancel(context.Background())

	_, errs, err := w.Watch(ctx)
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errs:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for cancellation error")
	}
}

func TestWatcher_TailBuildsRoster(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "qconsole.log")
	appendLog(t, logFile, "Klesk connected\n")

	w := newWatcher(t,
		qlconsole.WithLogDir(dir),
		qlconsole.WithEngineOptions(qlconsole.WithSelfName("minqlx")),
	)
	results, errs, err := w.Watch(context.Background())
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	appendLog(t, logFile, "]\\configstrings\n529: n\\minqlx\\t\\3\n530: n\\Lucy\\t\\1\\rp\\1\n")

	// The response is closed by the flush interval.
	res := nextResult(t, results, errs, 3*time.Second)
	require.Equal(t, event.ConfigStrings, res.Kind)
	assert.Len(t, res.Players, 2)

	appendLog(t, logFile, "broadcast: print \"Lucy disconnected\\n\"\n")
	res = nextResult(t, results, errs, 3*time.Second)
	assert.Equal(t, event.PlayerDisconnected, res.Kind)

	snap := w.Engine().Projector().Current()
	assert.Empty(t, snap.Players, "self is filtered and Lucy left")
	assert.Empty(t, snap.Pending, "lines before the tail start are not replayed")
	assert.Equal(t, uint64(2), snap.Generation)
}

func TestWatcher_ReplayLastN(t *testing.T) {
	dir := t.TempDir()
	appendLog(t, filepath.Join(dir, "qconsole.log"),
		"Klesk connected\nSarge connected\n]\\players\n 1   Lucy\n 2   Sarge\n")

	w := newWatcher(t, qlconsole.WithLogDir(dir), qlconsole.WithReplayLastN(4))
	results, errs, err := w.Watch(context.Background())
	require.NoError(t, err)

	res := nextResult(t, results, errs, 3*time.Second)
	assert.Equal(t, event.PlayerConnected, res.Kind)
	assert.Equal(t, "Sarge", res.PlayerName)

	res = nextResult(t, results, errs, 3*time.Second)
	require.Equal(t, event.Players, res.Kind)
	assert.Len(t, res.Players, 2)

	snap := w.Engine().Projector().Current()
	assert.Len(t, snap.Players, 2)
	assert.Empty(t, snap.Pending, "Sarge's placeholder was promoted")
}

func TestWatcher_Filter(t *testing.T) {
	dir := t.TempDir()
	appendLog(t, filepath.Join(dir, "qconsole.log"),
		"Lucy connected\n2137 files in 38 pk3 files\nSarge connected\n")

	w := newWatcher(t,
		qlconsole.WithLogDir(dir),
		qlconsole.WithReplayFromStart(),
		qlconsole.WithExcludeKinds(event.PlayerConnected),
	)
	results, errs, err := w.Watch(context.Background())
	require.NoError(t, err)

	res := nextResult(t, results, errs, 3*time.Second)
	assert.Equal(t, event.MapLoaded, res.Kind)

	// Filtered results are still projected.
	require.Eventually(t, func() bool {
		return w.Engine().Projector().Current().Generation == 3
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "Sarge", w.Engine().Projector().Current().Pending[0].Name)
}

func TestWatcher_SharedEngine(t *testing.T) {
	dir := t.TempDir()
	appendLog(t, filepath.Join(dir, "qconsole.log"), "Lucy connected\n")

	sink := qlconsole.NewChannelSink(4)
	e, err := qlconsole.NewEngine(qlconsole.WithSink(sink))
	require.NoError(t, err)

	w := newWatcher(t, qlconsole.WithLogDir(dir), qlconsole.WithReplayFromStart(), qlconsole.WithEngine(e))
	assert.Same(t, e, w.Engine())

	_, _, err = w.Watch(context.Background())
	require.NoError(t, err)

	select {
	case d := <-sink.C():
		assert.Equal(t, event.PlayerConnected, d.Cause)
		require.Len(t, d.Joined, 1)
		assert.Equal(t, "Lucy", d.Joined[0].Name)
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for delta")
	}
}

func TestWatcher_LogRotation(t *testing.T) {
	dir := t.TempDir()
	oldLog := filepath.Join(dir, "qconsole.log")
	appendLog(t, oldLog, "")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(oldLog, past, past))

	w := newWatcher(t, qlconsole.WithLogDir(dir))
	results, errs, err := w.Watch(context.Background())
	require.NoError(t, err)

	time.Sleep(200 * time.Millisecond)
	appendLog(t, oldLog, "Klesk connected\n")
	res := nextResult(t, results, errs, 3*time.Second)
	assert.Equal(t, "Klesk", res.PlayerName)

	// A newer log from a restarted server is read from its start.
	newLog := filepath.Join(dir, "qconsole_2.log")
	appendLog(t, newLog, "2137 files in 38 pk3 files\nLucy connected\n")
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(newLog, future, future))

	res = nextResult(t, results, errs, 3*time.Second)
	assert.Equal(t, event.MapLoaded, res.Kind)
	res = nextResult(t, results, errs, 3*time.Second)
	assert.Equal(t, "Lucy", res.PlayerName)

	snap := w.Engine().Projector().Current()
	require.Len(t, snap.Pending, 1)
	assert.Equal(t, "Lucy", snap.Pending[0].Name)
}

func TestWatchWithOptions_ContextCancel(t *testing.T) {
	dir := t.TempDir()
	appendLog(t, filepath.Join(dir, "qconsole.log"), "")

	ctx, cancel := context.WithCancel(context.Background())
	results, errs, err := qlconsole.WatchWithOptions(ctx, qlconsole.WithLogDir(dir), qlconsole.WithPolling(true))
	require.NoError(t, err)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-results:
			return !ok
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
	for range errs {
	}
}
