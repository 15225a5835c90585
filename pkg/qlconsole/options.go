package qlconsole

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/pattern"
)

// Option configures an Engine or a Projector using the functional options
// pattern. Options that only concern the engine are ignored by NewProjector.
type Option func(*config)

type config struct {
	table       *pattern.Table
	sinks       []Sink
	selfName    string
	workers     int
	logger      *slog.Logger
	metrics     *Metrics
	includeRaw  bool
	dedupWindow time.Duration
}

func defaultConfig() *config {
	return &config{
		workers: runtime.NumCPU(),
	}
}

func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// validate checks for invalid option values.
func (c *config) validate() error {
	if c.workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.workers)
	}
	if c.dedupWindow < 0 {
		return fmt.Errorf("dedup window must be non-negative, got %v", c.dedupWindow)
	}
	return nil
}

// WithTable sets the rule table. If t is nil the built-in table is used.
func WithTable(t *pattern.Table) Option {
	return func(c *config) {
		c.table = t
	}
}

// WithSink adds a sink that receives every roster delta. Sinks are called
// synchronously, in the order they were added. Nil sinks are ignored.
func WithSink(s Sink) Option {
	return func(c *config) {
		if s != nil {
			c.sinks = append(c.sinks, s)
		}
	}
}

// WithSelfName sets the bot's own account name. Records with this name are
// kept out of the roster. A later "name" cvar reply replaces it.
func WithSelfName(name string) Option {
	return func(c *config) {
		c.selfName = name
	}
}

// WithWorkers sets how many goroutines classify blocks in Engine.Process.
// Default: runtime.NumCPU().
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithLogger sets a logger for debug output.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithMetrics records block and delta metrics. The metrics also receive
// every delta as a sink.
func WithMetrics(m *Metrics) Option {
	return func(c *config) {
		c.metrics = m
	}
}

// WithIncludeRaw keeps the original block in Result.Raw.
// Default: false.
func WithIncludeRaw(include bool) Option {
	return func(c *config) {
		c.includeRaw = include
	}
}

// WithNoticeDedup drops a player notice that repeats the same kind and name
// within window. Servers that emit both the server command and the console
// print for one event need this. Only accepted notices are remembered, and a
// connect and a leave for the same name clear each other, so a reconnect
// within the window is kept. Two players sharing a name who both connect
// within the window are still seen as one. Default: 0 (disabled).
func WithNoticeDedup(window time.Duration) Option {
	return func(c *config) {
		c.dedupWindow = window
	}
}

// WatchOption configures Watch behavior using the functional options pattern.
type WatchOption func(*watchConfig)

type watchConfig struct {
	logDir             string
	pollInterval       time.Duration
	flushInterval      time.Duration
	replay             ReplayConfig
	maxReplayLines     int
	maxReplayBytes     int // Maximum total bytes for replay (0 = unlimited)
	maxReplayLineBytes int // Maximum bytes per line for replay (0 = unlimited)
	waitForLogs        bool
	poll               bool
	logger             *slog.Logger
	filter             *compiledFilter
	engine             *Engine
	engineOpts         []Option
}

func defaultWatchConfig() *watchConfig {
	return &watchConfig{
		pollInterval:       2 * time.Second,
		flushInterval:      250 * time.Millisecond,
		maxReplayLines:     DefaultMaxReplayLastN,
		maxReplayBytes:     10 * 1024 * 1024, // 10MB default
		maxReplayLineBytes: 512 * 1024,       // 512KB default
	}
}

func applyWatchOptions(opts []WatchOption) *watchConfig {
	cfg := defaultWatchConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// validate checks for invalid option combinations.
func (c *watchConfig) validate() error {
	if c.replay.Mode == ReplayLastN && c.replay.LastN < 0 {
		return fmt.Errorf("replay LastN must be non-negative, got %d", c.replay.LastN)
	}
	if c.replay.Mode == ReplayLastN {
		maxLines := c.maxReplayLines
		if maxLines == 0 {
			maxLines = DefaultMaxReplayLastN
		}
		if maxLines > 0 && c.replay.LastN > maxLines {
			return fmt.Errorf("replay LastN (%d) exceeds maximum of %d", c.replay.LastN, maxLines)
		}
	}
	if c.pollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", c.pollInterval)
	}
	if c.flushInterval <= 0 {
		return fmt.Errorf("flush interval must be positive, got %v", c.flushInterval)
	}
	if c.maxReplayBytes < 0 {
		return fmt.Errorf("maxReplayBytes must be non-negative, got %d", c.maxReplayBytes)
	}
	if c.maxReplayLineBytes < 0 {
		return fmt.Errorf("maxReplayLineBytes must be non-negative, got %d", c.maxReplayLineBytes)
	}
	if c.engine != nil && len(c.engineOpts) > 0 {
		return fmt.Errorf("WithEngine cannot be combined with WithEngineOptions")
	}
	return nil
}

// WithLogDir sets the Quake Live baseq3 directory holding qconsole.log.
// If not set, QLCONSOLE_LOGDIR and then the default install locations are used.
func WithLogDir(dir string) WatchOption {
	return func(c *watchConfig) {
		c.logDir = dir
	}
}

// WithPollInterval sets how often to check for a newer log file.
// Default: 2 seconds.
func WithPollInterval(interval time.Duration) WatchOption {
	return func(c *watchConfig) {
		c.pollInterval = interval
	}
}

// WithFlushInterval sets how long a command response may stay idle before
// it is classified. Responses end at the next echoed command or after this
// much silence. Default: 250ms.
func WithFlushInterval(interval time.Duration) WatchOption {
	return func(c *watchConfig) {
		c.flushInterval = interval
	}
}

// WithWaitForLogs configures whether to wait for log files to appear.
// When false (default), ErrNoLogFiles is returned immediately if no logs exist.
func WithWaitForLogs(wait bool) WatchOption {
	return func(c *watchConfig) {
		c.waitForLogs = wait
	}
}

// WithPolling makes the tailer poll the file instead of relying on file
// system notifications.
func WithPolling(poll bool) WatchOption {
	return func(c *watchConfig) {
		c.poll = poll
	}
}

// WithReplay configures replay behavior for existing log lines.
// Default: ReplayNone (only new lines).
func WithReplay(config ReplayConfig) WatchOption {
	return func(c *watchConfig) {
		c.replay = config
	}
}

// WithReplayFromStart reads from the beginning of the log file.
func WithReplayFromStart() WatchOption {
	return func(c *watchConfig) {
		c.replay = ReplayConfig{Mode: ReplayFromStart}
	}
}

// WithReplayLastN reads the last N non-empty lines before tailing.
func WithReplayLastN(n int) WatchOption {
	return func(c *watchConfig) {
		c.replay = ReplayConfig{Mode: ReplayLastN, LastN: n}
	}
}

// WithMaxReplayLines sets the maximum lines for ReplayLastN mode.
// 0 uses default (10000). Set to -1 for unlimited (not recommended).
func WithMaxReplayLines(max int) WatchOption {
	return func(c *watchConfig) {
		c.maxReplayLines = max
	}
}

// WithMaxReplayBytes sets the maximum total bytes to read during replay.
// Default is 10MB. Set to 0 for unlimited (not recommended).
func WithMaxReplayBytes(max int) WatchOption {
	return func(c *watchConfig) {
		c.maxReplayBytes = max
	}
}

// WithMaxReplayLineBytes sets the maximum bytes per line during replay.
// Default is 512KB. Set to 0 for unlimited (not recommended).
func WithMaxReplayLineBytes(max int) WatchOption {
	return func(c *watchConfig) {
		c.maxReplayLineBytes = max
	}
}

// WithWatchLogger sets a logger for watcher debug output.
func WithWatchLogger(logger *slog.Logger) WatchOption {
	return func(c *watchConfig) {
		c.logger = logger
	}
}

// WithEngine uses e to classify and project the watched log. If e is nil,
// this option has no effect.
func WithEngine(e *Engine) WatchOption {
	return func(c *watchConfig) {
		if e != nil {
			c.engine = e
		}
	}
}

// WithEngineOptions builds the watcher's engine from opts.
func WithEngineOptions(opts ...Option) WatchOption {
	return func(c *watchConfig) {
		c.engineOpts = append(c.engineOpts, opts...)
	}
}

// WithIncludeKinds only emits results of the given kinds. Results of other
// kinds are still applied to the roster.
// If called multiple times, only the last call takes effect.
func WithIncludeKinds(kinds ...event.Kind) WatchOption {
	return func(c *watchConfig) {
		if c.filter == nil {
			c.filter = &compiledFilter{}
		}
		c.filter.include = kindSet(kinds)
	}
}

// WithExcludeKinds does not emit results of the given kinds.
// Exclude takes precedence over include.
func WithExcludeKinds(kinds ...event.Kind) WatchOption {
	return func(c *watchConfig) {
		if c.filter == nil {
			c.filter = &compiledFilter{}
		}
		c.filter.exclude = kindSet(kinds)
	}
}

// WithFilter sets both include and exclude kind filters.
func WithFilter(include, exclude []event.Kind) WatchOption {
	return func(c *watchConfig) {
		c.filter = newCompiledFilter(include, exclude)
	}
}
