package qlconsole

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/qlconsole/qlconsole-go/internal/parser"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/pattern"
)

// maxScanLine is the longest line ProcessReader accepts.
const maxScanLine = 512 * 1024

// Engine classifies console blocks, extracts their fields and folds the
// results into a Projector.
//
// ClassifyAndExtract is safe for concurrent use. Process and ProcessFunc
// may run concurrently with each other only if the caller does not care
// about the relative order of their mutations.
type Engine struct {
	table      *pattern.Table
	projector  *Projector
	workers    int
	log        *slog.Logger
	metrics    *Metrics
	includeRaw bool
}

// NewEngine returns an engine with its own projector.
// Without WithTable the built-in rule table is used.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := applyOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	table := cfg.table
	if table == nil {
		t, err := pattern.Default()
		if err != nil {
			return nil, fmt.Errorf("loading built-in rules: %w", err)
		}
		table = t
	}

	p := newProjector(cfg)
	return &Engine{
		table:      table,
		projector:  p,
		workers:    cfg.workers,
		log:        p.log,
		metrics:    cfg.metrics,
		includeRaw: cfg.includeRaw,
	}, nil
}

// Table returns the engine's rule table.
func (e *Engine) Table() *pattern.Table {
	return e.table
}

// Projector returns the projector results are applied to.
func (e *Engine) Projector() *Projector {
	return e.projector
}

// ClassifyAndExtract classifies one block and extracts its result without
// touching the projector.
func (e *Engine) ClassifyAndExtract(text string, hint event.Kind) event.Result {
	res := parser.ClassifyAndExtract(e.table, text, hint)
	if e.includeRaw && res.Matched() {
		res.Raw = text
	}
	return res
}

// Apply classifies b and applies the result to the projector.
func (e *Engine) Apply(b Block) event.Result {
	res := e.ClassifyAndExtract(b.Text, b.Hint)
	e.apply(b, res)
	return res
}

func (e *Engine) apply(b Block, res event.Result) {
	if e.metrics != nil {
		e.metrics.ObserveResult(res)
	}
	if !res.Matched() {
		return
	}
	if _, ok := e.projector.Apply(res); ok {
		e.log.Debug("result applied", "kind", res.Kind, "form", res.Form, "seq", b.Seq)
	}
}

// IsNotice reports whether line, read inside a response to a command of
// kind hint, is an unsolicited notice on its own. A line the hinted rule
// matches belongs to the response. Pass Ignored when no response is open.
func (e *Engine) IsNotice(line string, hint event.Kind) bool {
	if hint != event.Ignored {
		if rule, ok := e.table.Lookup(hint); ok {
			if form, _ := rule.Match(line); form != nil {
				return false
			}
		}
	}
	return parser.Classify(e.table, line, event.Ignored).Kind != event.Ignored
}

// NewAssembler returns an assembler that ends open responses at lines this
// engine classifies as unsolicited notices.
func (e *Engine) NewAssembler() *Assembler {
	return NewAssembler(e.IsNotice)
}

// Process applies every block from in to the projector. See ProcessFunc.
func (e *Engine) Process(ctx context.Context, in <-chan Block) error {
	return e.ProcessFunc(ctx, in, nil)
}

// ProcessFunc classifies blocks from in on a pool of workers and applies the
// results to the projector in the order the blocks were received, from a
// single goroutine. fn, if not nil, is called after each result is applied,
// on that same goroutine.
//
// It returns nil once in is closed and drained, or ctx.Err() if ctx is
// cancelled first.
func (e *Engine) ProcessFunc(ctx context.Context, in <-chan Block, fn func(Block, event.Result)) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type job struct {
		ord   uint64
		block Block
	}
	type done struct {
		ord   uint64
		block Block
		res   event.Result
	}

	jobs := make(chan job, e.workers)
	results := make(chan done, e.workers)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				res := e.ClassifyAndExtract(j.block.Text, j.block.Hint)
				select {
				case results <- done{ord: j.ord, block: j.block, res: res}:
				case <-wctx.Done():
					return
				}
			}
		}()
	}

	// The feeder stamps each block with its arrival order; Seq is the
	// caller's and need not be dense.
	go func() {
		defer close(jobs)
		var ord uint64
		for {
			select {
			case <-wctx.Done():
				return
			case b, ok := <-in:
				if !ok {
					return
				}
				select {
				case jobs <- job{ord: ord, block: b}:
					ord++
				case <-wctx.Done():
					return
				}
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[uint64]done)
	var next uint64
	for r := range results {
		if wctx.Err() != nil {
			continue
		}
		pending[r.ord] = r
		for {
			d, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			e.apply(d.block, d.res)
			if fn != nil {
				fn(d.block, d.res)
			}
		}
	}
	return ctx.Err()
}

// ProcessReader reads console output line by line from r, groups it into
// blocks and processes them like ProcessFunc.
func (e *Engine) ProcessReader(ctx context.Context, r io.Reader, fn func(Block, event.Result)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	blocks := make(chan Block)
	scanErr := make(chan error, 1)
	go func() {
		defer close(blocks)
		scanErr <- e.feed(ctx, r, blocks)
	}()

	err := e.ProcessFunc(ctx, blocks, fn)
	cancel()
	if ferr := <-scanErr; err == nil {
		err = ferr
	}
	return err
}

func (e *Engine) feed(ctx context.Context, r io.Reader, out chan<- Block) error {
	send := func(bs ...Block) error {
		for _, b := range bs {
			select {
			case out <- b:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	}

	asm := e.NewAssembler()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxScanLine)
	for sc.Scan() {
		if err := send(asm.Push(sc.Text())...); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading console output: %w", err)
	}
	if b, ok := asm.Flush(); ok {
		return send(b)
	}
	return nil
}
