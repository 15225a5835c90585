package qlconsole

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"golang.org/x/text/cases"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
)

// discardLogger returns a logger that discards all output.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Projector folds extraction results into a Snapshot and publishes a
// RosterDelta to its sinks after every accepted mutation.
//
// Mutations are serialized. Readers get deep copies and never block a
// writer for longer than a pointer swap.
type Projector struct {
	sinks   []Sink
	log     *slog.Logger
	metrics *Metrics
	dedup   *cache.Cache // nil when notice dedup is disabled

	writeMu sync.Mutex // serializes mutation and publish

	mu   sync.RWMutex
	snap Snapshot // never modified in place
}

// NewProjector returns a projector with an empty snapshot.
func NewProjector(opts ...Option) (*Projector, error) {
	cfg := applyOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	return newProjector(cfg), nil
}

func newProjector(cfg *config) *Projector {
	log := cfg.logger
	if log == nil {
		log = discardLogger
	}

	p := &Projector{
		sinks:   append([]Sink(nil), cfg.sinks...),
		log:     log,
		metrics: cfg.metrics,
		snap: Snapshot{
			Session:  uuid.NewString(),
			Players:  map[int]event.Player{},
			SelfName: cfg.selfName,
		},
	}
	if cfg.metrics != nil {
		p.sinks = append(p.sinks, cfg.metrics)
	}
	if cfg.dedupWindow > 0 {
		p.dedup = cache.New(cfg.dedupWindow, 2*cfg.dedupWindow)
	}
	return p
}

// Current returns a copy of the current snapshot.
func (p *Projector) Current() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap.Clone()
}

// Apply folds res into the snapshot. It reports whether the result was
// accepted; only accepted results bump the generation and reach the sinks.
func (p *Projector) Apply(res event.Result) (RosterDelta, bool) {
	switch {
	case res.Kind.IsEvent():
		return p.ApplyEvent(res)
	case res.Kind.IsCommand():
		return p.ApplyCommandResult(res)
	}
	return RosterDelta{}, false
}

// ApplyCommandResult folds a command response or the InitInfo banner.
//
//   - ConfigStrings patches slots; unreported team and ready keep prior values.
//     A record without a slot (a bare payload) patches the player or
//     placeholder of the same name and is dropped if there is none.
//   - Players replaces the membership list; present slots keep team and ready.
//   - ServerInfo replaces the identity; the single-field kinds patch one field.
//   - A "name" CvarRequest sets SelfName. Other cvars are not projected.
//   - InitInfo clears the roster like MapLoaded.
func (p *Projector) ApplyCommandResult(res event.Result) (RosterDelta, bool) {
	if !res.Kind.IsCommand() {
		return RosterDelta{}, false
	}
	return p.mutate(res, func(s *Snapshot) bool {
		switch res.Kind {
		case event.ConfigStrings:
			applied := false
			for _, rec := range res.Players {
				if rec.Pending() {
					applied = patchByName(s, rec) || applied
					continue
				}
				upsert(s, rec)
				applied = true
			}
			return applied
		case event.Players:
			if len(res.Players) == 0 {
				return false
			}
			present := make(map[int]bool, len(res.Players))
			for _, rec := range res.Players {
				present[rec.ID] = true
			}
			for id := range s.Players {
				if !present[id] {
					delete(s.Players, id)
				}
			}
			for _, rec := range res.Players {
				upsert(s, rec)
			}
		case event.ServerInfo:
			if res.Identity == nil {
				return false
			}
			s.Identity = *res.Identity
		case event.ServerInfoID:
			if res.Identity == nil {
				return false
			}
			s.Identity.PublicID = res.Identity.PublicID
		case event.ServerInfoGametype:
			if res.Identity == nil {
				return false
			}
			s.Identity.GameType = res.Identity.GameType
		case event.ServerInfoGamestate:
			if res.Identity == nil {
				return false
			}
			s.Identity.GameState = res.Identity.GameState
		case event.CvarRequest:
			if res.Cvar == nil || !strings.EqualFold(res.Cvar.Name, "name") || res.Cvar.Value == "" {
				return false
			}
			s.SelfName = res.Cvar.Value
			dropSelf(s)
		case event.InitInfo:
			resetRoster(s)
		default:
			return false
		}
		return true
	})
}

// ApplyEvent folds an unsolicited notice.
//
//   - PlayerConnected adds a pending placeholder.
//   - PlayerDisconnected, PlayerKicked and PlayerRageQuit remove one record by
//     name, a placeholder first, else the lowest slot. No match is a no-op.
//   - MapLoaded clears the roster and sets the game state to warmup.
func (p *Projector) ApplyEvent(res event.Result) (RosterDelta, bool) {
	if !res.Kind.IsEvent() {
		return RosterDelta{}, false
	}
	return p.mutate(res, func(s *Snapshot) bool {
		switch res.Kind {
		case event.PlayerConnected:
			if res.PlayerName == "" || isSelf(s, res.PlayerName) || p.duplicate(res) {
				return false
			}
			s.Pending = append(s.Pending, event.Player{ID: event.PendingID, Name: res.PlayerName})
			p.remember(res)
		case event.PlayerDisconnected, event.PlayerKicked, event.PlayerRageQuit:
			if res.PlayerName == "" || p.duplicate(res) || !removeByName(s, res.PlayerName) {
				return false
			}
			p.remember(res)
		case event.MapLoaded:
			resetRoster(s)
		default:
			return false
		}
		return true
	})
}

// Reset starts a new session with an empty snapshot. SelfName is kept and the
// generation keeps counting. The returned delta is also published.
func (p *Projector) Reset() RosterDelta {
	d, _ := p.mutate(event.IgnoredResult(), func(s *Snapshot) bool {
		s.Session = uuid.NewString()
		s.Players = map[int]event.Player{}
		s.Pending = nil
		s.Identity = event.Identity{}
		return true
	})
	return d
}

// mutate runs fn on a copy of the snapshot and, if fn accepts, swaps the copy
// in and publishes the delta.
func (p *Projector) mutate(res event.Result, fn func(*Snapshot) bool) (RosterDelta, bool) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	// Only writers replace p.snap, so reading it under writeMu is safe.
	prev := p.snap
	next := prev.Clone()
	if !fn(&next) {
		return RosterDelta{}, false
	}
	next.Generation = prev.Generation + 1

	joined, left, updated := diff(prev, next)
	d := RosterDelta{
		Cause:           res.Kind,
		Session:         next.Session,
		Generation:      next.Generation,
		Previous:        prev.Clone(),
		Current:         next.Clone(),
		Joined:          joined,
		Left:            left,
		Updated:         updated,
		Reset:           res.Kind == event.MapLoaded || res.Kind == event.InitInfo || prev.Session != next.Session,
		IdentityChanged: prev.Identity != next.Identity,
	}

	p.mu.Lock()
	p.snap = next
	p.mu.Unlock()

	p.publish(d)
	return d, true
}

// publish delivers d to every sink. A panicking sink is logged and skipped.
func (p *Projector) publish(d RosterDelta) {
	for _, s := range p.sinks {
		p.publishOne(s, d)
	}
}

func (p *Projector) publishOne(s Sink, d RosterDelta) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("sink panic recovered", "panic", r, "cause", d.Cause, "generation", d.Generation)
		}
	}()
	s.Publish(d)
}

// duplicate reports whether the same notice was accepted within the dedup
// window.
func (p *Projector) duplicate(res event.Result) bool {
	if p.dedup == nil {
		return false
	}
	if _, found := p.dedup.Get(dedupKey(res.Kind, res.PlayerName)); found {
		p.log.Debug("duplicate notice dropped", "kind", res.Kind, "name", res.PlayerName)
		return true
	}
	return false
}

// remember records an accepted notice. A connect forgets the leave notices
// seen for the name and a leave forgets the connect, so a player who
// reconnects within the window is not dropped.
func (p *Projector) remember(res event.Result) {
	if p.dedup == nil {
		return
	}
	p.dedup.SetDefault(dedupKey(res.Kind, res.PlayerName), struct{}{})
	if res.Kind == event.PlayerConnected {
		for _, k := range []event.Kind{event.PlayerDisconnected, event.PlayerKicked, event.PlayerRageQuit} {
			p.dedup.Delete(dedupKey(k, res.PlayerName))
		}
		return
	}
	p.dedup.Delete(dedupKey(event.PlayerConnected, res.PlayerName))
}

func dedupKey(kind event.Kind, name string) string {
	return kind.String() + "\x00" + foldName(name)
}

// upsert merges rec into its slot and promotes a matching placeholder.
// A slot whose occupant changed name is replaced instead of merged.
func upsert(s *Snapshot, rec event.Player) {
	if isSelf(s, rec.Name) {
		delete(s.Players, rec.ID)
		return
	}
	if cur, ok := s.Players[rec.ID]; ok && sameName(cur.Name, rec.Name) {
		s.Players[rec.ID] = cur.Merge(rec)
	} else {
		s.Players[rec.ID] = rec
	}
	removePending(s, rec.Name)
}

// patchByName merges a record without a slot into the lowest slot with the
// same name, else into the matching placeholder.
func patchByName(s *Snapshot, rec event.Player) bool {
	if rec.Name == "" || isSelf(s, rec.Name) {
		return false
	}
	for _, id := range s.slots() {
		if cur := s.Players[id]; sameName(cur.Name, rec.Name) {
			rec.ID = id
			s.Players[id] = cur.Merge(rec)
			return true
		}
	}
	for i, ph := range s.Pending {
		if sameName(ph.Name, rec.Name) {
			rec.ID = event.PendingID
			s.Pending[i] = ph.Merge(rec)
			return true
		}
	}
	return false
}

func removePending(s *Snapshot, name string) bool {
	for i, ph := range s.Pending {
		if sameName(ph.Name, name) {
			s.Pending = append(s.Pending[:i:i], s.Pending[i+1:]...)
			if len(s.Pending) == 0 {
				s.Pending = nil
			}
			return true
		}
	}
	return false
}

func removeByName(s *Snapshot, name string) bool {
	if removePending(s, name) {
		return true
	}
	for _, id := range s.slots() {
		if sameName(s.Players[id].Name, name) {
			delete(s.Players, id)
			return true
		}
	}
	return false
}

func dropSelf(s *Snapshot) {
	for id, pl := range s.Players {
		if isSelf(s, pl.Name) {
			delete(s.Players, id)
		}
	}
	for {
		if !removePending(s, s.SelfName) {
			return
		}
	}
}

func resetRoster(s *Snapshot) {
	s.Players = map[int]event.Player{}
	s.Pending = nil
	s.Identity.GameState = event.GameStateWarmup
}

func isSelf(s *Snapshot, name string) bool {
	return s.SelfName != "" && sameName(s.SelfName, name)
}

func sameName(a, b string) bool {
	return a == b || foldName(a) == foldName(b)
}

// foldName returns the case-folded form used to compare player names.
func foldName(name string) string {
	return cases.Fold().String(name)
}
