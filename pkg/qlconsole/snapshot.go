package qlconsole

import (
	"sort"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
)

// Snapshot is the projected state of one server session.
type Snapshot struct {
	// Session identifies the server session. It changes on Projector.Reset.
	Session string `json:"session"`

	// Players holds the roster keyed by client slot.
	Players map[int]event.Player `json:"players"`

	// Pending holds placeholders from connect notices whose slot is not
	// known yet, oldest first.
	Pending []event.Player `json:"pending,omitempty"`

	Identity event.Identity `json:"identity"`

	// SelfName is the bot's own account name; it is never part of Players.
	SelfName string `json:"self_name,omitempty"`

	// Generation increments on every accepted mutation.
	Generation uint64 `json:"generation"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Players = make(map[int]event.Player, len(s.Players))
	for id, p := range s.Players {
		c.Players[id] = p
	}
	if s.Pending != nil {
		c.Pending = append([]event.Player(nil), s.Pending...)
	}
	return c
}

// Roster returns the players ordered by slot, followed by pending placeholders.
func (s Snapshot) Roster() []event.Player {
	out := make([]event.Player, 0, len(s.Players)+len(s.Pending))
	for _, id := range s.slots() {
		out = append(out, s.Players[id])
	}
	return append(out, s.Pending...)
}

// Len returns the number of players including pending placeholders.
func (s Snapshot) Len() int {
	return len(s.Players) + len(s.Pending)
}

func (s Snapshot) slots() []int {
	ids := make([]int, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// RosterDelta describes one accepted mutation.
type RosterDelta struct {
	// Cause is the kind of the result that produced the delta. Reset by
	// Projector.Reset reports Ignored.
	Cause      event.Kind `json:"cause"`
	Session    string     `json:"session"`
	Generation uint64     `json:"generation"`

	Previous Snapshot `json:"-"`
	Current  Snapshot `json:"current"`

	Joined  []event.Player `json:"joined,omitempty"`
	Left    []event.Player `json:"left,omitempty"`
	Updated []event.Player `json:"updated,omitempty"`

	// Reset is set when the roster was cleared wholesale.
	Reset           bool `json:"reset,omitempty"`
	IdentityChanged bool `json:"identity_changed,omitempty"`
}

// Empty reports whether the delta changed nothing visible.
// Re-applying identical data is still an accepted mutation.
func (d RosterDelta) Empty() bool {
	return len(d.Joined) == 0 && len(d.Left) == 0 && len(d.Updated) == 0 &&
		!d.Reset && !d.IdentityChanged && d.Previous.SelfName == d.Current.SelfName
}

// diff computes joined, left and updated players between two snapshots.
// A placeholder that turns into a slot record is reported as an update of
// that record, not as a leave followed by a join.
func diff(prev, next Snapshot) (joined, left, updated []event.Player) {
	for _, id := range next.slots() {
		np := next.Players[id]
		pp, ok := prev.Players[id]
		switch {
		case !ok:
			joined = append(joined, np)
		case !sameName(pp.Name, np.Name):
			left = append(left, pp)
			joined = append(joined, np)
		case pp != np:
			updated = append(updated, np)
		}
	}
	for _, id := range prev.slots() {
		if _, ok := next.Players[id]; !ok {
			left = append(left, prev.Players[id])
		}
	}

	gone, added := diffPending(prev.Pending, next.Pending)
	for _, ph := range gone {
		if i := indexByName(joined, ph.Name); i >= 0 {
			updated = append(updated, joined[i])
			joined = append(joined[:i], joined[i+1:]...)
			continue
		}
		left = append(left, ph)
	}
	joined = append(joined, added...)

	sortPlayers(updated)
	return joined, left, updated
}

// diffPending returns placeholders only in prev and only in next, treating
// the lists as multisets of names.
func diffPending(prev, next []event.Player) (gone, added []event.Player) {
	count := make(map[string]int, len(prev))
	for _, p := range prev {
		count[foldName(p.Name)]++
	}
	for _, p := range next {
		k := foldName(p.Name)
		if count[k] > 0 {
			count[k]--
			continue
		}
		added = append(added, p)
	}
	for i := len(prev) - 1; i >= 0; i-- {
		k := foldName(prev[i].Name)
		if count[k] > 0 {
			count[k]--
			gone = append([]event.Player{prev[i]}, gone...)
		}
	}
	return gone, added
}

func indexByName(players []event.Player, name string) int {
	for i, p := range players {
		if sameName(p.Name, name) {
			return i
		}
	}
	return -1
}

func sortPlayers(players []event.Player) {
	sort.SliceStable(players, func(i, j int) bool {
		return players[i].ID < players[j].ID
	})
}
