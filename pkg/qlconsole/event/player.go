package event

import "fmt"

// MaxPlayers is the number of client slots on a Quake Live server.
const MaxPlayers = 64

// PendingID is the slot id of a placeholder player whose slot is not known yet.
const PendingID = -1

// Team is the team a player is on. TeamUnknown means the source that produced
// the record does not report teams.
type Team uint8

const (
	TeamUnknown Team = iota
	TeamFree
	TeamRed
	TeamBlue
	TeamSpectator
)

var teamNames = [...]string{
	TeamUnknown:   "unknown",
	TeamFree:      "free",
	TeamRed:       "red",
	TeamBlue:      "blue",
	TeamSpectator: "spectator",
}

// TeamFromCode maps the server's numeric team code (0 free, 1 red, 2 blue,
// 3 spectator) to a Team.
func TeamFromCode(code int) (Team, bool) {
	switch code {
	case 0:
		return TeamFree, true
	case 1:
		return TeamRed, true
	case 2:
		return TeamBlue, true
	case 3:
		return TeamSpectator, true
	}
	return TeamUnknown, false
}

func (t Team) String() string {
	if int(t) < len(teamNames) {
		return teamNames[t]
	}
	return fmt.Sprintf("team(%d)", uint8(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t Team) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Team) UnmarshalText(text []byte) error {
	for i, name := range teamNames {
		if name == string(text) {
			*t = Team(i)
			return nil
		}
	}
	return fmt.Errorf("unknown team %q", text)
}

// ReadyStatus is the warmup ready flag of a player.
type ReadyStatus uint8

const (
	ReadyUnknown ReadyStatus = iota
	NotReady
	Ready
)

func (r ReadyStatus) String() string {
	switch r {
	case NotReady:
		return "not_ready"
	case Ready:
		return "ready"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (r ReadyStatus) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ReadyStatus) UnmarshalText(text []byte) error {
	for st := ReadyUnknown; st <= Ready; st++ {
		if st.String() == string(text) {
			*r = st
			return nil
		}
	}
	return fmt.Errorf("unknown ready status %q", text)
}

// Player is one roster entry. ID is the client slot and the identity key within
// a server session; Name is not stable and may be shared between players.
type Player struct {
	ID    int         `json:"id"`
	Name  string      `json:"name"`
	Team  Team        `json:"team"`
	Ready ReadyStatus `json:"ready"`
}

// Pending reports whether p is a placeholder created from a connect notice.
func (p Player) Pending() bool {
	return p.ID == PendingID
}

// Merge returns p updated with the fields reported by next. Unknown team and
// ready values in next keep the values already held by p.
func (p Player) Merge(next Player) Player {
	p.ID = next.ID
	if next.Name != "" {
		p.Name = next.Name
	}
	if next.Team != TeamUnknown {
		p.Team = next.Team
	}
	if next.Ready != ReadyUnknown {
		p.Ready = next.Ready
	}
	return p
}
