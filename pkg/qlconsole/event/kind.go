// Package event defines the typed values produced from Quake Live console
// output: the closed set of block kinds, player records, server identity and
// the extraction result handed from the parser to the projector.
package event

import (
	"fmt"
	"sort"
)

// Kind identifies what a block of console output represents.
// Command kinds are responses to a command the caller issued; event kinds are
// unsolicited notices that may appear at any time.
type Kind uint8

// Command kinds.
const (
	// Ignored is the zero Kind. It is the classification of any block that
	// matched nothing or could not be typed, and means "no hint" when passed
	// as a hint.
	Ignored Kind = iota
	ServerInfoID
	ServerInfoGametype
	ServerInfoGamestate
	ConfigStrings
	Players
	ServerInfo
	InitInfo
	CvarRequest

	// Event kinds.
	PlayerConnected
	PlayerDisconnected
	PlayerKicked
	PlayerRageQuit
	MapLoaded

	kindCount
)

var kindNames = [kindCount]string{
	Ignored:             "ignored",
	ServerInfoID:        "server_info_id",
	ServerInfoGametype:  "server_info_gametype",
	ServerInfoGamestate: "server_info_gamestate",
	ConfigStrings:       "config_strings",
	Players:             "players",
	ServerInfo:          "server_info",
	InitInfo:            "init_info",
	CvarRequest:         "cvar_request",
	PlayerConnected:     "player_connected",
	PlayerDisconnected:  "player_disconnected",
	PlayerKicked:        "player_kicked",
	PlayerRageQuit:      "player_ragequit",
	MapLoaded:           "map_loaded",
}

var kindsByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, name := range kindNames {
		m[name] = Kind(k)
	}
	return m
}()

// EventPriority is the fixed order in which unsolicited event rules are tried.
var EventPriority = []Kind{
	PlayerConnected,
	PlayerDisconnected,
	PlayerKicked,
	PlayerRageQuit,
	MapLoaded,
}

// Kinds returns every kind except Ignored, in declaration order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, kindCount-1)
	for k := Ignored + 1; k < kindCount; k++ {
		kinds = append(kinds, k)
	}
	return kinds
}

// KindNames returns the text names of all kinds except Ignored, sorted.
func KindNames() []string {
	names := make([]string, 0, kindCount-1)
	for _, k := range Kinds() {
		names = append(names, k.String())
	}
	sort.Strings(names)
	return names
}

// ParseKind looks up a kind by its text name (e.g. "player_connected").
func ParseKind(name string) (Kind, bool) {
	k, ok := kindsByName[name]
	return k, ok
}

// Valid reports whether k is a member of the closed enumeration.
func (k Kind) Valid() bool {
	return k < kindCount
}

// IsEvent reports whether k is an unsolicited event kind.
func (k Kind) IsEvent() bool {
	return k >= PlayerConnected && k < kindCount
}

// IsCommand reports whether k is a command response kind other than Ignored.
func (k Kind) IsCommand() bool {
	return k > Ignored && k < PlayerConnected
}

// String returns the snake_case name of the kind.
func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, ok := ParseKind(string(text))
	if !ok {
		return fmt.Errorf("unknown kind %q", text)
	}
	*k = parsed
	return nil
}
