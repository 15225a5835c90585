package event

import (
	"fmt"
	"strings"
)

// GameType is the competitive mode the server is running.
type GameType uint8

const (
	GameTypeUnspecified GameType = iota
	GameTypeFFA
	GameTypeDuel
	GameTypeRace
	GameTypeTDM
	GameTypeCA
	GameTypeCTF
	GameTypeOneFlagCTF
	GameTypeHarvester
	GameTypeFreezeTag
	GameTypeDomination
	GameTypeAttackDefend
	GameTypeRedRover
)

// gameTypeCodes maps g_gametype values to game types. Code 7 (overload) is not
// tracked and falls through to GameTypeUnspecified.
var gameTypeCodes = map[int]GameType{
	0:  GameTypeFFA,
	1:  GameTypeDuel,
	2:  GameTypeRace,
	3:  GameTypeTDM,
	4:  GameTypeCA,
	5:  GameTypeCTF,
	6:  GameTypeOneFlagCTF,
	8:  GameTypeHarvester,
	9:  GameTypeFreezeTag,
	10: GameTypeDomination,
	11: GameTypeAttackDefend,
	12: GameTypeRedRover,
}

var gameTypeNames = [...]string{
	GameTypeUnspecified:  "unspecified",
	GameTypeFFA:          "ffa",
	GameTypeDuel:         "duel",
	GameTypeRace:         "race",
	GameTypeTDM:          "tdm",
	GameTypeCA:           "ca",
	GameTypeCTF:          "ctf",
	GameTypeOneFlagCTF:   "oneflag_ctf",
	GameTypeHarvester:    "harvester",
	GameTypeFreezeTag:    "freezetag",
	GameTypeDomination:   "domination",
	GameTypeAttackDefend: "attack_defend",
	GameTypeRedRover:     "red_rover",
}

// GameTypeFromCode maps a g_gametype code to a GameType. Unrecognized codes
// yield GameTypeUnspecified.
func GameTypeFromCode(code int) GameType {
	if gt, ok := gameTypeCodes[code]; ok {
		return gt
	}
	return GameTypeUnspecified
}

func (g GameType) String() string {
	if int(g) < len(gameTypeNames) {
		return gameTypeNames[g]
	}
	return fmt.Sprintf("gametype(%d)", uint8(g))
}

// MarshalText implements encoding.TextMarshaler.
func (g GameType) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *GameType) UnmarshalText(text []byte) error {
	for i, name := range gameTypeNames {
		if name == string(text) {
			*g = GameType(i)
			return nil
		}
	}
	return fmt.Errorf("unknown game type %q", text)
}

// GameState is the match phase.
type GameState uint8

const (
	GameStateUnspecified GameState = iota
	GameStateWarmup
	GameStateCountdown
	GameStateInProgress
)

// GameStateFromValue maps a g_gameState value (PRE_GAME, COUNT_DOWN,
// IN_PROGRESS) to a GameState, ignoring case.
func GameStateFromValue(v string) GameState {
	switch strings.ToUpper(v) {
	case "PRE_GAME":
		return GameStateWarmup
	case "COUNT_DOWN":
		return GameStateCountdown
	case "IN_PROGRESS":
		return GameStateInProgress
	}
	return GameStateUnspecified
}

func (s GameState) String() string {
	switch s {
	case GameStateWarmup:
		return "warmup"
	case GameStateCountdown:
		return "countdown"
	case GameStateInProgress:
		return "in_progress"
	}
	return "unspecified"
}

// MarshalText implements encoding.TextMarshaler.
func (s GameState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *GameState) UnmarshalText(text []byte) error {
	for st := GameStateUnspecified; st <= GameStateInProgress; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown game state %q", text)
}

// Identity describes the server itself.
type Identity struct {
	PublicID  string    `json:"public_id,omitempty"`
	GameType  GameType  `json:"game_type"`
	GameState GameState `json:"game_state"`
}
