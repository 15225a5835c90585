package parser

import "regexp"

// Player configstrings occupy CS_PLAYERS (529) through CS_PLAYERS+MaxPlayers-1.
const (
	configStringPlayers    = 529
	configStringPlayersEnd = configStringPlayers + 63
)

// Sub-field patterns applied to a configstring payload, e.g.
// "n\JoeJoe\t\3\model\mynx\hmodel\mynx\c1\4\rp\1".
var (
	// Captures: (1) leading word-character run of the name
	payloadNamePattern = regexp.MustCompile(`^n\\(\w+)`)

	// Captures: (1) team code
	payloadTeamPattern = regexp.MustCompile(`\\t\\(\d)`)

	// Captures: (1) ready flag
	payloadReadyPattern = regexp.MustCompile(`\\rp\\(\d)`)
)

var (
	// Quake colour codes, "^0" through "^9".
	colorCodePattern = regexp.MustCompile(`\^[0-9]`)

	// One or more colour codes at the end of a cvar value: "syncore^7".
	trailingColorPattern = regexp.MustCompile(`(?:\^[0-9])+$`)

	// sv_gtid is the numeric public server id.
	publicIDPattern = regexp.MustCompile(`^\d+$`)
)
