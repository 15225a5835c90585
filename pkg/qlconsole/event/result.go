package event

// Cvar is a cvar query response.
type Cvar struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Result is the typed outcome of classifying and extracting one block.
// Which fields are populated depends on Kind:
//
//   - ConfigStrings, Players: Players
//   - ServerInfo, ServerInfoID, ServerInfoGametype, ServerInfoGamestate: Identity
//   - CvarRequest: Cvar
//   - PlayerConnected, PlayerDisconnected, PlayerKicked, PlayerRageQuit: PlayerName
//   - MapLoaded, InitInfo, Ignored: nothing
type Result struct {
	Kind Kind `json:"kind"`

	// Form is the id of the rule form that matched (empty for Ignored).
	Form string `json:"form,omitempty"`

	Players    []Player  `json:"players,omitempty"`
	PlayerName string    `json:"player_name,omitempty"`
	Identity   *Identity `json:"identity,omitempty"`
	Cvar       *Cvar     `json:"cvar,omitempty"`

	// Raw is the original block. Only set when requested.
	Raw string `json:"raw,omitempty"`
}

// Matched reports whether the block was classified as anything but Ignored.
func (r Result) Matched() bool {
	return r.Kind != Ignored
}

// IgnoredResult is the result for a block that matched nothing.
func IgnoredResult() Result {
	return Result{Kind: Ignored}
}
