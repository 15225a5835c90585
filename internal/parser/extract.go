package parser

import (
	"strconv"
	"strings"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/pattern"
)

// Extract applies the rule selected by Classify to text and returns the typed
// result. A match whose fields cannot be typed (a non-numeric id, a slot out
// of range, an empty name) yields an Ignored result.
func Extract(table *pattern.Table, m Match, text string) event.Result {
	if m.Kind == event.Ignored || m.Rule == nil || m.Form == nil {
		return event.IgnoredResult()
	}

	var (
		res event.Result
		ok  bool
	)
	switch m.Kind {
	case event.ServerInfoID, event.ServerInfoGametype, event.ServerInfoGamestate:
		var id event.Identity
		if ok = identityField(m.Kind, m.Form, m.Submatch, &id); ok {
			res.Identity = &id
		}
	case event.ServerInfo:
		res.Identity, ok = extractServerInfo(table, text)
	case event.ConfigStrings:
		res.Players, ok = extractConfigStrings(m.Rule, text)
	case event.Players:
		res.Players, ok = extractPlayers(m.Rule, text)
	case event.CvarRequest:
		res.Cvar, ok = extractCvar(m.Form, m.Submatch)
	case event.PlayerConnected, event.PlayerDisconnected, event.PlayerKicked, event.PlayerRageQuit:
		res.PlayerName = cleanName(m.Form.Group(m.Submatch, pattern.GroupName))
		ok = res.PlayerName != ""
	case event.MapLoaded, event.InitInfo:
		ok = true
	default:
		ok = false
	}

	if !ok {
		return event.IgnoredResult()
	}
	res.Kind = m.Kind
	res.Form = m.Form.ID
	return res
}

// ClassifyAndExtract classifies text and extracts the matching result.
// CRLF line endings are accepted.
func ClassifyAndExtract(table *pattern.Table, text string, hint event.Kind) event.Result {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return Extract(table, Classify(table, text, hint), text)
}

// identityField stores the single identity field captured by a server info
// rule into id.
func identityField(kind event.Kind, form *pattern.Form, sub []string, id *event.Identity) bool {
	switch kind {
	case event.ServerInfoID:
		v := form.Group(sub, pattern.GroupID)
		if !publicIDPattern.MatchString(v) {
			return false
		}
		id.PublicID = v
	case event.ServerInfoGametype:
		code, err := strconv.Atoi(form.Group(sub, pattern.GroupGametype))
		if err != nil {
			return false
		}
		id.GameType = event.GameTypeFromCode(code)
	case event.ServerInfoGamestate:
		id.GameState = event.GameStateFromValue(form.Group(sub, pattern.GroupGamestate))
	default:
		return false
	}
	return true
}

// extractServerInfo applies the three identity rules independently. A block
// carrying none of them yields a nil identity; a malformed field rejects the
// whole block.
func extractServerInfo(table *pattern.Table, text string) (*event.Identity, bool) {
	var (
		id    event.Identity
		found bool
	)
	for _, kind := range []event.Kind{event.ServerInfoID, event.ServerInfoGametype, event.ServerInfoGamestate} {
		rule, ok := table.Lookup(kind)
		if !ok {
			continue
		}
		form, sub := rule.Match(text)
		if form == nil {
			continue
		}
		if !identityField(kind, form, sub, &id) {
			return nil, false
		}
		found = true
	}
	if !found {
		return nil, true
	}
	return &id, true
}

// extractConfigStrings reads every player configstring row in text. Rows
// outside the player range or without a name are skipped. Bare payloads
// carry no index and yield players with PendingID.
func extractConfigStrings(rule *pattern.Rule, text string) ([]event.Player, bool) {
	form, rows := rule.MatchAll(text)
	if form == nil {
		return nil, false
	}

	if form.Regexp.SubexpIndex(pattern.GroupIndex) < 0 {
		var players []event.Player
		for _, row := range rows {
			if p, ok := parsePayload(form.Group(row, pattern.GroupPayload)); ok {
				p.ID = event.PendingID
				players = append(players, p)
			}
		}
		return players, true
	}

	var players []event.Player
	for _, row := range rows {
		index, err := strconv.Atoi(form.Group(row, pattern.GroupIndex))
		if err != nil {
			return nil, false
		}
		if index < configStringPlayers || index > configStringPlayersEnd {
			continue
		}
		p, ok := parsePayload(form.Group(row, pattern.GroupPayload))
		if !ok {
			continue
		}
		p.ID = index - configStringPlayers
		players = append(players, p)
	}
	return players, true
}

// parsePayload reads name, team and ready flag from a player configstring
// payload. Sub-fields after those are ignored.
func parsePayload(payload string) (event.Player, bool) {
	payload = colorCodePattern.ReplaceAllString(payload, "")

	m := payloadNamePattern.FindStringSubmatch(payload)
	if m == nil {
		return event.Player{}, false
	}
	p := event.Player{Name: m[1]}

	if m := payloadTeamPattern.FindStringSubmatch(payload); m != nil {
		code, _ := strconv.Atoi(m[1])
		p.Team, _ = event.TeamFromCode(code)
	}
	if m := payloadReadyPattern.FindStringSubmatch(payload); m != nil {
		if m[1] == "0" {
			p.Ready = event.NotReady
		} else {
			p.Ready = event.Ready
		}
	}
	return p, true
}

// extractPlayers reads the rows of a players listing. Each row yields an id
// and name stub; team and ready status are not part of the listing.
func extractPlayers(rule *pattern.Rule, text string) ([]event.Player, bool) {
	form, rows := rule.MatchAll(colorCodePattern.ReplaceAllString(text, ""))
	if form == nil {
		return nil, false
	}

	players := make([]event.Player, 0, len(rows))
	for _, row := range rows {
		id, err := strconv.Atoi(form.Group(row, pattern.GroupID))
		if err != nil || id >= event.MaxPlayers {
			return nil, false
		}
		name := form.Group(row, pattern.GroupName)
		if name == "" {
			return nil, false
		}
		players = append(players, event.Player{ID: id, Name: name})
	}
	return players, true
}

func extractCvar(form *pattern.Form, sub []string) (*event.Cvar, bool) {
	name := strings.TrimSpace(form.Group(sub, pattern.GroupCvar))
	if name == "" {
		return nil, false
	}
	value := form.Group(sub, pattern.GroupValue)
	if strings.EqualFold(name, "name") {
		value = cleanName(value)
	} else {
		value = trailingColorPattern.ReplaceAllString(value, "")
	}
	return &event.Cvar{Name: name, Value: value}, true
}

// cleanName strips colour codes and surrounding blanks from a player name.
func cleanName(s string) string {
	return strings.TrimSpace(colorCodePattern.ReplaceAllString(s, ""))
}
