package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
)

// ValidFormats lists all valid output formats.
var ValidFormats = map[string]bool{
	"auto":   true,
	"jsonl":  true,
	"pretty": true,
}

// resolveFormat validates format and turns "auto" into pretty on a terminal
// and jsonl otherwise.
func resolveFormat(format string, out *os.File) (string, error) {
	if !ValidFormats[format] {
		return "", fmt.Errorf("invalid format %q (valid: auto, jsonl, pretty)", format)
	}
	if format != "auto" {
		return format, nil
	}
	if out != nil && (isatty.IsTerminal(out.Fd()) || isatty.IsCygwinTerminal(out.Fd())) {
		return "pretty", nil
	}
	return "jsonl", nil
}

// OutputResult writes a classification result in the specified format.
func OutputResult(format string, res event.Result, out io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(res, out)
	case "pretty":
		return OutputPretty(res, out)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputDelta writes a roster delta in the specified format.
func OutputDelta(format string, d qlconsole.RosterDelta, out io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(d, out)
	case "pretty":
		_, err := fmt.Fprintln(out, prettyDelta(d))
		return err
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputSnapshot writes a roster snapshot in the specified format.
func OutputSnapshot(format string, s qlconsole.Snapshot, out io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(s, out)
	case "pretty":
		_, err := io.WriteString(out, prettySnapshot(s))
		return err
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputJSON writes v as one JSON line.
func OutputJSON(v any, out io.Writer) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// OutputPretty writes a result in human-readable format.
func OutputPretty(res event.Result, out io.Writer) error {
	var err error
	switch res.Kind {
	case event.PlayerConnected:
		_, err = fmt.Fprintf(out, "+ %s connected\n", res.PlayerName)
	case event.PlayerDisconnected:
		_, err = fmt.Fprintf(out, "- %s disconnected\n", res.PlayerName)
	case event.PlayerKicked:
		_, err = fmt.Fprintf(out, "- %s was kicked\n", res.PlayerName)
	case event.PlayerRageQuit:
		_, err = fmt.Fprintf(out, "- %s ragequit\n", res.PlayerName)
	case event.MapLoaded:
		_, err = fmt.Fprintln(out, "> map loaded")
	case event.InitInfo:
		_, err = fmt.Fprintln(out, "> game initialization")
	case event.Players, event.ConfigStrings:
		_, err = fmt.Fprintf(out, "= %s: %s\n", res.Kind, formatPlayers(res.Players))
	case event.CvarRequest:
		if res.Cvar != nil {
			_, err = fmt.Fprintf(out, "* %s: %s\n", res.Kind, formatData(map[string]string{res.Cvar.Name: res.Cvar.Value}))
		} else {
			_, err = fmt.Fprintf(out, "* %s\n", res.Kind)
		}
	default:
		if res.Identity != nil {
			_, err = fmt.Fprintf(out, "* %s: %s\n", res.Kind, formatData(identityData(*res.Identity)))
		} else {
			_, err = fmt.Fprintf(out, "* %s\n", res.Kind)
		}
	}
	return err
}

func prettyDelta(d qlconsole.RosterDelta) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[gen %d]", d.Generation)
	if d.Reset {
		sb.WriteString(" reset")
	}
	for _, p := range d.Joined {
		sb.WriteString(" +" + p.Name)
	}
	for _, p := range d.Left {
		sb.WriteString(" -" + p.Name)
	}
	for _, p := range d.Updated {
		sb.WriteString(" ~" + p.Name)
	}
	if d.IdentityChanged {
		sb.WriteString(" identity " + formatData(identityData(d.Current.Identity)))
	}
	if d.Empty() {
		sb.WriteString(" no change")
	}
	return sb.String()
}

func prettySnapshot(s qlconsole.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "session %s generation %d\n", s.Session, s.Generation)
	fmt.Fprintf(&sb, "server %s\n", formatData(identityData(s.Identity)))
	if s.SelfName != "" {
		fmt.Fprintf(&sb, "self %s\n", quoteIfNeeded(s.SelfName))
	}
	for _, p := range s.Roster() {
		id := strconv.Itoa(p.ID)
		if p.Pending() {
			id = "?"
		}
		fmt.Fprintf(&sb, "%3s  %-20s %-10s %s\n", id, p.Name, p.Team, p.Ready)
	}
	return sb.String()
}

func formatPlayers(players []event.Player) string {
	if len(players) == 0 {
		return "(none)"
	}
	parts := make([]string, 0, len(players))
	for _, p := range players {
		parts = append(parts, fmt.Sprintf("%d %s", p.ID, p.Name))
	}
	return strings.Join(parts, ", ")
}

func identityData(id event.Identity) map[string]string {
	data := map[string]string{
		"game_type":  id.GameType.String(),
		"game_state": id.GameState.String(),
	}
	if id.PublicID != "" {
		data["public_id"] = id.PublicID
	}
	return data
}

// formatData formats a map as sorted key=value pairs.
// Values are quoted if they contain spaces, equals signs, quotes, or control characters.
func formatData(data map[string]string) string {
	if len(data) == 0 {
		return ""
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(data))
	for _, k := range keys {
		parts = append(parts, quoteIfNeeded(k)+"="+quoteIfNeeded(data[k]))
	}
	return strings.Join(parts, " ")
}

// quoteIfNeeded quotes a value if it contains special characters or control
// characters. Player names carry ^N color codes, which are left alone.
func quoteIfNeeded(v string) string {
	if v == "" {
		return `""`
	}

	needsQuote := false
	for _, c := range v {
		if c == ' ' || c == '=' || c == '"' || c == '\\' || c < 0x20 || c == 0x7F {
			needsQuote = true
			break
		}
	}
	if !needsQuote {
		return v
	}

	var sb strings.Builder
	sb.WriteByte('"')
	for _, c := range v {
		switch {
		case c == '\\':
			sb.WriteString(`\\`)
		case c == '"':
			sb.WriteString(`\"`)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c == 0x7F:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteRune(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
