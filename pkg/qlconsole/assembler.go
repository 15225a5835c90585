package qlconsole

import (
	"strings"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
)

// DefaultMaxBlockLines caps how many lines one command response may hold.
// A full configstrings dump stays well below it.
const DefaultMaxBlockLines = 8192

// Block is one unit of console output handed to the engine.
type Block struct {
	// Seq is the 1-based line number of the block's first line.
	Seq  uint64
	Text string
	// Hint names the command that produced the block, or Ignored.
	Hint event.Kind
}

// Assembler groups console lines into blocks.
//
// A line starting with "]" is the console's echo of a typed command. It
// closes the open response and opens a new one hinted with the command's
// kind. Lines that follow are collected until the next echo, until a line
// that is an unsolicited notice on its own, or until Flush. Lines outside
// a response become single-line blocks. A line is only taken as a notice
// if isNotice says so for the open response's hint, so a players row for a
// player named "connected" stays in its dump.
//
// An Assembler is not safe for concurrent use.
type Assembler struct {
	isNotice func(line string, hint event.Kind) bool
	maxLines int

	line  uint64
	open  bool
	hint  event.Kind
	start uint64
	buf   []string
}

// NewAssembler returns an assembler. isNotice reports whether a line read
// inside a response hinted with hint is an unsolicited notice that ends the
// response; it may be nil.
func NewAssembler(isNotice func(line string, hint event.Kind) bool) *Assembler {
	return &Assembler{
		isNotice: isNotice,
		maxLines: DefaultMaxBlockLines,
	}
}

// Push adds one line and returns the blocks it completed, in order.
func (a *Assembler) Push(line string) []Block {
	a.line++
	line = strings.TrimRight(line, "\r")

	if cmd, ok := strings.CutPrefix(strings.TrimLeft(line, " \t"), "]"); ok {
		var out []Block
		if b, ok := a.Flush(); ok {
			out = append(out, b)
		}
		a.open = true
		a.hint = HintForCommand(cmd)
		a.start = a.line + 1
		return out
	}

	if strings.TrimSpace(line) == "" {
		return nil
	}

	if a.open && (a.isNotice == nil || !a.isNotice(line, a.hint)) {
		if len(a.buf) == 0 {
			a.start = a.line
		}
		a.buf = append(a.buf, line)
		if len(a.buf) >= a.maxLines {
			b, _ := a.Flush()
			return []Block{b}
		}
		return nil
	}

	var out []Block
	if b, ok := a.Flush(); ok {
		out = append(out, b)
	}
	return append(out, Block{Seq: a.line, Text: line})
}

// Flush closes the open response. It returns false if there was nothing to
// emit.
func (a *Assembler) Flush() (Block, bool) {
	if !a.open {
		return Block{}, false
	}
	a.open = false
	if len(a.buf) == 0 {
		return Block{}, false
	}
	b := Block{
		Seq:  a.start,
		Text: strings.Join(a.buf, "\n"),
		Hint: a.hint,
	}
	a.buf = a.buf[:0]
	a.hint = event.Ignored
	return b, true
}

// Pending reports whether a response is open.
func (a *Assembler) Pending() bool {
	return a.open
}

// HintForCommand returns the kind a command's response is expected to have.
// cmd is the echoed command line without the leading "]". A bare token that
// is not a known command is taken as a cvar query.
func HintForCommand(cmd string) event.Kind {
	fields := strings.Fields(cmd)
	if len(fields) == 0 {
		return event.Ignored
	}
	name := strings.ToLower(strings.TrimLeft(fields[0], `\/`))
	switch name {
	case "":
		return event.Ignored
	case "players":
		return event.Players
	case "configstrings":
		return event.ConfigStrings
	case "serverinfo":
		return event.ServerInfo
	}
	if len(fields) > 1 {
		return event.Ignored
	}
	switch name {
	case "sv_gtid":
		return event.ServerInfoID
	case "g_gametype":
		return event.ServerInfoGametype
	case "g_gamestate":
		return event.ServerInfoGamestate
	}
	return event.CvarRequest
}
