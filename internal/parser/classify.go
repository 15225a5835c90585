// Package parser classifies blocks of Quake Live console output and extracts
// typed results from them. Everything here is a pure function of a compiled
// rule table and the input text.
package parser

import (
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/pattern"
)

// Match is the outcome of classifying a block.
type Match struct {
	Kind event.Kind

	// Rule and Form are nil when Kind is Ignored.
	Rule *pattern.Rule
	Form *pattern.Form

	// Submatch is the leftmost match of Form.
	Submatch []string
}

// unsolicited is the scan order for blocks that no hint explains: the player
// notices and the map load banner, then the game initialization banner.
var unsolicited = append(append([]event.Kind(nil), event.EventPriority...), event.InitInfo)

// Classify picks the kind of text. A hint other than Ignored names the
// command that produced the block and is tried first; when it does not match,
// or there is no hint, the unsolicited rules are scanned in priority order.
// Classify never fails: text that matches nothing yields Kind Ignored.
func Classify(table *pattern.Table, text string, hint event.Kind) Match {
	if table == nil {
		return Match{Kind: event.Ignored}
	}

	if hint != event.Ignored && hint.Valid() {
		if m, ok := try(table, hint, text); ok {
			return m
		}
	}

	for _, kind := range unsolicited {
		if kind == hint {
			continue
		}
		if m, ok := try(table, kind, text); ok {
			return m
		}
	}
	return Match{Kind: event.Ignored}
}

func try(table *pattern.Table, kind event.Kind, text string) (Match, bool) {
	rule, ok := table.Lookup(kind)
	if !ok {
		return Match{}, false
	}
	form, sub := rule.Match(text)
	if form == nil {
		return Match{}, false
	}
	return Match{Kind: kind, Rule: rule, Form: form, Submatch: sub}, true
}
