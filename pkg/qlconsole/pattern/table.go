package pattern

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
)

// Capture group names read by the extractor.
const (
	GroupID        = "id"
	GroupName      = "name"
	GroupIndex     = "index"
	GroupPayload   = "payload"
	GroupGametype  = "gametype"
	GroupGamestate = "gamestate"
	GroupCvar      = "cvar"
	GroupValue     = "value"
)

// requiredGroups lists the named groups every form of a kind must define.
// A ConfigStrings form without an index group reads bare payloads.
var requiredGroups = map[event.Kind][]string{
	event.ServerInfoID:        {GroupID},
	event.ServerInfoGametype:  {GroupGametype},
	event.ServerInfoGamestate: {GroupGamestate},
	event.ConfigStrings:       {GroupPayload},
	event.Players:             {GroupID, GroupName},
	event.CvarRequest:         {GroupCvar, GroupValue},
	event.PlayerConnected:     {GroupName},
	event.PlayerDisconnected:  {GroupName},
	event.PlayerKicked:        {GroupName},
	event.PlayerRageQuit:      {GroupName},
}

// RequiredGroups returns the capture groups the extractor needs for kind.
func RequiredGroups(kind event.Kind) []string {
	return requiredGroups[kind]
}

// Form is one compiled surface form of a rule.
type Form struct {
	ID     string
	Regexp *regexp.Regexp
}

// Group returns the named group from a submatch of this form, or "".
func (f *Form) Group(match []string, name string) string {
	i := f.Regexp.SubexpIndex(name)
	if i < 0 || i >= len(match) {
		return ""
	}
	return match[i]
}

// Rule is the immutable, compiled rule for one kind.
type Rule struct {
	Kind          event.Kind
	Multiline     bool
	CaseSensitive bool
	Forms         []*Form

	// Groups are the named capture groups across all forms, in order of first
	// appearance.
	Groups []string
}

// ID returns the rule's identifier, which is its kind name.
func (r *Rule) ID() string {
	return r.Kind.String()
}

// Match returns the first form that matches text and its leftmost submatch.
func (r *Rule) Match(text string) (*Form, []string) {
	for _, f := range r.Forms {
		if m := f.Regexp.FindStringSubmatch(text); m != nil {
			return f, m
		}
	}
	return nil, nil
}

// MatchAll returns the first form with at least one match in text and all of
// its non-overlapping submatches, in order.
func (r *Rule) MatchAll(text string) (*Form, [][]string) {
	for _, f := range r.Forms {
		if ms := f.Regexp.FindAllStringSubmatch(text, -1); len(ms) > 0 {
			return f, ms
		}
	}
	return nil, nil
}

// Table is a compiled, read-only set of rules keyed by kind.
// Table is safe for concurrent use by multiple goroutines.
type Table struct {
	rules  []*Rule
	byKind map[event.Kind]*Rule
}

// Compile validates rf and compiles every form. It fails on any invalid
// regex or on a form that lacks a capture group its kind requires.
func Compile(rf *RuleFile) (*Table, error) {
	if rf == nil {
		return nil, fmt.Errorf("%w: rule file is nil", ErrConfiguration)
	}
	if err := rf.Validate(); err != nil {
		return nil, err
	}

	t := &Table{
		rules:  make([]*Rule, 0, len(rf.Rules)),
		byKind: make(map[event.Kind]*Rule, len(rf.Rules)),
	}

	for i, spec := range rf.Rules {
		kind, _ := event.ParseKind(spec.Kind) // checked by Validate

		rule := &Rule{
			Kind:          kind,
			Multiline:     spec.Multiline,
			CaseSensitive: spec.CaseSensitive,
			Forms:         make([]*Form, 0, len(spec.Forms)),
		}
		seenGroups := make(map[string]bool)

		for _, fs := range spec.Forms {
			re, err := regexp.Compile(flagPrefix(spec) + fs.Regex)
			if err != nil {
				return nil, &PatternError{
					Index:   i,
					Kind:    spec.Kind,
					Form:    fs.ID,
					Field:   "regex",
					Message: fmt.Sprintf("invalid regular expression: %v", err),
					Cause:   err,
				}
			}

			for _, g := range requiredGroups[kind] {
				if re.SubexpIndex(g) < 0 {
					return nil, &PatternError{
						Index:   i,
						Kind:    spec.Kind,
						Form:    fs.ID,
						Field:   "regex",
						Message: fmt.Sprintf("missing required capture group %q", g),
					}
				}
			}

			// SubexpNames()[0] is the whole match.
			for _, name := range re.SubexpNames()[1:] {
				if name != "" && !seenGroups[name] {
					seenGroups[name] = true
					rule.Groups = append(rule.Groups, name)
				}
			}

			rule.Forms = append(rule.Forms, &Form{ID: fs.ID, Regexp: re})
		}

		t.rules = append(t.rules, rule)
		t.byKind[kind] = rule
	}

	return t, nil
}

func flagPrefix(spec RuleSpec) string {
	var flags strings.Builder
	if !spec.CaseSensitive {
		flags.WriteByte('i')
	}
	if spec.Multiline {
		flags.WriteByte('m')
	}
	if flags.Len() == 0 {
		return ""
	}
	return "(?" + flags.String() + ")"
}

// Lookup returns the rule for kind.
func (t *Table) Lookup(kind event.Kind) (*Rule, bool) {
	r, ok := t.byKind[kind]
	return r, ok
}

// Rules returns the rules in registration order. The returned slice is a copy;
// the rules themselves must not be modified.
func (t *Table) Rules() []*Rule {
	out := make([]*Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// CheckComplete returns an error unless every kind except Ignored has a rule.
func (t *Table) CheckComplete() error {
	var missing []string
	for _, k := range event.Kinds() {
		if _, ok := t.byKind[k]; !ok {
			missing = append(missing, k.String())
		}
	}
	if len(missing) > 0 {
		return &ValidationError{
			Field:   "rules",
			Message: "missing rules for kinds: " + strings.Join(missing, ", "),
		}
	}
	return nil
}
