package main

import (
	"fmt"
	"strings"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
)

// NormalizeKinds parses kind names given on the command line. Names are
// case-insensitive and trimmed; duplicates are removed. Empty or unknown
// names are an error.
func NormalizeKinds(names []string) ([]event.Kind, error) {
	if len(names) == 0 {
		return nil, nil
	}

	seen := make(map[event.Kind]bool, len(names))
	kinds := make([]event.Kind, 0, len(names))
	for _, name := range names {
		n := strings.ToLower(strings.TrimSpace(name))
		if n == "" {
			return nil, fmt.Errorf("empty kind in list")
		}
		k, ok := event.ParseKind(n)
		if !ok || k == event.Ignored {
			return nil, fmt.Errorf("unknown kind %q (valid: %s)", name, strings.Join(event.KindNames(), ", "))
		}
		if !seen[k] {
			seen[k] = true
			kinds = append(kinds, k)
		}
	}
	return kinds, nil
}

// ParseHint parses a --hint value. An empty value means no hint.
func ParseHint(name string) (event.Kind, error) {
	if strings.TrimSpace(name) == "" {
		return event.Ignored, nil
	}
	kinds, err := NormalizeKinds([]string{name})
	if err != nil {
		return event.Ignored, err
	}
	return kinds[0], nil
}

// RejectOverlap returns an error if a kind is both included and excluded.
func RejectOverlap(include, exclude []event.Kind) error {
	in := make(map[event.Kind]bool, len(include))
	for _, k := range include {
		in[k] = true
	}
	for _, k := range exclude {
		if in[k] {
			return fmt.Errorf("kind %s is both included and excluded", k)
		}
	}
	return nil
}
