package pattern

import (
	_ "embed"
	"fmt"
	"sync"
)

//go:embed rules.yaml
var defaultRules []byte

var (
	defaultOnce  sync.Once
	defaultTable *Table
	defaultErr   error
)

// Default returns the built-in rule table. It is compiled once and shared.
func Default() (*Table, error) {
	defaultOnce.Do(func() {
		defaultTable, defaultErr = compileComplete(defaultRules)
	})
	return defaultTable, defaultErr
}

// MustDefault is like Default but panics if the built-in table is invalid.
// It is meant for program start-up, where a broken table must abort.
func MustDefault() *Table {
	t, err := Default()
	if err != nil {
		panic(fmt.Sprintf("pattern: built-in rule table: %v", err))
	}
	return t
}

// DefaultRuleFile returns a freshly parsed copy of the built-in rule file,
// e.g. as a starting point for a localized table.
func DefaultRuleFile() (*RuleFile, error) {
	return LoadBytes(defaultRules)
}

// LoadTable loads a rule file from path and compiles it into a table that must
// cover every kind.
func LoadTable(path string) (*Table, error) {
	rf, err := Load(path)
	if err != nil {
		return nil, err
	}
	return compileRuleFile(rf)
}

func compileComplete(data []byte) (*Table, error) {
	rf, err := LoadBytes(data)
	if err != nil {
		return nil, err
	}
	return compileRuleFile(rf)
}

func compileRuleFile(rf *RuleFile) (*Table, error) {
	t, err := Compile(rf)
	if err != nil {
		return nil, err
	}
	if err := t.CheckComplete(); err != nil {
		return nil, err
	}
	return t, nil
}
