// Package pattern holds the rule table used to classify Quake Live console
// output. Rules are described in YAML, one rule per block kind, and compiled
// once into a Table that is shared read-only by the classifier and extractor.
package pattern

// RuleFile represents the structure of a YAML rule file.
//
// Example YAML file:
//
//	version: 1
//	rules:
//	  - kind: player_kicked
//	    multiline: true
//	    forms:
//	      - id: kicked_servercmd
//	        regex: '^broadcast: print "(?P<name>.+?) was kicked'
//	      - id: kicked_print
//	        regex: '^(?P<name>.+?) was kicked'
type RuleFile struct {
	// Version is the rule file format version. Currently only version 1 is supported.
	Version int `yaml:"version"`

	// Rules is the list of rule definitions. Each kind may appear at most once.
	Rules []RuleSpec `yaml:"rules"`
}

// RuleSpec describes the rule for a single block kind.
type RuleSpec struct {
	// Kind is the snake_case kind name (e.g. "players", "player_connected").
	Kind string `yaml:"kind"`

	// Multiline makes ^ and $ match at line boundaries within a block.
	Multiline bool `yaml:"multiline"`

	// CaseSensitive disables the default case-insensitive matching.
	CaseSensitive bool `yaml:"case_sensitive"`

	// Forms are alternate surface forms of the same kind, tried in order.
	Forms []FormSpec `yaml:"forms"`
}

// FormSpec is one regular expression for a rule. Named capture groups
// (?P<name>...) carry the fields the extractor reads.
type FormSpec struct {
	ID    string `yaml:"id"`
	Regex string `yaml:"regex"`
}
