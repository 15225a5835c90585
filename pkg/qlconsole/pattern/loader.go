package pattern

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qlconsole/qlconsole-go/internal/safefile"
	"github.com/qlconsole/qlconsole-go/pkg/qlconsole/event"
)

// sanitizePathError removes the path from os.PathError so error messages do
// not expose file system paths.
func sanitizePathError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%s: %w", pathErr.Op, pathErr.Err)
	}
	return err
}

const (
	// MaxRuleFileSize is the maximum allowed size for a rule file (1MB).
	MaxRuleFileSize = 1 * 1024 * 1024

	// MaxPatternLength is the maximum allowed length for a single regex (512 bytes).
	MaxPatternLength = 512

	// MaxFormCount is the maximum number of forms a single rule may carry.
	MaxFormCount = 16

	// SupportedVersion is the currently supported rule file format version.
	SupportedVersion = 1
)

// Load reads and validates a rule file from the given path.
// Only regular files up to MaxRuleFileSize are accepted.
func Load(path string) (*RuleFile, error) {
	data, err := safefile.ReadAll(path, MaxRuleFileSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", sanitizePathError(err))
	}
	return LoadBytes(data)
}

// LoadBytes parses and validates a rule file from a byte slice.
func LoadBytes(data []byte) (*RuleFile, error) {
	if len(data) == 0 {
		return nil, errors.New("rule file is empty")
	}
	if len(data) > MaxRuleFileSize {
		return nil, fmt.Errorf("rule file too large: %d bytes (max %d)", len(data), MaxRuleFileSize)
	}

	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := rf.Validate(); err != nil {
		return nil, err
	}

	return &rf, nil
}

// Validate performs schema-level validation on the rule file. It checks for:
//   - Supported version number
//   - At least one rule
//   - Known, unique kinds ("ignored" cannot have a rule)
//   - At least one form per rule, each with an id and a regex
//   - Unique form ids across the file
//   - Pattern length limits
//
// Regular expressions are compiled by Compile, not here.
func (rf *RuleFile) Validate() error {
	if rf.Version != SupportedVersion {
		return &ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (only version %d is supported)", rf.Version, SupportedVersion),
		}
	}

	if len(rf.Rules) == 0 {
		return &ValidationError{
			Field:   "rules",
			Message: "at least one rule is required",
		}
	}

	seenKinds := make(map[event.Kind]int, len(rf.Rules))
	seenForms := make(map[string]string)

	for i, r := range rf.Rules {
		if r.Kind == "" {
			return &PatternError{Index: i, Field: "kind", Message: "kind is required"}
		}
		kind, ok := event.ParseKind(r.Kind)
		if !ok {
			return &PatternError{Index: i, Kind: r.Kind, Field: "kind", Message: "unknown kind"}
		}
		if kind == event.Ignored {
			return &PatternError{Index: i, Kind: r.Kind, Field: "kind", Message: "ignored is the default classification and cannot have a rule"}
		}
		if prev, exists := seenKinds[kind]; exists {
			return &PatternError{
				Index:   i,
				Kind:    r.Kind,
				Field:   "kind",
				Message: fmt.Sprintf("duplicate kind (previously defined at rule[%d])", prev),
			}
		}
		seenKinds[kind] = i

		if len(r.Forms) == 0 {
			return &PatternError{Index: i, Kind: r.Kind, Field: "forms", Message: "at least one form is required"}
		}
		if len(r.Forms) > MaxFormCount {
			return &PatternError{
				Index:   i,
				Kind:    r.Kind,
				Field:   "forms",
				Message: fmt.Sprintf("too many forms (%d), maximum allowed is %d", len(r.Forms), MaxFormCount),
			}
		}

		for _, f := range r.Forms {
			if f.ID == "" {
				return &PatternError{Index: i, Kind: r.Kind, Field: "id", Message: "form id is required"}
			}
			if owner, exists := seenForms[f.ID]; exists {
				return &PatternError{
					Index:   i,
					Kind:    r.Kind,
					Form:    f.ID,
					Field:   "id",
					Message: fmt.Sprintf("duplicate form id (previously used by %q)", owner),
				}
			}
			seenForms[f.ID] = r.Kind

			if f.Regex == "" {
				return &PatternError{Index: i, Kind: r.Kind, Form: f.ID, Field: "regex", Message: "regex is required"}
			}
			if len(f.Regex) > MaxPatternLength {
				return &PatternError{
					Index:   i,
					Kind:    r.Kind,
					Form:    f.ID,
					Field:   "regex",
					Message: fmt.Sprintf("pattern too long: %d bytes (max %d)", len(f.Regex), MaxPatternLength),
				}
			}
		}
	}

	return nil
}
