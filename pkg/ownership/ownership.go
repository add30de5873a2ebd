// Package ownership holds the versioned field-ownership table that decides
// which payload fields the source system owns and which ones are maintained
// by administrators of the target directory and must be carried forward.
package ownership

import (
	"os"
	"path/filepath"
	"reflect"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/orgsync/pkg/errors"
	"github.com/agentstation/orgsync/pkg/payload"
)

// CurrentVersion is the table format version this build understands.
const CurrentVersion = 1

// Owner names the system that owns a field.
type Owner string

const (
	// Source fields are always overwritten from the source system.
	Source Owner = "source"
	// Target fields keep the value already stored in the target.
	Target Owner = "target"
)

// Field assigns an owner to a field path.
type Field struct {
	Path     string `json:"path" yaml:"path"`         // Go field path, e.g. "LOSShortName", "Person.*"
	Owner    Owner  `json:"owner" yaml:"owner"`       // Which system owns the field
	Priority int    `json:"priority" yaml:"priority"` // Higher wins when patterns overlap
}

// Table is the ownership table for all kinds.
type Table struct {
	Version  int     `json:"version" yaml:"version"`
	OrgUnits []Field `json:"orgunit" yaml:"orgunit"`
	Users    []Field `json:"user" yaml:"user"`
}

// Default returns the built-in table. Short names and payout units are
// assigned by the target's administrators.
func Default() *Table {
	return &Table{
		Version: CurrentVersion,
		OrgUnits: []Field{
			{Path: "LOSShortName", Owner: Target, Priority: 100},
			{Path: "PayoutUnitUUID", Owner: Target, Priority: 100},
		},
	}
}

// Load reads a table from a YAML file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML table.
func Parse(data []byte) (*Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, errors.WrapParse("yaml", "ownership table", err)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks the version and every owner value.
func (t *Table) Validate() error {
	if t.Version != CurrentVersion {
		return errors.NewConfigError("ownership", "unsupported table version", nil)
	}
	for _, f := range append(append([]Field{}, t.OrgUnits...), t.Users...) {
		if f.Owner != Source && f.Owner != Target {
			return errors.NewConfigError("ownership", "invalid owner "+string(f.Owner)+" for "+f.Path, nil)
		}
		if f.Path == "" {
			return errors.NewConfigError("ownership", "empty field path", nil)
		}
	}
	return nil
}

// Find returns the ownership entry governing a field path, or nil when the
// field is source-owned by default.
func (t *Table) Find(kind payload.Kind, fieldPath string) *Field {
	return ByField(fieldPath, t.List(kind))
}

// List returns all entries for a kind.
func (t *Table) List(kind payload.Kind) []Field {
	switch kind {
	case payload.KindOrgUnit:
		return t.OrgUnits
	case payload.KindUser:
		return t.Users
	default:
		return nil
	}
}

// IsTargetOwned reports whether a field keeps the target's value.
func (t *Table) IsTargetOwned(kind payload.Kind, fieldPath string) bool {
	f := t.Find(kind, fieldPath)
	return f != nil && f.Owner == Target
}

// ByField returns the highest priority entry matching a field path.
func ByField(fieldPath string, fields []Field) *Field {
	var bestMatch *Field
	var bestPriority int
	var bestMatchLength int

	for i, f := range fields {
		if MatchesPattern(fieldPath, f.Path) {
			// Prioritize by: 1) priority, 2) pattern specificity (length), 3) order
			patternLength := len(f.Path)
			if bestMatch == nil || f.Priority > bestPriority ||
				(f.Priority == bestPriority && patternLength > bestMatchLength) {
				bestMatch = &fields[i]
				bestPriority = f.Priority
				bestMatchLength = patternLength
			}
		}
	}

	return bestMatch
}

// MatchesPattern checks if a field path matches a pattern (supports * wildcards)
func MatchesPattern(fieldPath, pattern string) bool {
	if fieldPath == pattern {
		return true
	}

	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(fieldPath) >= len(prefix) && fieldPath[:len(prefix)] == prefix
	}

	matched, err := filepath.Match(pattern, fieldPath)
	if err != nil {
		return false
	}
	return matched
}

// MergeForward returns src with every target-owned field replaced by the
// value stored in existing, provided that value is non-zero. A zero value in
// existing keeps the source value so the field can be seeded.
func MergeForward[T payload.Record](t *Table, src, existing T) T {
	if t == nil || len(t.List(src.Kind())) == 0 {
		return src
	}
	merged := src
	dst := reflect.ValueOf(&merged).Elem()
	old := reflect.ValueOf(existing)
	if dst.Kind() != reflect.Struct || old.Kind() != reflect.Struct {
		return src
	}
	mergeStruct(t, src.Kind(), "", dst, old)
	return merged
}

func mergeStruct(t *Table, kind payload.Kind, prefix string, dst, old reflect.Value) {
	typ := dst.Type()
	for i := range typ.NumField() {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		path := prefix + sf.Name
		df, of := dst.Field(i), old.Field(i)
		if sf.Type.Kind() == reflect.Struct {
			mergeStruct(t, kind, path+".", df, of)
			continue
		}
		if t.IsTargetOwned(kind, path) && !of.IsZero() {
			df.Set(of)
		}
	}
}
