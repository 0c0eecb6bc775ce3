// Package semantics infers the intent of a column from its name.
//
// A column carries at most one SemanticType. Detection walks Rules in order
// and the first matching pattern wins, so a name that could fit several
// roles always resolves the same way.
package semantics

import (
	"regexp"
	"slices"
	"sort"

	"github.com/koustreak/tabula/internal/schema"
)

// SemanticType is the inferred role of a column.
type SemanticType string

const (
	CreatedAt SemanticType = "created_at"
	UpdatedAt SemanticType = "updated_at"
	DeletedAt SemanticType = "deleted_at"
	CreatedBy SemanticType = "created_by"
	UpdatedBy SemanticType = "updated_by"
	Status    SemanticType = "status"
	None      SemanticType = "none"
)

// IsAutoTimestamp reports whether the engine fills the column with the clock.
func (s SemanticType) IsAutoTimestamp() bool {
	return s == CreatedAt || s == UpdatedAt
}

// IsAutoUser reports whether the engine fills the column with the acting user.
func (s SemanticType) IsAutoUser() bool {
	return s == CreatedBy || s == UpdatedBy
}

// IsCreation reports whether the column records how a row came to exist.
// Such columns are immutable after insert.
func (s SemanticType) IsCreation() bool {
	return s == CreatedAt || s == CreatedBy
}

// IsUpdate reports whether the column records the latest change.
func (s SemanticType) IsUpdate() bool {
	return s == UpdatedAt || s == UpdatedBy
}

// ParseSemanticType converts a stored name back to a SemanticType.
// Unrecognised names yield None and false.
func ParseSemanticType(s string) (SemanticType, bool) {
	t := SemanticType(s)
	for _, r := range Rules {
		if r.Type == t {
			return t, true
		}
	}
	return None, false
}

// Rule binds a SemanticType to the column-name patterns that imply it.
type Rule struct {
	Type     SemanticType
	Patterns []*regexp.Regexp
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)^` + e + `$`)
	}
	return out
}

// Rules is the ordered detection table. Order is significant.
var Rules = []Rule{
	{CreatedAt, patterns(
		`created[-_]?at`, `created[-_]?on`, `date[-_]?created`, `creation[-_]?date`, `created`,
	)},
	{UpdatedAt, patterns(
		`updated[-_]?at`, `updated[-_]?on`, `modified[-_]?at`, `modified[-_]?on`,
		`date[-_]?updated`, `date[-_]?modified`, `last[-_]?modified`, `last[-_]?updated`,
	)},
	{DeletedAt, patterns(
		`deleted[-_]?at`, `deleted[-_]?on`, `date[-_]?deleted`, `soft[-_]?deleted`,
	)},
	{CreatedBy, patterns(
		`created[-_]?by`, `author`, `creator`, `owner`,
	)},
	{UpdatedBy, patterns(
		`updated[-_]?by`, `modified[-_]?by`, `last[-_]?modified[-_]?by`, `editor`,
	)},
	{Status, patterns(
		`status`, `state`, `is[-_]?active`, `active`, `enabled`, `is[-_]?enabled`,
	)},
}

// Detect returns the role implied by a column name, or None.
func Detect(column string) SemanticType {
	for _, r := range Rules {
		for _, p := range r.Patterns {
			if p.MatchString(column) {
				return r.Type
			}
		}
	}
	return None
}

// ColumnSemantics maps column names to their detected role. It is sparse:
// columns without a role are absent.
type ColumnSemantics map[string]SemanticType

// ScanTable classifies every column of meta.
func ScanTable(meta *schema.TableMetadata) ColumnSemantics {
	out := make(ColumnSemantics)
	for _, c := range meta.Columns {
		if t := Detect(c.Name); t != None {
			out[c.Name] = t
		}
	}
	return out
}

// Of returns the role of column, or None.
func (cs ColumnSemantics) Of(column string) SemanticType {
	if t, ok := cs[column]; ok {
		return t
	}
	return None
}

// Columns returns the sorted names of the columns whose role is one of types.
func (cs ColumnSemantics) Columns(types ...SemanticType) []string {
	var out []string
	for col, t := range cs {
		if slices.Contains(types, t) {
			out = append(out, col)
		}
	}
	sort.Strings(out)
	return out
}

// SoftDeleteColumn returns the deleted_at column when the table has one.
// With several candidates the alphabetically first is used.
func (cs ColumnSemantics) SoftDeleteColumn() (string, bool) {
	cols := cs.Columns(DeletedAt)
	if len(cols) == 0 {
		return "", false
	}
	return cols[0], true
}

// Clone returns an independent copy.
func (cs ColumnSemantics) Clone() ColumnSemantics {
	out := make(ColumnSemantics, len(cs))
	for k, v := range cs {
		out[k] = v
	}
	return out
}
