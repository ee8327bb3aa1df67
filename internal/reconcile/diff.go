// Package reconcile compares an incoming CSV column set with the columns of
// an existing table and turns per-column decisions into schema mutations.
// Everything in this package is pure: it never touches a database.
package reconcile

import (
	"github.com/sadopc/chatsheet/internal/schema"
)

// Status classifies one column of a Diff.
type Status int

const (
	// Matches: the column exists on both sides with a compatible type.
	Matches Status = iota
	// New: the incoming column does not exist in the table.
	New
	// TypeMismatch: the column exists but its type is incompatible.
	TypeMismatch
	// MissingFromSource: the table column is absent from the incoming file.
	MissingFromSource
)

func (s Status) String() string {
	switch s {
	case Matches:
		return "MATCHES"
	case New:
		return "NEW"
	case TypeMismatch:
		return "TYPE_MISMATCH"
	case MissingFromSource:
		return "MISSING_FROM_SOURCE"
	default:
		return "UNKNOWN"
	}
}

// Entry is the classification of a single column name.
type Entry struct {
	Name     string
	Status   Status
	Existing *schema.Column
	Incoming *schema.Column
}

// Conflict reports whether the entry needs a decision.
func (e Entry) Conflict() bool {
	return e.Status == New || e.Status == TypeMismatch
}

// Diff is the comparison of an existing table's columns with an incoming
// column set. Entries list the incoming columns in their order, followed by
// existing columns missing from the source in table order.
type Diff struct {
	Entries []Entry
}

// Entry returns the entry for name.
func (d Diff) Entry(name string) (Entry, bool) {
	for _, e := range d.Entries {
		if schema.SameName(e.Name, name) {
			return e, true
		}
	}
	return Entry{}, false
}

// Status returns the status of name and whether it is part of the diff.
func (d Diff) Status(name string) (Status, bool) {
	e, ok := d.Entry(name)
	return e.Status, ok
}

// Conflicts returns the NEW and TYPE_MISMATCH entries in diff order.
func (d Diff) Conflicts() []Entry {
	var out []Entry
	for _, e := range d.Entries {
		if e.Conflict() {
			out = append(out, e)
		}
	}
	return out
}

// HasConflicts reports whether any entry needs a decision.
func (d Diff) HasConflicts() bool {
	for _, e := range d.Entries {
		if e.Conflict() {
			return true
		}
	}
	return false
}

// Count returns the number of entries with status s.
func (d Diff) Count(s Status) int {
	n := 0
	for _, e := range d.Entries {
		if e.Status == s {
			n++
		}
	}
	return n
}

// ComputeDiff classifies every incoming and existing column. Both sets must
// be non-empty.
func ComputeDiff(existing, incoming schema.ColumnSet) (Diff, error) {
	if existing.Len() == 0 {
		return Diff{}, invalid("", "existing column set is empty")
	}
	if incoming.Len() == 0 {
		return Diff{}, invalid("", "incoming column set is empty")
	}

	var d Diff
	for _, in := range incoming.Columns() {
		ex, ok := existing.Lookup(in.Name)
		if !ok {
			d.Entries = append(d.Entries, Entry{Name: in.Name, Status: New, Incoming: &in})
			continue
		}
		status := Matches
		if !in.DataType.CompatibleWith(ex.DataType) {
			status = TypeMismatch
		}
		d.Entries = append(d.Entries, Entry{Name: in.Name, Status: status, Existing: &ex, Incoming: &in})
	}
	for _, ex := range existing.Columns() {
		if incoming.Has(ex.Name) {
			continue
		}
		d.Entries = append(d.Entries, Entry{Name: ex.Name, Status: MissingFromSource, Existing: &ex})
	}
	return d, nil
}
