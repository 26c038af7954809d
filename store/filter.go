package store

import (
	"strings"

	"caratdash/api/models"
)

// Clause is one predicate fragment with its bound arguments. The zero Clause
// is inactive and is dropped by Where.
type Clause struct {
	SQL  string
	Args []any
}

func (c Clause) active() bool { return c.SQL != "" }

// DateRange restricts column to [from 00:00, to+1day 00:00).
func DateRange(column string, f models.Filter) Clause {
	return Clause{
		SQL:  column + " >= ? AND " + column + " < ?",
		Args: []any{f.RangeStart(), f.RangeEnd()},
	}
}

// DayRange restricts a Date column to the inclusive day range.
func DayRange(column string, f models.Filter) Clause {
	return Clause{
		SQL:  column + " BETWEEN toDate(?) AND toDate(?)",
		Args: []any{f.RangeStart(), f.RangeEnd().AddDate(0, 0, -1)},
	}
}

// DeviceExists keeps rows whose user has been seen on the selected device
// class. Inactive for DeviceAll.
func DeviceExists(uidColumn string, f models.Filter) Clause {
	if !f.HasDevice() {
		return Clause{}
	}
	return Clause{
		SQL:  uidColumn + " IN (SELECT uid FROM client_date WHERE is_pc = ?)",
		Args: []any{isPC(f.Device)},
	}
}

// DeviceColumn filters directly on a device flag column of the base relation.
func DeviceColumn(column string, f models.Filter) Clause {
	if !f.HasDevice() {
		return Clause{}
	}
	return Clause{SQL: column + " = ?", Args: []any{isPC(f.Device)}}
}

// CohortExists keeps rows whose user belongs to the selected cluster.
// Inactive when no cohort is set.
func CohortExists(uidColumn string, f models.Filter) Clause {
	if !f.HasCohort() {
		return Clause{}
	}
	return Clause{
		SQL:  uidColumn + " IN (SELECT uid FROM cluster_client WHERE cluster_id = ?)",
		Args: []any{f.Cohort},
	}
}

// SessionScoped lifts user-level clauses, written against the bare uid column
// of session_client, onto a relation keyed by session id.
func SessionScoped(sessionColumn string, clauses ...Clause) Clause {
	where, args := Where(clauses...)
	if args == nil && where == "1" {
		return Clause{}
	}
	return Clause{
		SQL:  sessionColumn + " IN (SELECT session_id FROM session_client WHERE " + where + ")",
		Args: args,
	}
}

// Raw is a fixed predicate without arguments.
func Raw(sql string) Clause { return Clause{SQL: sql} }

// Where joins the active clauses with AND. It returns "1" when none is active
// so callers can always write "WHERE " + sql.
func Where(clauses ...Clause) (string, []any) {
	var parts []string
	var args []any
	for _, c := range clauses {
		if !c.active() {
			continue
		}
		parts = append(parts, "("+c.SQL+")")
		args = append(args, c.Args...)
	}
	if len(parts) == 0 {
		return "1", nil
	}
	return strings.Join(parts, "\n\t\t\tAND "), args
}

func isPC(d models.Device) uint8 {
	if d == models.DevicePC {
		return 1
	}
	return 0
}
