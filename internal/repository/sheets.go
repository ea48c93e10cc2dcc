package repository

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sheet names.
const (
	SheetChatLog       = "chat_log"
	SheetTickets       = "tickets"
	SheetSubstitutions = "substitution_requests"
	SheetEmergencies   = "emergency_alerts"
	SheetHelpdesk      = "helpdesk_tickets"
)

var (
	ErrUnknownSheet  = errors.New("unknown sheet")
	ErrUnknownColumn = errors.New("unknown column")
	ErrRowNotFound   = errors.New("row not found")
)

// Row is one ledger row keyed by column name.
type Row map[string]string

// Sheet describes a ledger table. Every column is free text, matching the
// spreadsheet the ledger mirrors.
type Sheet struct {
	Name      string
	KeyColumn string
	Columns   []string
}

var transitionColumns = []string{
	"handled_by", "handled_at",
	"resolved_by", "resolved_at",
	"rejected_by", "rejected_at", "reject_reason",
	"handed_over_by", "handed_over_at",
	"assigned_by", "escalated_at",
}

// Sheets is the fixed ledger layout.
var Sheets = map[string]Sheet{
	SheetChatLog: {
		Name:      SheetChatLog,
		KeyColumn: "message_key",
		Columns:   []string{"created_at", "message_key", "user_id", "user_name", "channel", "text"},
	},
	SheetTickets: {
		Name:      SheetTickets,
		KeyColumn: "ticket_id",
		Columns: append([]string{
			"created_at", "ticket_id", "ticket_key", "user_ids", "user_names", "user_issue", "category_issue",
		}, transitionColumns...),
	},
	SheetSubstitutions: {
		Name:      SheetSubstitutions,
		KeyColumn: "piket_id",
		Columns: []string{
			"created_at", "piket_id", "ticket_key", "requested_by", "teacher_requested", "teacher_replaces",
			"grade", "slot_name", "class_date", "class_time", "reason", "direct_lead", "stem_lead",
			"status", "approved_by", "approved_at", "rejected_by", "rejected_at", "reject_reason",
			"edited_at", "escalated_at",
		},
	},
	SheetEmergencies: {
		Name:      SheetEmergencies,
		KeyColumn: "alert_id",
		Columns: append([]string{
			"created_at", "alert_id", "ticket_key", "user_id", "user_name", "description",
		}, transitionColumns...),
	},
	SheetHelpdesk: {
		Name:      SheetHelpdesk,
		KeyColumn: "ticket_id",
		Columns: append([]string{
			"created_at", "ticket_id", "ticket_key", "user_id", "user_name", "description",
			"attachments", "chat_history",
		}, transitionColumns...),
	},
}

// LookupSheet returns the sheet definition by name.
func LookupSheet(name string) (Sheet, error) {
	s, ok := Sheets[name]
	if !ok {
		return Sheet{}, fmt.Errorf("%w: %s", ErrUnknownSheet, name)
	}
	return s, nil
}

// SheetNames returns the sheet names in a stable order.
func SheetNames() []string {
	names := make([]string, 0, len(Sheets))
	for name := range Sheets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasColumn reports whether col belongs to the sheet.
func (s Sheet) HasColumn(col string) bool {
	for _, c := range s.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// columnsOf validates row against the sheet and returns its columns sorted.
func (s Sheet) columnsOf(row Row) ([]string, error) {
	cols := make([]string, 0, len(row))
	for col := range row {
		if !s.HasColumn(col) {
			return nil, fmt.Errorf("%w: %s.%s", ErrUnknownColumn, s.Name, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols, nil
}

// CreateTableSQL renders DDL accepted by both Postgres and SQLite.
func (s Sheet) CreateTableSQL() []string {
	defs := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		defs[i] = fmt.Sprintf("%s TEXT NOT NULL DEFAULT ''", c)
	}
	return []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n    %s\n)", s.Name, strings.Join(defs, ",\n    ")),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)", s.Name, s.KeyColumn, s.Name, s.KeyColumn),
	}
}

type placeholder func(n int) string

func dollar(n int) string { return fmt.Sprintf("$%d", n) }

func question(int) string { return "?" }

func (s Sheet) insertSQL(row Row, ph placeholder) (string, []any, error) {
	cols, err := s.columnsOf(row)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("empty row for %s", s.Name)
	}
	marks := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		marks[i] = ph(i + 1)
		args[i] = row[c]
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.Name, strings.Join(cols, ", "), strings.Join(marks, ", "))
	return query, args, nil
}

func (s Sheet) updateSQL(key string, updates Row, ph placeholder) (string, []any, error) {
	cols, err := s.columnsOf(updates)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("no columns to update in %s", s.Name)
	}
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = fmt.Sprintf("%s = %s", c, ph(i+1))
		args = append(args, updates[c])
	}
	args = append(args, key)
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s", s.Name, strings.Join(sets, ", "), s.KeyColumn, ph(len(cols)+1))
	return query, args, nil
}

func (s Sheet) selectSQL(ph placeholder) string {
	return fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s LIMIT 1", strings.Join(s.Columns, ", "), s.Name, s.KeyColumn, ph(1))
}

func (s Sheet) scanRow(values []string) Row {
	row := make(Row, len(s.Columns))
	for i, c := range s.Columns {
		row[c] = values[i]
	}
	return row
}
