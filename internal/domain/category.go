package domain

import "strings"

// Category is the intake channel a ticket came from. It selects the
// transition graph the ticket follows.
type Category string

const (
	CategoryGeneral      Category = "general"
	CategorySubstitution Category = "substitution"
	CategoryHelpdesk     Category = "helpdesk"
	CategoryEmergency    Category = "emergency"
)

// OthersIssueCategory is the issue category that asks for free text.
const OthersIssueCategory = "Others"

var categoryPrefixes = map[Category]string{
	CategoryGeneral:      "LIVEOPS",
	CategorySubstitution: "PIKET",
	CategoryHelpdesk:     "HELP",
	CategoryEmergency:    "SOS",
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryPrefixes[c]
	return ok
}

// IDPrefix returns the ticket number prefix for the category.
func (c Category) IDPrefix() string {
	if p, ok := categoryPrefixes[c]; ok {
		return p
	}
	return "TCK"
}

// Categorizable reports whether responders pick an issue category.
func (c Category) Categorizable() bool {
	return c == CategoryGeneral
}

// Editable reports whether responders may revise the ticket fields.
func (c Category) Editable() bool {
	return c == CategorySubstitution
}

// IsOthers reports whether name selects the free-text issue category.
func IsOthers(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), OthersIssueCategory)
}
