package correlation

// ContinuedMarker is appended to descriptions cut for compact display.
const ContinuedMarker = "...(continued in thread)"

// DefaultDisplayBudget is the number of characters of a description shown
// inline on ticket cards.
const DefaultDisplayBudget = 37

// Truncate shortens s to budget runes and appends ContinuedMarker when
// anything was cut.
func Truncate(s string, budget int) string {
	if !NeedsFollowUp(s, budget) {
		return s
	}
	runes := []rune(s)
	return string(runes[:budget]) + ContinuedMarker
}

// NeedsFollowUp reports whether s is too long for inline display, in which
// case the full text is posted as a separate thread message.
func NeedsFollowUp(s string, budget int) bool {
	if budget <= 0 {
		return false
	}
	return len([]rune(s)) > budget
}
