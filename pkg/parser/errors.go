package parser

import "fmt"

// StructureError reports a page whose layout does not follow the
// division/player-row conventions
type StructureError struct {
	Reason string
	Text   string
}

func (e *StructureError) Error() string {
	if e.Text != "" {
		return fmt.Sprintf("unexpected page structure: %s: %q", e.Reason, e.Text)
	}
	return "unexpected page structure: " + e.Reason
}

// InvariantError reports extracted data that breaks a structural guarantee,
// such as a fixture read from both sides
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Reason
}
