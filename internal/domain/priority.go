package domain

import (
	"fmt"
	"strings"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// DefaultPriority applies when a task is created without one.
const DefaultPriority = PriorityMedium

// Priorities lists every priority from most to least pressing.
var Priorities = []Priority{PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow}

// Rank is the sort key: lower ranks sort first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return len(Priorities)
	}
}

func (p Priority) Valid() bool {
	return p.Rank() < len(Priorities)
}

// Glyph is the indicator shown next to a priority in user-facing messages.
func (p Priority) Glyph() string {
	switch p {
	case PriorityUrgent:
		return "🔴"
	case PriorityHigh:
		return "🟠"
	case PriorityMedium:
		return "🟡"
	case PriorityLow:
		return "🟢"
	default:
		return "⚪"
	}
}

// ParsePriority reads a priority from configuration. It accepts any casing
// and surrounding space; empty input yields DefaultPriority. Tool parameters
// are matched exactly instead.
func ParsePriority(s string) (Priority, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultPriority, nil
	}
	p := Priority(strings.ToLower(s))
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q: must be one of urgent, high, medium, low", s)
	}
	return p, nil
}
