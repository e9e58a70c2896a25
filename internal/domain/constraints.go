package domain

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Field limits shared by the tool schemas and the service checks.
const (
	ListNameMaxLen    = 255
	TaskNameMinLen    = 5
	TaskNameMaxLen    = 120
	DescriptionMaxLen = 500
)

// ConstraintError reports a field that violates a length or range rule.
type ConstraintError struct {
	Field  string
	Reason string
}

func (e ConstraintError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func ValidateListFields(name, description string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	if n == 0 {
		return ConstraintError{Field: "name", Reason: "is required"}
	}
	if n > ListNameMaxLen {
		return ConstraintError{Field: "name", Reason: fmt.Sprintf("must be at most %d characters", ListNameMaxLen)}
	}
	return validateDescription(description)
}

func ValidateTaskFields(name, description string) error {
	n := utf8.RuneCountInString(name)
	if n < TaskNameMinLen || n > TaskNameMaxLen {
		return ConstraintError{Field: "name", Reason: fmt.Sprintf("must be between %d and %d characters (got %d)", TaskNameMinLen, TaskNameMaxLen, n)}
	}
	return validateDescription(description)
}

func validateDescription(description string) error {
	if utf8.RuneCountInString(description) > DescriptionMaxLen {
		return ConstraintError{Field: "description", Reason: fmt.Sprintf("must be at most %d characters", DescriptionMaxLen)}
	}
	return nil
}
