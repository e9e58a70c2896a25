package tasks

import (
	"fmt"
	"strings"
	"time"
)

type ListNotFoundError struct {
	Name      string
	Available []string
}

func (e ListNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("list %q not found; no lists exist yet", e.Name)
	}
	return fmt.Sprintf("list %q not found; available lists: %s", e.Name, strings.Join(e.Available, ", "))
}

type TaskNotFoundError struct {
	ID int64
}

func (e TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %d not found", e.ID)
}

type AlreadyCompletedError struct {
	ID          int64
	Name        string
	CompletedAt time.Time
}

func (e AlreadyCompletedError) Error() string {
	return fmt.Sprintf("task %d (%s) is already completed (since %s)", e.ID, e.Name, e.CompletedAt.UTC().Format(time.RFC3339))
}

type AlreadyArchivedError struct {
	ID         int64
	Name       string
	ArchivedAt time.Time
}

func (e AlreadyArchivedError) Error() string {
	return fmt.Sprintf("task %d (%s) is already archived (since %s)", e.ID, e.Name, e.ArchivedAt.UTC().Format(time.RFC3339))
}
