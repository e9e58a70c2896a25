package domain

import "time"

type List struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	CreatedAt   time.Time  `json:"created_at" format:"date-time"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty" format:"date-time"`
}

// Active reports whether the list has not been archived.
func (l List) Active() bool {
	return l.ArchivedAt == nil
}

type Task struct {
	ID          int64      `json:"id"`
	ListID      int64      `json:"list_id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Priority    Priority   `json:"priority" enum:"low,medium,high,urgent"`
	CreatedAt   time.Time  `json:"created_at" format:"date-time"`
	CompletedAt *time.Time `json:"completed_at,omitempty" format:"date-time"`
	ArchivedAt  *time.Time `json:"archived_at,omitempty" format:"date-time"`
}

func (t Task) Completed() bool { return t.CompletedAt != nil }
func (t Task) Archived() bool  { return t.ArchivedAt != nil }

// Open reports whether the task is neither completed nor archived.
func (t Task) Open() bool {
	return !t.Completed() && !t.Archived()
}

// TaskCounts is the per-list task breakdown. Completed and Archived are
// counted independently, so a task that is both appears in each.
type TaskCounts struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Archived  int `json:"archived"`
}

// Add folds one task into the breakdown.
func (c *TaskCounts) Add(t Task) {
	c.Total++
	if t.Completed() {
		c.Completed++
	}
	if t.Archived() {
		c.Archived++
	}
	if t.Open() {
		c.Active++
	}
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
