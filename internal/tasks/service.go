// Package tasks implements the list and task operations exposed as tools.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"taskline/internal/domain"
	"taskline/internal/reltime"
	"taskline/internal/repo"
)

// Store is the persistence the service needs. repo.Repo satisfies it.
type Store interface {
	ListLists(ctx context.Context) ([]domain.List, error)
	TaskCounts(ctx context.Context) (map[int64]domain.TaskCounts, error)
	InsertList(ctx context.Context, l domain.List) (domain.List, error)
	ListTasks(ctx context.Context, listID int64, includeClosed bool) ([]domain.Task, error)
	InsertTask(ctx context.Context, t domain.Task) (domain.Task, error)
	CompleteTask(ctx context.Context, id int64, at time.Time) (domain.Task, error)
	ArchiveTask(ctx context.Context, id int64, at time.Time) (domain.Task, error)
}

type Service struct {
	Store           Store
	Now             func() time.Time
	DefaultPriority domain.Priority
}

func NewService(store Store) *Service {
	return &Service{Store: store, Now: time.Now, DefaultPriority: domain.DefaultPriority}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type ListSummary struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Created     string            `json:"created" doc:"Creation time relative to now"`
	Archived    bool              `json:"archived"`
	TaskCounts  domain.TaskCounts `json:"task_counts"`
}

type ListListsResult struct {
	Lists []ListSummary `json:"lists"`
	Count int           `json:"count"`
}

// ListLists returns every list, archived or not, with its task breakdown.
func (s *Service) ListLists(ctx context.Context) (ListListsResult, error) {
	lists, err := s.Store.ListLists(ctx)
	if err != nil {
		return ListListsResult{}, err
	}
	counts, err := s.Store.TaskCounts(ctx)
	if err != nil {
		return ListListsResult{}, err
	}
	now := s.now()
	out := ListListsResult{Lists: make([]ListSummary, 0, len(lists)), Count: len(lists)}
	for _, l := range lists {
		out.Lists = append(out.Lists, summarize(l, counts[l.ID], now))
	}
	return out, nil
}

func summarize(l domain.List, c domain.TaskCounts, now time.Time) ListSummary {
	return ListSummary{
		ID:          l.ID,
		Name:        l.Name,
		Description: l.Description,
		CreatedAt:   l.CreatedAt,
		Created:     reltime.Since(l.CreatedAt, now),
		Archived:    !l.Active(),
		TaskCounts:  c,
	}
}

type CreateListResult struct {
	Message string      `json:"message"`
	List    ListSummary `json:"list"`
}

func (s *Service) CreateList(ctx context.Context, name, description string) (CreateListResult, error) {
	name = strings.TrimSpace(name)
	if err := domain.ValidateListFields(name, description); err != nil {
		return CreateListResult{}, err
	}
	now := s.now()
	l, err := s.Store.InsertList(ctx, domain.List{Name: name, Description: description, CreatedAt: now})
	if err != nil {
		return CreateListResult{}, err
	}
	return CreateListResult{
		Message: fmt.Sprintf("Created list '%s' with ID %d", l.Name, l.ID),
		List:    summarize(l, domain.TaskCounts{}, now),
	}, nil
}

// resolveList matches name against every list ignoring case. The oldest
// list wins when several match.
func (s *Service) resolveList(ctx context.Context, name string) (domain.List, error) {
	lists, err := s.Store.ListLists(ctx)
	if err != nil {
		return domain.List{}, err
	}
	want := strings.TrimSpace(name)
	names := make([]string, 0, len(lists))
	for _, l := range lists {
		if strings.EqualFold(l.Name, want) {
			return l, nil
		}
		names = append(names, l.Name)
	}
	return domain.List{}, ListNotFoundError{Name: name, Available: names}
}

type TaskView struct {
	ID          int64           `json:"id"`
	ListID      int64           `json:"list_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Priority    domain.Priority `json:"priority" enum:"low,medium,high,urgent"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at"`
	ArchivedAt  *time.Time      `json:"archived_at"`
	Created     string          `json:"created" doc:"Creation time relative to now"`
	Completed   *string         `json:"completed" doc:"Completion time relative to now, null when open"`
	Archived    *string         `json:"archived" doc:"Archive time relative to now, null when not archived"`
}

func viewTask(t domain.Task, now time.Time) TaskView {
	return TaskView{
		ID:          t.ID,
		ListID:      t.ListID,
		Name:        t.Name,
		Description: t.Description,
		Priority:    t.Priority,
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
		ArchivedAt:  t.ArchivedAt,
		Created:     reltime.Since(t.CreatedAt, now),
		Completed:   reltime.SincePtr(t.CompletedAt, now),
		Archived:    reltime.SincePtr(t.ArchivedAt, now),
	}
}

type GetTasksResult struct {
	List             string     `json:"list"`
	ListID           int64      `json:"list_id"`
	IncludeCompleted bool       `json:"include_completed"`
	Count            int        `json:"count"`
	Tasks            []TaskView `json:"tasks"`
}

// GetTasks returns the tasks of the named list ordered by priority, then
// creation time. Completed and archived tasks are only included on request.
func (s *Service) GetTasks(ctx context.Context, listName string, includeCompleted bool) (GetTasksResult, error) {
	l, err := s.resolveList(ctx, listName)
	if err != nil {
		return GetTasksResult{}, err
	}
	items, err := s.Store.ListTasks(ctx, l.ID, includeCompleted)
	if err != nil {
		return GetTasksResult{}, err
	}
	SortByPriority(items)
	now := s.now()
	out := GetTasksResult{
		List:             l.Name,
		ListID:           l.ID,
		IncludeCompleted: includeCompleted,
		Count:            len(items),
		Tasks:            make([]TaskView, 0, len(items)),
	}
	for _, t := range items {
		out.Tasks = append(out.Tasks, viewTask(t, now))
	}
	return out, nil
}

// SortByPriority orders tasks urgent first, then oldest first, then by id.
func SortByPriority(items []domain.Task) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra < rb
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

type TaskCreateOptions struct {
	ListName    string
	Name        string
	Description string
	Priority    string
}

type TaskResult struct {
	Message string   `json:"message"`
	Task    TaskView `json:"task"`
}

func (s *Service) CreateTask(ctx context.Context, opts TaskCreateOptions) (TaskResult, error) {
	if err := domain.ValidateTaskFields(opts.Name, opts.Description); err != nil {
		return TaskResult{}, err
	}
	priority := s.DefaultPriority
	if opts.Priority != "" {
		p := domain.Priority(opts.Priority)
		if !p.Valid() {
			return TaskResult{}, domain.ConstraintError{Field: "priority", Reason: fmt.Sprintf("must be one of urgent, high, medium, low, got %q", opts.Priority)}
		}
		priority = p
	}
	if !priority.Valid() {
		priority = domain.DefaultPriority
	}
	l, err := s.resolveList(ctx, opts.ListName)
	if err != nil {
		return TaskResult{}, err
	}
	now := s.now()
	t, err := s.Store.InsertTask(ctx, domain.Task{
		ListID:      l.ID,
		Name:        opts.Name,
		Description: opts.Description,
		Priority:    priority,
		CreatedAt:   now,
	})
	if err != nil {
		return TaskResult{}, err
	}
	return TaskResult{
		Message: fmt.Sprintf("Created task '%s' (ID %d) in list '%s' with priority %s %s", t.Name, t.ID, l.Name, t.Priority.Glyph(), t.Priority),
		Task:    viewTask(t, now),
	}, nil
}

func (s *Service) CompleteTask(ctx context.Context, id int64) (TaskResult, error) {
	now := s.now()
	t, err := s.Store.CompleteTask(ctx, id, now)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return TaskResult{}, TaskNotFoundError{ID: id}
	case errors.Is(err, repo.ErrAlreadySet):
		var at time.Time
		if t.CompletedAt != nil {
			at = *t.CompletedAt
		}
		return TaskResult{}, AlreadyCompletedError{ID: id, Name: t.Name, CompletedAt: at}
	case err != nil:
		return TaskResult{}, err
	}
	return TaskResult{
		Message: fmt.Sprintf("Completed task '%s' (ID %d)", t.Name, t.ID),
		Task:    viewTask(t, now),
	}, nil
}

func (s *Service) ArchiveTask(ctx context.Context, id int64) (TaskResult, error) {
	now := s.now()
	t, err := s.Store.ArchiveTask(ctx, id, now)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		return TaskResult{}, TaskNotFoundError{ID: id}
	case errors.Is(err, repo.ErrAlreadySet):
		var at time.Time
		if t.ArchivedAt != nil {
			at = *t.ArchivedAt
		}
		return TaskResult{}, AlreadyArchivedError{ID: id, Name: t.Name, ArchivedAt: at}
	case err != nil:
		return TaskResult{}, err
	}
	return TaskResult{
		Message: fmt.Sprintf("Archived task '%s' (ID %d)", t.Name, t.ID),
		Task:    viewTask(t, now),
	}, nil
}
