package tasks

import (
	"context"

	"taskline/internal/registry"
	"taskline/internal/schema"
)

// Tool names.
const (
	ToolListLists    = "list_lists"
	ToolCreateList   = "create_list"
	ToolGetTasks     = "get_tasks"
	ToolCreateTask   = "create_task"
	ToolCompleteTask = "complete_task"
	ToolArchiveTask  = "archive_task"
)

type ListListsInput struct{}

type CreateListInput struct {
	Name        string `json:"name" minLength:"1" maxLength:"255" doc:"Name of the new list"`
	Description string `json:"description,omitempty" maxLength:"500" doc:"Optional description"`
}

type GetTasksInput struct {
	ListName         string `json:"list_name" minLength:"1" doc:"List name, matched ignoring case"`
	IncludeCompleted bool   `json:"include_completed,omitempty" doc:"Include completed and archived tasks"`
}

type CreateTaskInput struct {
	ListName    string `json:"list_name" minLength:"1" doc:"List name, matched ignoring case"`
	Name        string `json:"name" minLength:"5" maxLength:"120" doc:"Task name"`
	Description string `json:"description,omitempty" maxLength:"500" doc:"Optional description"`
	Priority    string `json:"priority,omitempty" enum:"low,medium,high,urgent" doc:"Defaults to medium"`
}

type TaskIDInput struct {
	TaskID int64 `json:"task_id" minimum:"1" doc:"Numeric task id"`
}

// Register adds every task tool to reg in a fixed order.
func Register(reg *registry.Registry, svc *Service) error {
	tools := []registry.Descriptor{
		{
			Name:        ToolListLists,
			Description: "List all task lists with their task counts.",
			Input:       schema.Of[ListListsInput](),
			Output:      schema.Of[ListListsResult](),
			Handler: registry.Bind(func(ctx context.Context, _ registry.Call, _ ListListsInput) (any, error) {
				return svc.ListLists(ctx)
			}),
		},
		{
			Name:        ToolCreateList,
			Description: "Create a new task list.",
			Input:       schema.Of[CreateListInput](),
			Output:      schema.Of[CreateListResult](),
			Handler: registry.Bind(func(ctx context.Context, _ registry.Call, in CreateListInput) (any, error) {
				return svc.CreateList(ctx, in.Name, in.Description)
			}),
		},
		{
			Name:        ToolGetTasks,
			Description: "Get the tasks of a list, most urgent first. Completed and archived tasks are hidden unless include_completed is true.",
			Input:       schema.Of[GetTasksInput](),
			Output:      schema.Of[GetTasksResult](),
			Handler: registry.Bind(func(ctx context.Context, _ registry.Call, in GetTasksInput) (any, error) {
				return svc.GetTasks(ctx, in.ListName, in.IncludeCompleted)
			}),
		},
		{
			Name:        ToolCreateTask,
			Description: "Create a task in a list. Priority is one of urgent, high, medium (default) or low.",
			Input:       schema.Of[CreateTaskInput](),
			Output:      schema.Of[TaskResult](),
			Handler: registry.Bind(func(ctx context.Context, _ registry.Call, in CreateTaskInput) (any, error) {
				return svc.CreateTask(ctx, TaskCreateOptions{
					ListName:    in.ListName,
					Name:        in.Name,
					Description: in.Description,
					Priority:    in.Priority,
				})
			}),
		},
		{
			Name:        ToolCompleteTask,
			Description: "Mark a task as completed.",
			Input:       schema.Of[TaskIDInput](),
			Output:      schema.Of[TaskResult](),
			Handler: registry.Bind(func(ctx context.Context, _ registry.Call, in TaskIDInput) (any, error) {
				return svc.CompleteTask(ctx, in.TaskID)
			}),
		},
		{
			Name:        ToolArchiveTask,
			Description: "Archive a task so it no longer shows up by default.",
			Input:       schema.Of[TaskIDInput](),
			Output:      schema.Of[TaskResult](),
			Handler: registry.Bind(func(ctx context.Context, _ registry.Call, in TaskIDInput) (any, error) {
				return svc.ArchiveTask(ctx, in.TaskID)
			}),
		},
	}
	for _, d := range tools {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}
