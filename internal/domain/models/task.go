package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TaskStatus is a step in the task lifecycle.
type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// taskTransitions lists the statuses reachable from each status.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskTodo:       {TaskInProgress},
	TaskInProgress: {TaskTodo, TaskDone},
	TaskDone:       {TaskInProgress},
}

// ParseTaskStatus resolves a status string.
func ParseTaskStatus(s string) (TaskStatus, bool) {
	st := TaskStatus(s)
	_, ok := taskTransitions[st]
	return st, ok
}

// CanTransition reports whether a task may move from one status to another.
// Staying in the same status is always allowed.
func (from TaskStatus) CanTransition(to TaskStatus) bool {
	if from == to {
		return true
	}
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Task is a unit of work inside a project.
type Task struct {
	ID          primitive.ObjectID  `bson:"_id" json:"id"`
	ProjectID   primitive.ObjectID  `bson:"project_id" json:"project_id"`
	Name        string              `bson:"name" json:"name"`
	NameCI      string              `bson:"name_ci" json:"-"`
	Description string              `bson:"description" json:"description"`
	Status      TaskStatus          `bson:"status" json:"status"`
	AssigneeID  *primitive.ObjectID `bson:"assignee_id,omitempty" json:"assignee_id,omitempty"`
	CreatedBy   primitive.ObjectID  `bson:"created_by" json:"created_by"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
