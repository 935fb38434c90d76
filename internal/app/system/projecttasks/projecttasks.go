// Package projecttasks runs task operations inside a project. Administrators
// and developers may change tasks; every member may read them.
package projecttasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/collabhub/internal/app/policy/projectpolicy"
	"github.com/dalemusser/collabhub/internal/app/store/audit"
	taskstore "github.com/dalemusser/collabhub/internal/app/store/tasks"
	"github.com/dalemusser/collabhub/internal/app/system/auditlog"
	"github.com/dalemusser/collabhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/collabhub/internal/app/system/membership"
	"github.com/dalemusser/collabhub/internal/app/system/metrics"
	"github.com/dalemusser/collabhub/internal/app/system/normalize"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	// ErrNameRequired is returned when a task name is blank.
	ErrNameRequired = errors.New("task name is required")
	// ErrUnknownStatus is returned for a status outside the lifecycle.
	ErrUnknownStatus = errors.New("unknown task status")
)

// editors may create, change and delete tasks.
var editors = []models.RoleName{models.RoleAdministrator, models.RoleDeveloper}

// ProjectLoader returns live project snapshots.
type ProjectLoader interface {
	Load(ctx context.Context, projectID primitive.ObjectID) (models.Project, error)
}

// TaskStore persists tasks.
type TaskStore interface {
	Create(ctx context.Context, t models.Task) (models.Task, error)
	GetByID(ctx context.Context, projectID, id primitive.ObjectID) (models.Task, error)
	ListByProject(ctx context.Context, projectID primitive.ObjectID, status models.TaskStatus) ([]models.Task, error)
	Apply(ctx context.Context, projectID, id primitive.ObjectID, u taskstore.Update) (models.Task, error)
	Delete(ctx context.Context, projectID, id primitive.ObjectID) error
}

// TaskRefs keeps the project's task id list in step.
type TaskRefs interface {
	AddTask(ctx context.Context, projectID, taskID primitive.ObjectID) error
	RemoveTask(ctx context.Context, projectID, taskID primitive.ObjectID) error
}

type Service struct {
	projects ProjectLoader
	tasks    TaskStore
	refs     TaskRefs
	audit    *auditlog.Logger
	log      *zap.Logger
}

func New(projects ProjectLoader, tasks TaskStore, refs TaskRefs, audit *auditlog.Logger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{projects: projects, tasks: tasks, refs: refs, audit: audit, log: log}
}

// CreateInput describes a new task.
type CreateInput struct {
	Name        string
	Description string
	AssigneeID  *primitive.ObjectID
}

// Patch lists task fields to change; nil fields are left alone.
type Patch struct {
	Name          *string
	Description   *string
	Status        *string
	AssigneeID    *primitive.ObjectID
	ClearAssignee bool
}

func (s *Service) editable(ctx context.Context, projectID, actorID primitive.ObjectID) (models.Project, error) {
	p, err := s.projects.Load(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if _, err := projectpolicy.RequireAnyRole(&p, actorID, editors...); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

func requireAssignable(p *models.Project, assignee *primitive.ObjectID) error {
	if assignee == nil {
		return nil
	}
	if _, err := projectpolicy.RequireMember(p, *assignee); err != nil {
		return projectpolicy.ErrMemberNotFound
	}
	return nil
}

func storeErr(what string, err error) error {
	if errors.Is(err, taskstore.ErrNotFound) {
		return projectpolicy.ErrTaskNotFound
	}
	return fmt.Errorf("%w: %s: %w", membership.ErrStorageFailure, what, err)
}

func (s *Service) record(op string, err error) error {
	switch {
	case err == nil:
		metrics.RecordOperation(op, metrics.OutcomeOK)
	case membership.IsDenied(err), errors.Is(err, ErrNameRequired), errors.Is(err, ErrUnknownStatus),
		errors.Is(err, projectpolicy.ErrTaskNotFound), errors.Is(err, projectpolicy.ErrInvalidTransition):
		metrics.RecordOperation(op, metrics.OutcomeDenied)
	default:
		metrics.RecordOperation(op, metrics.OutcomeFailure)
		s.log.Error("task operation failed", zap.String("operation", op), zap.Error(err))
	}
	return err
}

// Create adds a task in status todo.
func (s *Service) Create(ctx context.Context, projectID, actorID primitive.ObjectID, in CreateInput) (models.Task, error) {
	const op = "create_task"

	t, err := func() (models.Task, error) {
		p, err := s.editable(ctx, projectID, actorID)
		if err != nil {
			return models.Task{}, err
		}
		name := normalize.Name(in.Name)
		if name == "" {
			return models.Task{}, ErrNameRequired
		}
		if err := requireAssignable(&p, in.AssigneeID); err != nil {
			return models.Task{}, err
		}

		t, err := s.tasks.Create(ctx, models.Task{
			ProjectID:   projectID,
			Name:        name,
			Description: htmlsanitize.Description(in.Description),
			Status:      models.TaskTodo,
			AssigneeID:  in.AssigneeID,
			CreatedBy:   actorID,
		})
		if err != nil {
			return models.Task{}, storeErr("insert task", err)
		}
		if err := s.refs.AddTask(ctx, projectID, t.ID); err != nil {
			s.log.Warn("task created but project reference not recorded",
				zap.String("project_id", projectID.Hex()),
				zap.String("task_id", t.ID.Hex()),
				zap.Error(err))
		}
		return t, nil
	}()
	if err := s.record(op, err); err != nil {
		return models.Task{}, err
	}

	s.audit.TaskEvent(ctx, audit.EventTaskCreated, actorID, projectID, t.ID, map[string]string{"name": t.Name})
	return t, nil
}

// List returns the project's tasks to any member. An empty status lists all.
func (s *Service) List(ctx context.Context, projectID, actorID primitive.ObjectID, status string) ([]models.Task, error) {
	p, err := s.projects.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if _, err := projectpolicy.RequireMember(&p, actorID); err != nil {
		return nil, err
	}

	var st models.TaskStatus
	if status != "" {
		var ok bool
		if st, ok = models.ParseTaskStatus(status); !ok {
			return nil, ErrUnknownStatus
		}
	}
	tasks, err := s.tasks.ListByProject(ctx, projectID, st)
	if err != nil {
		return nil, storeErr("list tasks", err)
	}
	return tasks, nil
}

// Update applies patch. Status changes must follow the task lifecycle and a
// new assignee must be a member of the project.
func (s *Service) Update(ctx context.Context, projectID, taskID, actorID primitive.ObjectID, patch Patch) (models.Task, error) {
	const op = "update_task"

	var from models.TaskStatus
	t, err := func() (models.Task, error) {
		p, err := s.editable(ctx, projectID, actorID)
		if err != nil {
			return models.Task{}, err
		}
		cur, err := s.tasks.GetByID(ctx, projectID, taskID)
		if err != nil {
			return models.Task{}, storeErr("load task", err)
		}
		from = cur.Status

		var u taskstore.Update
		if patch.Name != nil {
			name := normalize.Name(*patch.Name)
			if name == "" {
				return models.Task{}, ErrNameRequired
			}
			u.Name = &name
		}
		if patch.Description != nil {
			d := htmlsanitize.Description(*patch.Description)
			u.Description = &d
		}
		if patch.Status != nil {
			to, ok := models.ParseTaskStatus(*patch.Status)
			if !ok {
				return models.Task{}, ErrUnknownStatus
			}
			if !cur.Status.CanTransition(to) {
				return models.Task{}, projectpolicy.ErrInvalidTransition
			}
			u.Status = &to
		}
		if patch.ClearAssignee {
			u.ClearAssignee = true
		} else if patch.AssigneeID != nil {
			if err := requireAssignable(&p, patch.AssigneeID); err != nil {
				return models.Task{}, err
			}
			u.AssigneeID = patch.AssigneeID
		}

		t, err := s.tasks.Apply(ctx, projectID, taskID, u)
		if err != nil {
			return models.Task{}, storeErr("update task", err)
		}
		return t, nil
	}()
	if err := s.record(op, err); err != nil {
		return models.Task{}, err
	}

	details := map[string]string{}
	if t.Status != from {
		details["from"] = string(from)
		details["to"] = string(t.Status)
	}
	s.audit.TaskEvent(ctx, audit.EventTaskUpdated, actorID, projectID, t.ID, details)
	return t, nil
}

// Delete removes a task.
func (s *Service) Delete(ctx context.Context, projectID, taskID, actorID primitive.ObjectID) error {
	const op = "delete_task"

	err := func() error {
		if _, err := s.editable(ctx, projectID, actorID); err != nil {
			return err
		}
		if err := s.tasks.Delete(ctx, projectID, taskID); err != nil {
			return storeErr("delete task", err)
		}
		if err := s.refs.RemoveTask(ctx, projectID, taskID); err != nil {
			s.log.Warn("task deleted but project reference kept",
				zap.String("project_id", projectID.Hex()),
				zap.String("task_id", taskID.Hex()),
				zap.Error(err))
		}
		return nil
	}()
	if err := s.record(op, err); err != nil {
		return err
	}

	s.audit.TaskEvent(ctx, audit.EventTaskDeleted, actorID, projectID, taskID, nil)
	return nil
}
