package membership

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/collabhub/internal/app/policy/projectpolicy"
	projectstore "github.com/dalemusser/collabhub/internal/app/store/projects"
	"github.com/dalemusser/collabhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/collabhub/internal/app/system/metrics"
	"github.com/dalemusser/collabhub/internal/app/system/normalize"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// CreateProject inserts a project owned by ownerID, who becomes its sole
// administrator, and links it from the owner's project list.
func (s *Service) CreateProject(ctx context.Context, ownerID primitive.ObjectID, name, description string) (models.Project, error) {
	const op = "create_project"

	name = normalize.Name(name)
	if name == "" {
		return models.Project{}, s.finish(ctx, op, ownerID, primitive.NilObjectID, nil, ErrNameRequired)
	}

	now := s.now()
	p := models.Project{
		ID:          primitive.NewObjectID(),
		Name:        name,
		Description: htmlsanitize.Description(description),
		OwnerID:     ownerID,
		Members: []models.Member{
			{UserID: ownerID, Role: models.RoleAdministrator, JoinedAt: now},
		},
		TaskIDs:  []primitive.ObjectID{},
		Settings: models.ProjectSettings{LinkJoinEnabled: true},
	}

	var created models.Project
	err := s.tx.Run(ctx, func(ctx context.Context) error {
		var err error
		created, err = s.projects.Create(ctx, p)
		if err != nil {
			return storageErr("insert project", err)
		}
		if err := s.users.AddProject(ctx, ownerID, created.ID); err != nil {
			return storageErr("link owner", err)
		}
		return nil
	})
	if err := s.finish(ctx, op, ownerID, p.ID, nil, err); err != nil {
		return models.Project{}, err
	}

	s.audit.ProjectCreated(ctx, ownerID, created.ID, created.Name)
	return created, nil
}

// SettingsPatch holds the settings to change; nil fields keep their value.
type SettingsPatch struct {
	LinkJoinEnabled  *bool
	PDFExportEnabled *bool
}

// UpdateSettings applies patch. Turning link-joining off revokes every
// invite token of the project in the same write group.
func (s *Service) UpdateSettings(ctx context.Context, projectID, actorID primitive.ObjectID, patch SettingsPatch) (models.Project, error) {
	const op = "update_settings"

	var out models.Project
	err := s.withRetry(ctx, op, projectID, func(p models.Project) error {
		if err := projectpolicy.RequireAdministrator(&p, actorID); err != nil {
			return err
		}

		next := p.Settings
		if patch.LinkJoinEnabled != nil {
			next.LinkJoinEnabled = *patch.LinkJoinEnabled
		}
		if patch.PDFExportEnabled != nil {
			next.PDFExportEnabled = *patch.PDFExportEnabled
		}
		if next == p.Settings {
			out = p
			return nil
		}

		return s.tx.Run(ctx, func(ctx context.Context) error {
			v, err := s.projects.UpdateSettings(ctx, p.ID, p.Version, next)
			if err != nil {
				return storageErr("update settings", err)
			}
			if !next.LinkJoinEnabled {
				if _, err := s.invites.DeleteByProject(ctx, p.ID); err != nil {
					return storageErr("revoke invites", err)
				}
			}
			p.Settings = next
			p.Version = v
			out = p
			return nil
		})
	})
	if err := s.finish(ctx, op, actorID, projectID, nil, err); err != nil {
		return models.Project{}, err
	}

	s.audit.SettingsUpdated(ctx, actorID, projectID, out.Settings.LinkJoinEnabled, out.Settings.PDFExportEnabled)
	return out, nil
}

// DeleteProject removes the project and everything hanging off it.
//
// The project is first marked as deleting, which hides it from every other
// operation; the remaining steps are idempotent so a repeated call, or the
// background sweeper, finishes a cascade that was interrupted.
func (s *Service) DeleteProject(ctx context.Context, projectID, actorID primitive.ObjectID) error {
	const op = "delete_project"

	err := s.markDeleting(ctx, op, projectID, actorID)
	if err == nil {
		err = s.cascade(ctx, projectID, &actorID)
	}
	return s.finish(ctx, op, actorID, projectID, nil, err)
}

func (s *Service) markDeleting(ctx context.Context, op string, projectID, actorID primitive.ObjectID) error {
	for i := 1; i <= s.cfg.MaxAttempts; i++ {
		p, err := s.read(ctx, projectID)
		if err != nil {
			return err
		}
		if err := projectpolicy.RequireAdministrator(&p, actorID); err != nil {
			return err
		}
		if p.DeletingAt != nil {
			return nil
		}

		_, err = s.projects.MarkDeleting(ctx, p.ID, p.Version, s.now())
		if !errors.Is(err, projectstore.ErrVersionConflict) {
			return storageErr("mark deleting", err)
		}
		metrics.RecordConflict(op)
	}
	return ErrConcurrentUpdate
}

// cascade runs the idempotent tail of a project delete. A nil actor means
// the sweeper is finishing it.
func (s *Service) cascade(ctx context.Context, projectID primitive.ObjectID, actorID *primitive.ObjectID) error {
	tasks, err := s.tasks.DeleteByProject(ctx, projectID)
	if err != nil {
		return storageErr("delete tasks", err)
	}
	if _, err := s.invites.DeleteByProject(ctx, projectID); err != nil {
		return storageErr("delete invites", err)
	}
	users, err := s.users.RemoveProjectFromAll(ctx, projectID)
	if err != nil {
		return storageErr("unlink users", err)
	}
	if err := s.projects.Delete(ctx, projectID); err != nil {
		return storageErr("delete project", err)
	}

	s.log.Info("project deleted",
		zap.String("project_id", projectID.Hex()),
		zap.Int64("tasks", tasks),
		zap.Int64("users", users))
	s.audit.ProjectDeleted(ctx, actorID, projectID, tasks, users)
	return nil
}

// ResumeDeletion finishes the cascade of a project already marked as
// deleting. Projects that are not being deleted are left alone.
func (s *Service) ResumeDeletion(ctx context.Context, projectID primitive.ObjectID) error {
	p, err := s.read(ctx, projectID)
	if errors.Is(err, projectpolicy.ErrProjectNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.DeletingAt == nil {
		return nil
	}
	return s.cascade(ctx, projectID, nil)
}

// SweepStalled resumes cascades that started more than stalledAfter ago.
// It returns how many projects were finished; failures are logged and
// joined into the returned error while the sweep continues.
func (s *Service) SweepStalled(ctx context.Context, stalledAfter time.Duration) (int, error) {
	stalled, err := s.projects.ListDeleting(ctx, s.now().Add(-stalledAfter), DefaultSweepBatch)
	if err != nil {
		return 0, storageErr("list deleting projects", err)
	}

	var errs []error
	done := 0
	for _, p := range stalled {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.cascade(ctx, p.ID, nil); err != nil {
			s.log.Warn("resume deletion failed",
				zap.String("project_id", p.ID.Hex()), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}
