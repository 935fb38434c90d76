package membership

import (
	"context"
	"errors"

	"github.com/dalemusser/collabhub/internal/app/policy/projectpolicy"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// LeaveResult is the outcome of LeaveProject. Exactly one of Left and
// LastAdminChoice is set.
type LeaveResult struct {
	Left bool `json:"left,omitempty"`
	// LastAdminChoice means the caller is the only administrator. They must
	// promote one of Candidates first, or delete the project.
	LastAdminChoice bool            `json:"last_admin_choice,omitempty"`
	Candidates      []models.Member `json:"candidates,omitempty"`
}

// AssignRole gives targetID the role named roleName. Assigning the role a
// member already holds succeeds without a write.
func (s *Service) AssignRole(ctx context.Context, projectID, targetID, actorID primitive.ObjectID, roleName string) (models.Project, error) {
	const op = "assign_role"

	var (
		out  models.Project
		from models.RoleName
		to   models.RoleName
	)
	err := s.withRetry(ctx, op, projectID, func(p models.Project) error {
		if err := projectpolicy.RequireAdministrator(&p, actorID); err != nil {
			return err
		}
		role, ok := models.ParseRole(roleName)
		if !ok {
			return projectpolicy.ErrRoleNotFound
		}
		target, err := projectpolicy.RequireMember(&p, targetID)
		if err != nil {
			return projectpolicy.ErrMemberNotFound
		}

		change := projectpolicy.RoleChange(targetID, role)
		if err := projectpolicy.RequireAdminCountAfterChange(&p, change); err != nil {
			return err
		}

		from, to = target.Role, role
		if target.Role == role {
			out = p
			return nil
		}

		members := projectpolicy.ApplyChange(p.Members, change)
		v, err := s.projects.UpdateMembers(ctx, p.ID, p.Version, members)
		if err != nil {
			return storageErr("update members", err)
		}
		p.Members = members
		p.Version = v
		out = p
		return nil
	})
	if err := s.finish(ctx, op, actorID, projectID, &targetID, err); err != nil {
		return models.Project{}, err
	}

	if from != to {
		s.audit.RoleAssigned(ctx, actorID, targetID, projectID, string(from), string(to))
	}
	return out, nil
}

// RemoveMember drops targetID from the project on behalf of administrator
// actorID. The owner can never be removed.
func (s *Service) RemoveMember(ctx context.Context, projectID, actorID, targetID primitive.ObjectID) error {
	const op = "remove_member"

	err := s.withRetry(ctx, op, projectID, func(p models.Project) error {
		if err := projectpolicy.RequireAdministrator(&p, actorID); err != nil {
			return err
		}
		if _, err := projectpolicy.RequireMember(&p, targetID); err != nil {
			if uerr := s.unlink(ctx, p.ID, targetID); uerr != nil {
				return uerr
			}
			return projectpolicy.ErrMemberNotFound
		}
		if err := projectpolicy.RequireNotOwner(&p, targetID); err != nil {
			return err
		}
		change := projectpolicy.Removal(targetID)
		if err := projectpolicy.RequireAdminCountAfterChange(&p, change); err != nil {
			return err
		}
		return s.commitDeparture(ctx, p, change)
	})
	if err := s.finish(ctx, op, actorID, projectID, &targetID, err); err != nil {
		return err
	}

	s.audit.MemberRemoved(ctx, actorID, targetID, projectID)
	return nil
}

// LeaveProject removes actorID from the project. The owner cannot leave.
// When actorID is the last administrator nothing is written and the result
// carries the members they could promote instead.
func (s *Service) LeaveProject(ctx context.Context, projectID, actorID primitive.ObjectID) (LeaveResult, error) {
	const op = "leave_project"

	var res LeaveResult
	err := s.withRetry(ctx, op, projectID, func(p models.Project) error {
		res = LeaveResult{}
		if _, err := projectpolicy.RequireMember(&p, actorID); err != nil {
			if uerr := s.unlink(ctx, p.ID, actorID); uerr != nil {
				return uerr
			}
			return err
		}
		if err := projectpolicy.RequireNotOwner(&p, actorID); err != nil {
			return err
		}

		change := projectpolicy.Removal(actorID)
		err := projectpolicy.RequireAdminCountAfterChange(&p, change)
		if errors.Is(err, projectpolicy.ErrLastAdministrator) {
			res.LastAdminChoice = true
			res.Candidates = projectpolicy.ApplyChange(p.Members, change)
			return nil
		}
		if err != nil {
			return err
		}

		if err := s.commitDeparture(ctx, p, change); err != nil {
			return err
		}
		res.Left = true
		return nil
	})
	if err := s.finish(ctx, op, actorID, projectID, nil, err); err != nil {
		return LeaveResult{}, err
	}

	if res.Left {
		s.audit.MemberLeft(ctx, actorID, projectID)
	} else {
		s.log.Info("last administrator asked to choose a successor",
			zap.String("project_id", projectID.Hex()),
			zap.String("user_id", actorID.Hex()),
			zap.Int("candidates", len(res.Candidates)))
	}
	return res, nil
}

// commitDeparture writes the member list without change.UserID, unlinks the
// project from that user and clears their task assignments.
func (s *Service) commitDeparture(ctx context.Context, p models.Project, change projectpolicy.Change) error {
	members := projectpolicy.ApplyChange(p.Members, change)
	return s.tx.Run(ctx, func(ctx context.Context) error {
		if _, err := s.projects.UpdateMembers(ctx, p.ID, p.Version, members); err != nil {
			return storageErr("update members", err)
		}
		return s.unlink(ctx, p.ID, change.UserID)
	})
}

// unlink drops the user's back-reference and task assignments. Both writes
// are idempotent, so callers also run it for users already gone from the
// member list to finish a departure that stopped after its first write.
func (s *Service) unlink(ctx context.Context, projectID, userID primitive.ObjectID) error {
	if err := s.users.RemoveProject(ctx, userID, projectID); err != nil {
		return storageErr("unlink user", err)
	}
	if err := s.tasks.UnassignUser(ctx, projectID, userID); err != nil {
		return storageErr("clear assignments", err)
	}
	return nil
}
