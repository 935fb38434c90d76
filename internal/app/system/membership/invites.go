package membership

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/collabhub/internal/app/policy/projectpolicy"
	invitestore "github.com/dalemusser/collabhub/internal/app/store/invites"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// issueAttempts bounds how often IssueInvite re-reads after losing the
// insert race for a project's single token.
const issueAttempts = 3

// IssueInvite returns the project's live invite token, minting one when
// there is none or the existing one has expired.
func (s *Service) IssueInvite(ctx context.Context, projectID, actorID primitive.ObjectID) (string, error) {
	const op = "issue_invite"

	token, reused, err := s.issue(ctx, projectID, actorID)
	if err := s.finish(ctx, op, actorID, projectID, nil, err); err != nil {
		return "", err
	}
	s.audit.InviteIssued(ctx, actorID, projectID, reused)
	return token, nil
}

func (s *Service) issue(ctx context.Context, projectID, actorID primitive.ObjectID) (string, bool, error) {
	p, err := s.Load(ctx, projectID)
	if err != nil {
		return "", false, err
	}
	if err := projectpolicy.RequireAdministrator(&p, actorID); err != nil {
		return "", false, err
	}
	if !p.Settings.LinkJoinEnabled {
		return "", false, projectpolicy.ErrInviteLinksDisabled
	}

	for i := 0; i < issueAttempts; i++ {
		now := s.now()
		inv, err := s.invites.GetByProject(ctx, projectID)
		switch {
		case err == nil && !inv.IsExpired(now):
			return inv.Token, true, nil
		case err == nil:
			if err := s.invites.DeleteExpiredForProject(ctx, projectID, now); err != nil {
				return "", false, storageErr("drop expired invite", err)
			}
		case !errors.Is(err, invitestore.ErrNotFound):
			return "", false, storageErr("read invite", err)
		}

		var expiresAt *time.Time
		if s.cfg.InviteTTL > 0 {
			t := now.Add(s.cfg.InviteTTL)
			expiresAt = &t
		}
		inv, err = s.invites.Create(ctx, projectID, actorID, expiresAt)
		if err == nil {
			if err := s.dropIfDeleted(ctx, projectID); err != nil {
				return "", false, err
			}
			return inv.Token, false, nil
		}
		if !errors.Is(err, invitestore.ErrDuplicate) {
			return "", false, storageErr("insert invite", err)
		}
		// Another request minted the token first; read theirs.
	}
	return "", false, ErrConcurrentUpdate
}

// dropIfDeleted re-reads the project after a token was minted. A delete
// whose cascade ran between the liveness check and the insert would
// otherwise leave the token behind.
func (s *Service) dropIfDeleted(ctx context.Context, projectID primitive.ObjectID) error {
	p, err := s.read(ctx, projectID)
	if err != nil && !errors.Is(err, projectpolicy.ErrProjectNotFound) {
		return err
	}
	if err == nil && p.DeletingAt == nil {
		return nil
	}
	if _, err := s.invites.DeleteByProject(ctx, projectID); err != nil {
		return storageErr("drop orphan invite", err)
	}
	return projectpolicy.ErrProjectNotFound
}

// RedeemInvite adds userID to the invite's project as a viewer and returns
// the project id.
func (s *Service) RedeemInvite(ctx context.Context, token string, userID primitive.ObjectID) (primitive.ObjectID, error) {
	const op = "redeem_invite"

	inv, err := s.invites.GetByToken(ctx, token)
	switch {
	case errors.Is(err, invitestore.ErrNotFound):
		return primitive.NilObjectID, s.finish(ctx, op, userID, primitive.NilObjectID, nil, projectpolicy.ErrInvalidInvite)
	case err != nil:
		return primitive.NilObjectID, s.finish(ctx, op, userID, primitive.NilObjectID, nil, storageErr("read invite", err))
	case inv.IsExpired(s.now()):
		return primitive.NilObjectID, s.finish(ctx, op, userID, inv.ProjectID, nil, projectpolicy.ErrInvalidInvite)
	}

	err = s.withRetry(ctx, op, inv.ProjectID, func(p models.Project) error {
		if !p.Settings.LinkJoinEnabled {
			return projectpolicy.ErrInvalidInvite
		}
		if err := projectpolicy.RequireUniqueMembership(&p, userID); err != nil {
			// An earlier redeem may have stopped between its two writes.
			if lerr := s.users.AddProject(ctx, userID, p.ID); lerr != nil {
				return storageErr("link user", lerr)
			}
			return err
		}
		members := projectpolicy.ApplyChange(p.Members, projectpolicy.Addition(userID, models.RoleViewer, s.now()))
		return s.tx.Run(ctx, func(ctx context.Context) error {
			if _, err := s.projects.UpdateMembers(ctx, p.ID, p.Version, members); err != nil {
				return storageErr("update members", err)
			}
			if err := s.users.AddProject(ctx, userID, p.ID); err != nil {
				return storageErr("link user", err)
			}
			return nil
		})
	})
	if errors.Is(err, projectpolicy.ErrProjectNotFound) {
		if _, derr := s.invites.DeleteByProject(ctx, inv.ProjectID); derr != nil {
			s.log.Warn("could not drop invite of a deleted project",
				zap.String("project_id", inv.ProjectID.Hex()), zap.Error(derr))
		}
		err = projectpolicy.ErrInvalidInvite
	}
	if err := s.finish(ctx, op, userID, inv.ProjectID, &userID, err); err != nil {
		return primitive.NilObjectID, err
	}

	s.audit.MemberJoined(ctx, userID, inv.ProjectID, string(models.RoleViewer))
	return inv.ProjectID, nil
}

// DisableInvites revokes every invite token of the project. The link-join
// setting is left as is; a new token can be issued later.
func (s *Service) DisableInvites(ctx context.Context, projectID, actorID primitive.ObjectID) error {
	const op = "disable_invites"

	var revoked int64
	err := func() error {
		p, err := s.Load(ctx, projectID)
		if err != nil {
			return err
		}
		if err := projectpolicy.RequireAdministrator(&p, actorID); err != nil {
			return err
		}
		revoked, err = s.invites.DeleteByProject(ctx, projectID)
		return storageErr("revoke invites", err)
	}()
	if err := s.finish(ctx, op, actorID, projectID, nil, err); err != nil {
		return err
	}

	s.audit.InvitesDisabled(ctx, actorID, projectID, revoked)
	return nil
}

// PurgeExpiredInvites deletes every token past its expiry.
func (s *Service) PurgeExpiredInvites(ctx context.Context) (int64, error) {
	n, err := s.invites.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, storageErr("purge invites", err)
	}
	if n > 0 {
		s.audit.InvitesPurged(ctx, n)
	}
	return n, nil
}
