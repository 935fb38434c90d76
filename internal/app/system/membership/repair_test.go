package membership

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/collabhub/internal/app/policy/projectpolicy"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRedeemInvite_RetryRelinksUser(t *testing.T) {
	h := newHarness(t, Config{})
	owner, joiner := primitive.NewObjectID(), primitive.NewObjectID()
	p := h.project(t, owner)
	ctx := context.Background()
	token, err := h.svc.IssueInvite(ctx, p.ID, owner)
	if err != nil {
		t.Fatalf("IssueInvite: %v", err)
	}

	h.users.failAdd = true
	if _, err := h.svc.RedeemInvite(ctx, token, joiner); !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("first redeem: err = %v, want ErrStorageFailure", err)
	}
	if _, ok := h.roleOf(t, p.ID, joiner); !ok {
		t.Fatal("member list write should have committed")
	}
	if h.users.has(joiner, p.ID) {
		t.Fatal("back-reference should be missing after the failed write")
	}

	if _, err := h.svc.RedeemInvite(ctx, token, joiner); !errors.Is(err, projectpolicy.ErrAlreadyMember) {
		t.Fatalf("retry: err = %v, want ErrAlreadyMember", err)
	}
	if !h.users.has(joiner, p.ID) {
		t.Error("retry should restore the back-reference")
	}
}

func TestRemoveMember_RetryUnlinksUser(t *testing.T) {
	h := newHarness(t, Config{})
	owner, dev := primitive.NewObjectID(), primitive.NewObjectID()
	p := h.project(t, owner, member(dev, models.RoleDeveloper))
	ctx := context.Background()

	h.users.failRemove = true
	if err := h.svc.RemoveMember(ctx, p.ID, owner, dev); !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("first remove: err = %v, want ErrStorageFailure", err)
	}
	if _, ok := h.roleOf(t, p.ID, dev); ok {
		t.Fatal("member list write should have committed")
	}
	if !h.users.has(dev, p.ID) {
		t.Fatal("back-reference should survive the failed write")
	}

	if err := h.svc.RemoveMember(ctx, p.ID, owner, dev); !errors.Is(err, projectpolicy.ErrMemberNotFound) {
		t.Fatalf("retry: err = %v, want ErrMemberNotFound", err)
	}
	if h.users.has(dev, p.ID) {
		t.Error("retry should drop the stale back-reference")
	}
}

func TestLeaveProject_RetryUnlinksUser(t *testing.T) {
	h := newHarness(t, Config{})
	owner, viewer := primitive.NewObjectID(), primitive.NewObjectID()
	p := h.project(t, owner, member(viewer, models.RoleViewer))
	ctx := context.Background()

	h.users.failRemove = true
	if _, err := h.svc.LeaveProject(ctx, p.ID, viewer); !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("first leave: err = %v, want ErrStorageFailure", err)
	}
	if _, err := h.svc.LeaveProject(ctx, p.ID, viewer); !errors.Is(err, projectpolicy.ErrNotAMember) {
		t.Fatalf("retry: err = %v, want ErrNotAMember", err)
	}
	if h.users.has(viewer, p.ID) {
		t.Error("retry should drop the stale back-reference")
	}
}

// deletingInvites runs a project delete right before the first invite
// lookup, after IssueInvite has already checked the project is live.
type deletingInvites struct {
	*memInvites
	before func()
}

func (d *deletingInvites) GetByProject(ctx context.Context, projectID primitive.ObjectID) (models.Invite, error) {
	if d.before != nil {
		hook := d.before
		d.before = nil
		hook()
	}
	return d.memInvites.GetByProject(ctx, projectID)
}

func TestIssueInvite_DeleteDuringIssueLeavesNoToken(t *testing.T) {
	h := newHarness(t, Config{})
	owner := primitive.NewObjectID()
	p := h.project(t, owner)
	ctx := context.Background()

	var deleteErr error
	h.svc.invites = &deletingInvites{
		memInvites: h.invites,
		before:     func() { deleteErr = h.svc.DeleteProject(ctx, p.ID, owner) },
	}

	token, err := h.svc.IssueInvite(ctx, p.ID, owner)
	if deleteErr != nil {
		t.Fatalf("DeleteProject: %v", deleteErr)
	}
	if !errors.Is(err, projectpolicy.ErrProjectNotFound) {
		t.Fatalf("IssueInvite: token=%q err=%v, want ErrProjectNotFound", token, err)
	}
	if n := h.invites.count(); n != 0 {
		t.Errorf("invites = %d, want 0", n)
	}
}
