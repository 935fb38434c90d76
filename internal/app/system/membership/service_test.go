package membership

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/collabhub/internal/app/policy/projectpolicy"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type harness struct {
	svc      *Service
	projects *memProjects
	users    *memUsers
	invites  *memInvites
	tasks    *memTasks
	clock    *fakeClock
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	h := &harness{
		projects: newMemProjects(),
		users:    newMemUsers(),
		invites:  newMemInvites(),
		tasks:    newMemTasks(),
		clock:    &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	cfg.Now = h.clock.Now
	if cfg.ReadBackoff == 0 {
		cfg.ReadBackoff = time.Millisecond
	}
	h.svc = New(Deps{
		Projects: h.projects,
		Users:    h.users,
		Invites:  h.invites,
		Tasks:    h.tasks,
	}, cfg)
	return h
}

// project creates a project owned by owner and adds the extra members with
// their back-references.
func (h *harness) project(t *testing.T, owner primitive.ObjectID, extra ...models.Member) models.Project {
	t.Helper()
	p, err := h.svc.CreateProject(context.Background(), owner, "Apollo", "")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if len(extra) == 0 {
		return p
	}
	p.Members = append(p.Members, extra...)
	h.projects.put(p)
	for _, m := range extra {
		_ = h.users.AddProject(context.Background(), m.UserID, p.ID)
	}
	return p
}

func (h *harness) roleOf(t *testing.T, projectID, userID primitive.ObjectID) (models.RoleName, bool) {
	t.Helper()
	p, ok := h.projects.get(projectID)
	if !ok {
		t.Fatalf("project %s missing", projectID.Hex())
	}
	m, ok := p.FindMember(userID)
	return m.Role, ok
}

func member(id primitive.ObjectID, role models.RoleName) models.Member {
	return models.Member{UserID: id, Role: role}
}

func ids(n int) []primitive.ObjectID {
	out := make([]primitive.ObjectID, n)
	for i := range out {
		out[i] = primitive.NewObjectID()
	}
	return out
}

func TestCreateProject_OwnerIsSoleAdministrator(t *testing.T) {
	h := newHarness(t, Config{})
	owner := primitive.NewObjectID()

	p, err := h.svc.CreateProject(context.Background(), owner, "  Apollo   Launch ", "<b>go</b><script>x</script>")
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	if p.Name != "Apollo Launch" {
		t.Errorf("Name = %q, want collapsed whitespace", p.Name)
	}
	if p.OwnerID != owner {
		t.Errorf("OwnerID = %v, want %v", p.OwnerID, owner)
	}
	if len(p.Members) != 1 || p.Members[0].UserID != owner || p.Members[0].Role != models.RoleAdministrator {
		t.Errorf("Members = %+v, want owner as sole administrator", p.Members)
	}
	if !p.Settings.LinkJoinEnabled || p.Settings.PDFExportEnabled {
		t.Errorf("Settings = %+v, want link join on, pdf off", p.Settings)
	}
	if !h.users.has(owner, p.ID) {
		t.Error("owner should reference the new project")
	}
}

func TestCreateProject_BlankName(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.svc.CreateProject(context.Background(), primitive.NewObjectID(), "   ", "")
	if !errors.Is(err, ErrNameRequired) {
		t.Fatalf("err = %v, want ErrNameRequired", err)
	}
}

func TestAssignRole(t *testing.T) {
	u := ids(4) // owner, developer, viewer, outsider
	owner, dev, viewer, outsider := u[0], u[1], u[2], u[3]

	tests := []struct {
		name    string
		actor   primitive.ObjectID
		target  primitive.ObjectID
		role    string
		wantErr error
	}{
		{"promote developer", owner, dev, "administrator", nil},
		{"role name is case and space insensitive", owner, viewer, "  Developer ", nil},
		{"actor not a member", outsider, dev, "viewer", projectpolicy.ErrNotAMember},
		{"actor not administrator", dev, viewer, "developer", projectpolicy.ErrNotAdministrator},
		{"authorization checked before role", viewer, dev, "superuser", projectpolicy.ErrNotAdministrator},
		{"unknown role", owner, dev, "superuser", projectpolicy.ErrRoleNotFound},
		{"target not a member", owner, outsider, "viewer", projectpolicy.ErrMemberNotFound},
		{"demoting the last administrator", owner, owner, "viewer", projectpolicy.ErrLastAdministrator},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, Config{})
			p := h.project(t, owner, member(dev, models.RoleDeveloper), member(viewer, models.RoleViewer))

			got, err := h.svc.AssignRole(context.Background(), p.ID, tt.target, tt.actor, tt.role)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				if h.projects.writes != 0 {
					t.Errorf("rejected change should not write; writes = %d", h.projects.writes)
				}
				return
			}
			want, _ := models.ParseRole(tt.role)
			if role, _ := h.roleOf(t, p.ID, tt.target); role != want {
				t.Errorf("stored role = %q, want %q", role, want)
			}
			if got.Version != p.Version+1 {
				t.Errorf("Version = %d, want %d", got.Version, p.Version+1)
			}
		})
	}
}

func TestAssignRole_SameRoleIsNoop(t *testing.T) {
	h := newHarness(t, Config{})
	owner, dev := primitive.NewObjectID(), primitive.NewObjectID()
	p := h.project(t, owner, member(dev, models.RoleDeveloper))

	if _, err := h.svc.AssignRole(context.Background(), p.ID, dev, owner, "developer"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if h.projects.writes != 0 {
		t.Errorf("writes = %d, want 0", h.projects.writes)
	}
}

func TestAssignRole_OwnerMayBeDemotedWhenAnotherAdminRemains(t *testing.T) {
	h := newHarness(t, Config{})
	owner, admin := primitive.NewObjectID(), primitive.NewObjectID()
	p := h.project(t, owner, member(admin, models.RoleAdministrator))

	if _, err := h.svc.AssignRole(context.Background(), p.ID, owner, admin, "developer"); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if role, _ := h.roleOf(t, p.ID, owner); role != models.RoleDeveloper {
		t.Errorf("owner role = %q, want developer", role)
	}
}

func TestAssignRole_MissingProject(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.svc.AssignRole(context.Background(), primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID(), "viewer")
	if !errors.Is(err, projectpolicy.ErrProjectNotFound) {
		t.Fatalf("err = %v, want ErrProjectNotFound", err)
	}
}

func TestRemoveMember(t *testing.T) {
	h := newHarness(t, Config{})
	u := ids(4)
	owner, admin, viewer, outsider := u[0], u[1], u[2], u[3]
	p := h.project(t, owner, member(admin, models.RoleAdministrator), member(viewer, models.RoleViewer))
	h.tasks.add(p.ID, &viewer)
	ctx := context.Background()

	if err := h.svc.RemoveMember(ctx, p.ID, viewer, owner); !errors.Is(err, projectpolicy.ErrNotAdministrator) {
		t.Errorf("viewer removing owner: err = %v, want ErrNotAdministrator", err)
	}
	if err := h.svc.RemoveMember(ctx, p.ID, outsider, viewer); !errors.Is(err, projectpolicy.ErrNotAMember) {
		t.Errorf("outsider removing: err = %v, want ErrNotAMember", err)
	}
	if err := h.svc.RemoveMember(ctx, p.ID, admin, outsider); !errors.Is(err, projectpolicy.ErrMemberNotFound) {
		t.Errorf("removing non-member: err = %v, want ErrMemberNotFound", err)
	}
	if err := h.svc.RemoveMember(ctx, p.ID, admin, owner); !errors.Is(err, projectpolicy.ErrIsOwner) {
		t.Errorf("removing owner: err = %v, want ErrIsOwner", err)
	}

	if err := h.svc.RemoveMember(ctx, p.ID, admin, viewer); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}
	if _, ok := h.roleOf(t, p.ID, viewer); ok {
		t.Error("viewer still listed as member")
	}
	if h.users.has(viewer, p.ID) {
		t.Error("viewer still references project")
	}
	if h.tasks.assigned(p.ID, viewer) {
		t.Error("viewer still assigned to a task")
	}
}

func TestRemoveMember_LastAdministrator(t *testing.T) {
	h := newHarness(t, Config{})
	owner, admin := primitive.NewObjectID(), primitive.NewObjectID()
	p := h.project(t, owner, member(admin, models.RoleAdministrator))
	// The owner has stepped down, leaving admin as the only administrator.
	p, _ = h.projects.get(p.ID)
	p.Members[0].Role = models.RoleDeveloper
	h.projects.put(p)

	err := h.svc.RemoveMember(context.Background(), p.ID, admin, admin)
	if !errors.Is(err, projectpolicy.ErrLastAdministrator) {
		t.Fatalf("err = %v, want ErrLastAdministrator", err)
	}
}

func TestLeaveProject_SecondAdministratorLeaves(t *testing.T) {
	h := newHarness(t, Config{})
	owner, admin := primitive.NewObjectID(), primitive.NewObjectID()
	p := h.project(t, owner, member(admin, models.RoleAdministrator))

	res, err := h.svc.LeaveProject(context.Background(), p.ID, admin)
	if err != nil {
		t.Fatalf("LeaveProject: %v", err)
	}
	if !res.Left || res.LastAdminChoice {
		t.Fatalf("result = %+v, want Left", res)
	}
	got, _ := h.projects.get(p.ID)
	if len(got.Members) != 1 || got.Members[0].UserID != owner || got.Members[0].Role != models.RoleAdministrator {
		t.Errorf("Members = %+v, want owner as sole administrator", got.Members)
	}
	if h.users.has(admin, p.ID) {
		t.Error("leaver still references project")
	}
}

func TestLeaveProject_OwnerCannotLeave(t *testing.T) {
	h := newHarness(t, Config{})
	owner := primitive.NewObjectID()
	p := h.project(t, owner)

	_, err := h.svc.LeaveProject(context.Background(), p.ID, owner)
	if !errors.Is(err, projectpolicy.ErrIsOwner) {
		t.Fatalf("err = %v, want ErrIsOwner", err)
	}
}

func TestLeaveProject_NotAMember(t *testing.T) {
	h := newHarness(t, Config{})
	p := h.project(t, primitive.NewObjectID())

	_, err := h.svc.LeaveProject(context.Background(), p.ID, primitive.NewObjectID())
	if !errors.Is(err, projectpolicy.ErrNotAMember) {
		t.Fatalf("err = %v, want ErrNotAMember", err)
	}
}

func TestLeaveProject_LastAdministratorGetsChoice(t *testing.T) {
	h := newHarness(t, Config{})
	u := ids(3)
	owner, admin, viewer := u[0], u[1], u[2]
	p := h.project(t, owner, member(admin, models.RoleAdministrator), member(viewer, models.RoleViewer))
	if _, err := h.svc.AssignRole(context.Background(), p.ID, owner, admin, "developer"); err != nil {
		t.Fatalf("demote owner: %v", err)
	}
	writes := h.projects.writes

	res, err := h.svc.LeaveProject(context.Background(), p.ID, admin)
	if err != nil {
		t.Fatalf("LeaveProject returned an error instead of a choice: %v", err)
	}
	if res.Left || !res.LastAdminChoice {
		t.Fatalf("result = %+v, want LastAdminChoice", res)
	}
	if len(res.Candidates) != 2 {
		t.Fatalf("Candidates = %+v, want the two remaining members", res.Candidates)
	}
	for _, c := range res.Candidates {
		if c.UserID == admin {
			t.Error("leaver listed as a candidate")
		}
	}
	if h.projects.writes != writes {
		t.Error("choice result must not write")
	}
	if _, ok := h.roleOf(t, p.ID, admin); !ok {
		t.Error("last administrator was removed")
	}
}

func TestDeleteProject_Cascade(t *testing.T) {
	h := newHarness(t, Config{})
	owner, dev := primitive.NewObjectID(), primitive.NewObjectID()
	p := h.project(t, owner, member(dev, models.RoleDeveloper))
	h.tasks.add(p.ID, nil)
	h.tasks.add(p.ID, &dev)
	ctx := context.Background()
	if _, err := h.svc.IssueInvite(ctx, p.ID, owner); err != nil {
		t.Fatalf("IssueInvite: %v", err)
	}

	if err := h.svc.DeleteProject(ctx, p.ID, dev); !errors.Is(err, projectpolicy.ErrNotAdministrator) {
		t.Fatalf("developer delete: err = %v, want ErrNotAdministrator", err)
	}
	if err := h.svc.DeleteProject(ctx, p.ID, owner); err != nil {
		t.Fatalf("DeleteProject: %v", err)
	}

	if _, ok := h.projects.get(p.ID); ok {
		t.Error("project document still present")
	}
	if h.invites.count() != 0 {
		t.Error("invite survived project delete")
	}
	if h.users.has(owner, p.ID) || h.users.has(dev, p.ID) {
		t.Error("user back-reference survived project delete")
	}
	if n, _ := h.tasks.DeleteByProject(ctx, p.ID); n != 0 {
		t.Errorf("%d tasks survived project delete", n)
	}
	if _, err := h.svc.Load(ctx, p.ID); !errors.Is(err, projectpolicy.ErrProjectNotFound) {
		t.Errorf("Load after delete: err = %v, want ErrProjectNotFound", err)
	}
}

func TestDeleteProject_ResumesAfterFailure(t *testing.T) {
	h := newHarness(t, Config{})
	owner := primitive.NewObjectID()
	p := h.project(t, owner)
	ctx := context.Background()

	h.users.failRemoveAll = true
	err := h.svc.DeleteProject(ctx, p.ID, owner)
	if !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("err = %v, want ErrStorageFailure", err)
	}

	// A half-deleted project is hidden from every operation.
	if _, err := h.svc.Load(ctx, p.ID); !errors.Is(err, projectpolicy.ErrProjectNotFound) {
		t.Errorf("Load: err = %v, want ErrProjectNotFound", err)
	}
	if _, err := h.svc.IssueInvite(ctx, p.ID, owner); !errors.Is(err, projectpolicy.ErrProjectNotFound) {
		t.Errorf("IssueInvite: err = %v, want ErrProjectNotFound", err)
	}

	// The sweeper ignores cascades that are not yet stalled.
	done, err := h.svc.SweepStalled(ctx, time.Minute)
	if err != nil || done != 0 {
		t.Fatalf("early sweep = (%d, %v), want (0, nil)", done, err)
	}

	h.clock.Advance(5 * time.Minute)
	done, err = h.svc.SweepStalled(ctx, time.Minute)
	if err != nil {
		t.Fatalf("SweepStalled: %v", err)
	}
	if done != 1 {
		t.Errorf("done = %d, want 1", done)
	}
	if _, ok := h.projects.get(p.ID); ok {
		t.Error("project still present after sweep")
	}
	if h.users.has(owner, p.ID) {
		t.Error("owner still references deleted project")
	}
}

func TestDeleteProject_RetryByAdministratorFinishesCascade(t *testing.T) {
	h := newHarness(t, Config{})
	owner := primitive.NewObjectID()
	p := h.project(t, owner)
	ctx := context.Background()

	h.users.failRemoveAll = true
	_ = h.svc.DeleteProject(ctx, p.ID, owner)

	if err := h.svc.DeleteProject(ctx, p.ID, owner); err != nil {
		t.Fatalf("retry DeleteProject: %v", err)
	}
	if _, ok := h.projects.get(p.ID); ok {
		t.Error("project still present after retry")
	}
}

func TestResumeDeletion_IgnoresLiveProjects(t *testing.T) {
	h := newHarness(t, Config{})
	p := h.project(t, primitive.NewObjectID())

	if err := h.svc.ResumeDeletion(context.Background(), p.ID); err != nil {
		t.Fatalf("ResumeDeletion: %v", err)
	}
	if _, ok := h.projects.get(p.ID); !ok {
		t.Error("live project was deleted")
	}
	if err := h.svc.ResumeDeletion(context.Background(), primitive.NewObjectID()); err != nil {
		t.Errorf("missing project: err = %v, want nil", err)
	}
}

func TestUpdateSettings(t *testing.T) {
	h := newHarness(t, Config{})
	owner, viewer := primitive.NewObjectID(), primitive.NewObjectID()
	p := h.project(t, owner, member(viewer, models.RoleViewer))
	ctx := context.Background()
	token, err := h.svc.IssueInvite(ctx, p.ID, owner)
	if err != nil {
		t.Fatalf("IssueInvite: %v", err)
	}

	on, off := true, false
	if _, err := h.svc.UpdateSettings(ctx, p.ID, viewer, SettingsPatch{PDFExportEnabled: &on}); !errors.Is(err, projectpolicy.ErrNotAdministrator) {
		t.Fatalf("viewer: err = %v, want ErrNotAdministrator", err)
	}

	got, err := h.svc.UpdateSettings(ctx, p.ID, owner, SettingsPatch{PDFExportEnabled: &on})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}
	if !got.Settings.PDFExportEnabled || !got.Settings.LinkJoinEnabled {
		t.Errorf("Settings = %+v, want pdf on and link join untouched", got.Settings)
	}
	if h.invites.count() != 1 {
		t.Error("invite revoked although link join stayed on")
	}

	if _, err := h.svc.UpdateSettings(ctx, p.ID, owner, SettingsPatch{LinkJoinEnabled: &off}); err != nil {
		t.Fatalf("disable link join: %v", err)
	}
	if h.invites.count() != 0 {
		t.Error("disabling link join should revoke invites")
	}
	if _, err := h.svc.RedeemInvite(ctx, token, primitive.NewObjectID()); !errors.Is(err, projectpolicy.ErrInvalidInvite) {
		t.Errorf("redeem revoked token: err = %v, want ErrInvalidInvite", err)
	}
	if _, err := h.svc.IssueInvite(ctx, p.ID, owner); !errors.Is(err, projectpolicy.ErrInviteLinksDisabled) {
		t.Errorf("issue with links disabled: err = %v, want ErrInviteLinksDisabled", err)
	}
}

func TestRetry_ExhaustedAttempts(t *testing.T) {
	h := newHarness(t, Config{MaxAttempts: 3})
	owner, dev := primitive.NewObjectID(), primitive.NewObjectID()
	p := h.project(t, owner, member(dev, models.RoleDeveloper))

	h.projects.conflicts = 3
	_, err := h.svc.AssignRole(context.Background(), p.ID, dev, owner, "viewer")
	if !errors.Is(err, ErrConcurrentUpdate) {
		t.Fatalf("err = %v, want ErrConcurrentUpdate", err)
	}

	h.projects.conflicts = 2
	if _, err := h.svc.AssignRole(context.Background(), p.ID, dev, owner, "viewer"); err != nil {
		t.Fatalf("third attempt should succeed: %v", err)
	}
}

func TestLoad_RetriesReadOnce(t *testing.T) {
	h := newHarness(t, Config{})
	p := h.project(t, primitive.NewObjectID())
	ctx := context.Background()

	h.projects.getErrs = []error{errors.New("socket closed")}
	if _, err := h.svc.Load(ctx, p.ID); err != nil {
		t.Fatalf("Load after one transient error: %v", err)
	}

	h.projects.getErrs = []error{errors.New("socket closed"), errors.New("socket closed")}
	if _, err := h.svc.Load(ctx, p.ID); !errors.Is(err, ErrStorageFailure) {
		t.Fatalf("err = %v, want ErrStorageFailure", err)
	}
}

func TestGetForMember(t *testing.T) {
	h := newHarness(t, Config{})
	owner := primitive.NewObjectID()
	p := h.project(t, owner)

	if _, err := h.svc.GetForMember(context.Background(), p.ID, owner); err != nil {
		t.Errorf("owner: %v", err)
	}
	if _, err := h.svc.GetForMember(context.Background(), p.ID, primitive.NewObjectID()); !errors.Is(err, projectpolicy.ErrNotAMember) {
		t.Errorf("outsider: err = %v, want ErrNotAMember", err)
	}
}

func TestIsDenied(t *testing.T) {
	if !IsDenied(projectpolicy.ErrLastAdministrator) {
		t.Error("ErrLastAdministrator should be a denial")
	}
	if IsDenied(ErrStorageFailure) || IsDenied(ErrConcurrentUpdate) {
		t.Error("failures are not denials")
	}
}
