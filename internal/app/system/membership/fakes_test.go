package membership

import (
	"context"
	"fmt"
	"sync"
	"time"

	invitestore "github.com/dalemusser/collabhub/internal/app/store/invites"
	projectstore "github.com/dalemusser/collabhub/internal/app/store/projects"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memProjects keeps projects in memory with the same versioning rules as
// projectstore.Store.
type memProjects struct {
	mu   sync.Mutex
	byID map[primitive.ObjectID]models.Project

	// getErrs are returned by successive GetByID calls before reads succeed.
	getErrs []error
	// onUpdate runs once, before the next versioned write is applied, to
	// interleave another operation between a read and its write.
	onUpdate func()
	// conflicts forces this many versioned writes to fail.
	conflicts int
	writes    int
}

func newMemProjects() *memProjects {
	return &memProjects{byID: map[primitive.ObjectID]models.Project{}}
}

func cloneProject(p models.Project) models.Project {
	p.Members = append([]models.Member(nil), p.Members...)
	p.TaskIDs = append([]primitive.ObjectID(nil), p.TaskIDs...)
	if p.DeletingAt != nil {
		t := *p.DeletingAt
		p.DeletingAt = &t
	}
	return p
}

func (m *memProjects) Create(_ context.Context, p models.Project) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.Version = 1
	m.byID[p.ID] = cloneProject(p)
	return cloneProject(p), nil
}

func (m *memProjects) GetByID(_ context.Context, id primitive.ObjectID) (models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.getErrs) > 0 {
		err := m.getErrs[0]
		m.getErrs = m.getErrs[1:]
		return models.Project{}, err
	}
	p, ok := m.byID[id]
	if !ok {
		return models.Project{}, projectstore.ErrNotFound
	}
	return cloneProject(p), nil
}

func (m *memProjects) versioned(id primitive.ObjectID, expected int64, apply func(p *models.Project)) (int64, error) {
	m.mu.Lock()
	hook := m.onUpdate
	m.onUpdate = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return 0, projectstore.ErrNotFound
	}
	if m.conflicts > 0 {
		m.conflicts--
		return 0, projectstore.ErrVersionConflict
	}
	if p.Version != expected {
		return 0, projectstore.ErrVersionConflict
	}
	apply(&p)
	p.Version++
	m.byID[id] = p
	m.writes++
	return p.Version, nil
}

func (m *memProjects) UpdateMembers(_ context.Context, id primitive.ObjectID, v int64, members []models.Member) (int64, error) {
	members = append([]models.Member(nil), members...)
	return m.versioned(id, v, func(p *models.Project) { p.Members = members })
}

func (m *memProjects) UpdateSettings(_ context.Context, id primitive.ObjectID, v int64, st models.ProjectSettings) (int64, error) {
	return m.versioned(id, v, func(p *models.Project) { p.Settings = st })
}

func (m *memProjects) MarkDeleting(_ context.Context, id primitive.ObjectID, v int64, at time.Time) (int64, error) {
	return m.versioned(id, v, func(p *models.Project) { p.DeletingAt = &at })
}

func (m *memProjects) ListDeleting(_ context.Context, cutoff time.Time, limit int64) ([]models.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Project
	for _, p := range m.byID {
		if p.DeletingAt != nil && !p.DeletingAt.After(cutoff) && int64(len(out)) < limit {
			out = append(out, cloneProject(p))
		}
	}
	return out, nil
}

func (m *memProjects) Delete(_ context.Context, id primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byID, id)
	return nil
}

// put stores p as is, for seeding.
func (m *memProjects) put(p models.Project) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[p.ID] = cloneProject(p)
}

func (m *memProjects) get(id primitive.ObjectID) (models.Project, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	return cloneProject(p), ok
}

// memUsers tracks project back-references.
type memUsers struct {
	mu       sync.Mutex
	projects map[primitive.ObjectID]map[primitive.ObjectID]bool
	// failRemoveAll makes the next RemoveProjectFromAll fail.
	failRemoveAll bool
	// failAdd and failRemove make the next AddProject or RemoveProject fail.
	failAdd    bool
	failRemove bool
}

func newMemUsers() *memUsers {
	return &memUsers{projects: map[primitive.ObjectID]map[primitive.ObjectID]bool{}}
}

func (m *memUsers) AddProject(_ context.Context, userID, projectID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAdd {
		m.failAdd = false
		return fmt.Errorf("connection reset")
	}
	if m.projects[userID] == nil {
		m.projects[userID] = map[primitive.ObjectID]bool{}
	}
	m.projects[userID][projectID] = true
	return nil
}

func (m *memUsers) RemoveProject(_ context.Context, userID, projectID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRemove {
		m.failRemove = false
		return fmt.Errorf("connection reset")
	}
	delete(m.projects[userID], projectID)
	return nil
}

func (m *memUsers) RemoveProjectFromAll(_ context.Context, projectID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRemoveAll {
		m.failRemoveAll = false
		return 0, fmt.Errorf("connection reset")
	}
	var n int64
	for _, refs := range m.projects {
		if refs[projectID] {
			delete(refs, projectID)
			n++
		}
	}
	return n, nil
}

func (m *memUsers) has(userID, projectID primitive.ObjectID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.projects[userID][projectID]
}

// memInvites enforces one invite per project and unique tokens.
type memInvites struct {
	mu        sync.Mutex
	byProject map[primitive.ObjectID]models.Invite
	seq       int
}

func newMemInvites() *memInvites {
	return &memInvites{byProject: map[primitive.ObjectID]models.Invite{}}
}

func (m *memInvites) Create(_ context.Context, projectID, issuedBy primitive.ObjectID, expiresAt *time.Time) (models.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byProject[projectID]; ok {
		return models.Invite{}, invitestore.ErrDuplicate
	}
	m.seq++
	inv := models.Invite{
		ID:        primitive.NewObjectID(),
		ProjectID: projectID,
		Token:     fmt.Sprintf("token-%d", m.seq),
		IssuedBy:  issuedBy,
		ExpiresAt: expiresAt,
	}
	m.byProject[projectID] = inv
	return inv, nil
}

func (m *memInvites) GetByProject(_ context.Context, projectID primitive.ObjectID) (models.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.byProject[projectID]
	if !ok {
		return models.Invite{}, invitestore.ErrNotFound
	}
	return inv, nil
}

func (m *memInvites) GetByToken(_ context.Context, token string) (models.Invite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.byProject {
		if inv.Token == token {
			return inv, nil
		}
	}
	return models.Invite{}, invitestore.ErrNotFound
}

func (m *memInvites) DeleteByProject(_ context.Context, projectID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byProject[projectID]; !ok {
		return 0, nil
	}
	delete(m.byProject, projectID)
	return 1, nil
}

func (m *memInvites) DeleteExpiredForProject(_ context.Context, projectID primitive.ObjectID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.byProject[projectID]; ok && inv.IsExpired(now) {
		delete(m.byProject, projectID)
	}
	return nil
}

func (m *memInvites) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, inv := range m.byProject {
		if inv.IsExpired(now) {
			delete(m.byProject, id)
			n++
		}
	}
	return n, nil
}

func (m *memInvites) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byProject)
}

// memTasks counts tasks per project and records assignees.
type memTasks struct {
	mu        sync.Mutex
	count     map[primitive.ObjectID]int64
	assignees map[primitive.ObjectID]map[primitive.ObjectID]bool
}

func newMemTasks() *memTasks {
	return &memTasks{
		count:     map[primitive.ObjectID]int64{},
		assignees: map[primitive.ObjectID]map[primitive.ObjectID]bool{},
	}
}

func (m *memTasks) add(projectID primitive.ObjectID, assignee *primitive.ObjectID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.count[projectID]++
	if assignee != nil {
		if m.assignees[projectID] == nil {
			m.assignees[projectID] = map[primitive.ObjectID]bool{}
		}
		m.assignees[projectID][*assignee] = true
	}
}

func (m *memTasks) DeleteByProject(_ context.Context, projectID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.count[projectID]
	delete(m.count, projectID)
	delete(m.assignees, projectID)
	return n, nil
}

func (m *memTasks) UnassignUser(_ context.Context, projectID, userID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.assignees[projectID], userID)
	return nil
}

func (m *memTasks) assigned(projectID, userID primitive.ObjectID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.assignees[projectID][userID]
}

// fakeClock is a settable clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
