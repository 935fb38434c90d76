// Package membership implements the project membership operations.
//
// Every mutating operation follows the same shape: load the project
// snapshot, run the projectpolicy guards against it, and commit the result
// with a write conditioned on the snapshot's version. When another writer
// got there first the snapshot is reloaded and the guards run again, so two
// changes that are each valid alone can never combine into a state that
// breaks an invariant.
package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/collabhub/internal/app/policy/projectpolicy"
	projectstore "github.com/dalemusser/collabhub/internal/app/store/projects"
	"github.com/dalemusser/collabhub/internal/app/system/auditlog"
	"github.com/dalemusser/collabhub/internal/app/system/metrics"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	// ErrStorageFailure wraps unexpected errors from the database.
	ErrStorageFailure = errors.New("storage failure")
	// ErrConcurrentUpdate means every attempt lost a version race.
	ErrConcurrentUpdate = errors.New("project is being modified concurrently; try again")
	// ErrNameRequired is returned when a project name is blank.
	ErrNameRequired = errors.New("project name is required")
)

// Defaults for Config.
const (
	DefaultMaxAttempts = 5
	DefaultReadBackoff = 50 * time.Millisecond
	DefaultSweepBatch  = 50
)

// ProjectStore is the subset of projectstore.Store the service needs.
type ProjectStore interface {
	Create(ctx context.Context, p models.Project) (models.Project, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Project, error)
	UpdateMembers(ctx context.Context, id primitive.ObjectID, expectedVersion int64, members []models.Member) (int64, error)
	UpdateSettings(ctx context.Context, id primitive.ObjectID, expectedVersion int64, settings models.ProjectSettings) (int64, error)
	MarkDeleting(ctx context.Context, id primitive.ObjectID, expectedVersion int64, at time.Time) (int64, error)
	ListDeleting(ctx context.Context, cutoff time.Time, limit int64) ([]models.Project, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// UserStore maintains the project back-references on user documents.
type UserStore interface {
	AddProject(ctx context.Context, userID, projectID primitive.ObjectID) error
	RemoveProject(ctx context.Context, userID, projectID primitive.ObjectID) error
	RemoveProjectFromAll(ctx context.Context, projectID primitive.ObjectID) (int64, error)
}

// InviteStore persists invite tokens.
type InviteStore interface {
	Create(ctx context.Context, projectID, issuedBy primitive.ObjectID, expiresAt *time.Time) (models.Invite, error)
	GetByProject(ctx context.Context, projectID primitive.ObjectID) (models.Invite, error)
	GetByToken(ctx context.Context, token string) (models.Invite, error)
	DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error)
	DeleteExpiredForProject(ctx context.Context, projectID primitive.ObjectID, now time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TaskStore is used to cascade deletes and clear assignments of departing
// members.
type TaskStore interface {
	DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error)
	UnassignUser(ctx context.Context, projectID, userID primitive.ObjectID) error
}

// TxRunner groups writes into one transaction where the deployment allows.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context) error) error
}

// Deps are the collaborators of a Service. Audit may be nil.
type Deps struct {
	Projects ProjectStore
	Users    UserStore
	Invites  InviteStore
	Tasks    TaskStore
	Tx       TxRunner
	Audit    *auditlog.Logger
	Log      *zap.Logger
}

// Config tunes a Service. Zero values select the defaults.
type Config struct {
	// MaxAttempts bounds reload-and-revalidate cycles after version conflicts.
	MaxAttempts int
	// InviteTTL is the lifetime of newly minted invite tokens. Zero means
	// tokens never expire.
	InviteTTL time.Duration
	// ReadBackoff is the pause before the single retry of a failed snapshot read.
	ReadBackoff time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service runs membership operations.
type Service struct {
	projects ProjectStore
	users    UserStore
	invites  InviteStore
	tasks    TaskStore
	tx       TxRunner
	audit    *auditlog.Logger
	log      *zap.Logger
	cfg      Config
}

// New builds a Service.
func New(d Deps, cfg Config) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.ReadBackoff <= 0 {
		cfg.ReadBackoff = DefaultReadBackoff
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	tx := d.Tx
	if tx == nil {
		tx = directRunner{}
	}
	return &Service{
		projects: d.Projects,
		users:    d.Users,
		invites:  d.Invites,
		tasks:    d.Tasks,
		tx:       tx,
		audit:    d.Audit,
		log:      log,
		cfg:      cfg,
	}
}

type directRunner struct{}

func (directRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (s *Service) now() time.Time {
	return s.cfg.Now().UTC()
}

// storageErr maps store errors into the service's taxonomy. Version
// conflicts pass through untouched so the retry loop can see them.
func storageErr(what string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, projectstore.ErrNotFound):
		return projectpolicy.ErrProjectNotFound
	case errors.Is(err, projectstore.ErrVersionConflict):
		return err
	default:
		return fmt.Errorf("%w: %s: %w", ErrStorageFailure, what, err)
	}
}

// Load returns a live project snapshot. A failed read is retried once after
// a short pause; a missing or deleting project is ErrProjectNotFound.
func (s *Service) Load(ctx context.Context, projectID primitive.ObjectID) (models.Project, error) {
	p, err := s.read(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if err := projectpolicy.RequireLive(&p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// read loads the project whether or not a cascade delete has started.
func (s *Service) read(ctx context.Context, projectID primitive.ObjectID) (models.Project, error) {
	p, err := s.projects.GetByID(ctx, projectID)
	if err != nil && !errors.Is(err, projectstore.ErrNotFound) {
		s.log.Warn("project read failed; retrying once",
			zap.String("project_id", projectID.Hex()), zap.Error(err))
		select {
		case <-ctx.Done():
			return models.Project{}, storageErr("load project", ctx.Err())
		case <-time.After(s.cfg.ReadBackoff):
		}
		p, err = s.projects.GetByID(ctx, projectID)
	}
	if err != nil {
		return models.Project{}, storageErr("load project", err)
	}
	return p, nil
}

// GetForMember returns the project if userID is one of its members.
func (s *Service) GetForMember(ctx context.Context, projectID, userID primitive.ObjectID) (models.Project, error) {
	p, err := s.Load(ctx, projectID)
	if err != nil {
		return models.Project{}, err
	}
	if _, err := projectpolicy.RequireMember(&p, userID); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// withRetry runs attempt against fresh snapshots until it returns something
// other than a version conflict, or MaxAttempts is reached.
func (s *Service) withRetry(ctx context.Context, op string, projectID primitive.ObjectID, attempt func(p models.Project) error) error {
	for i := 1; i <= s.cfg.MaxAttempts; i++ {
		p, err := s.Load(ctx, projectID)
		if err != nil {
			return err
		}
		err = attempt(p)
		if !errors.Is(err, projectstore.ErrVersionConflict) {
			return err
		}
		metrics.RecordConflict(op)
		s.log.Debug("version conflict; reloading project",
			zap.String("operation", op),
			zap.String("project_id", projectID.Hex()),
			zap.Int("attempt", i))
	}
	s.log.Warn("giving up after repeated version conflicts",
		zap.String("operation", op),
		zap.String("project_id", projectID.Hex()),
		zap.Int("attempts", s.cfg.MaxAttempts))
	return ErrConcurrentUpdate
}

// finish records the outcome of op and, for guard failures, an audit event.
func (s *Service) finish(ctx context.Context, op string, actorID, projectID primitive.ObjectID, target *primitive.ObjectID, err error) error {
	switch {
	case err == nil:
		metrics.RecordOperation(op, metrics.OutcomeOK)
	case IsDenied(err):
		metrics.RecordOperation(op, metrics.OutcomeDenied)
		if !projectID.IsZero() && !errors.Is(err, projectpolicy.ErrProjectNotFound) {
			s.audit.MembershipDenied(ctx, actorID, projectID, target, op, err)
		}
	default:
		metrics.RecordOperation(op, metrics.OutcomeFailure)
		s.log.Error("membership operation failed",
			zap.String("operation", op),
			zap.String("project_id", projectID.Hex()),
			zap.Error(err))
	}
	return err
}

// IsDenied reports whether err is a guard rejection rather than a failure.
func IsDenied(err error) bool {
	for _, target := range []error{
		projectpolicy.ErrProjectNotFound,
		projectpolicy.ErrNotAMember,
		projectpolicy.ErrNotAdministrator,
		projectpolicy.ErrMemberNotFound,
		projectpolicy.ErrAlreadyMember,
		projectpolicy.ErrIsOwner,
		projectpolicy.ErrLastAdministrator,
		projectpolicy.ErrRoleNotFound,
		projectpolicy.ErrInvalidInvite,
		projectpolicy.ErrRoleNotPermitted,
		projectpolicy.ErrInviteLinksDisabled,
		ErrNameRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
