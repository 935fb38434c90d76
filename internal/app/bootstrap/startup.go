// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"time"

	"github.com/dalemusser/collabhub/internal/app/store/audit"
	invitestore "github.com/dalemusser/collabhub/internal/app/store/invites"
	projectstore "github.com/dalemusser/collabhub/internal/app/store/projects"
	rolestore "github.com/dalemusser/collabhub/internal/app/store/roles"
	taskstore "github.com/dalemusser/collabhub/internal/app/store/tasks"
	userstore "github.com/dalemusser/collabhub/internal/app/store/users"
	"github.com/dalemusser/collabhub/internal/app/system/auditlog"
	"github.com/dalemusser/collabhub/internal/app/system/membership"
	"github.com/dalemusser/collabhub/internal/app/system/projecttasks"
	"github.com/dalemusser/collabhub/internal/app/system/ratelimit"
	"github.com/dalemusser/collabhub/internal/app/system/tasks"
	"github.com/dalemusser/collabhub/internal/app/system/timeouts"
	"github.com/dalemusser/collabhub/internal/app/system/txn"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// services are built once in Startup and shared by BuildHandler and
// Shutdown.
type services struct {
	users    *userstore.Store
	projects *projectstore.Store
	roles    *rolestore.Store
	events   *audit.Store

	audit        *auditlog.Logger
	membership   *membership.Service
	projectTasks *projecttasks.Service

	loginLimiter  *ratelimit.LoginLimiter
	redeemLimiter ratelimit.KeyLimiter

	scheduler *tasks.Scheduler
}

var svc *services

// Sign-in throttles: attempts per client IP and per account email.
const (
	loginIPLimit     = 10
	loginIPPeriod    = time.Minute
	loginEmailLimit  = 5
	loginEmailPeriod = 5 * time.Minute
)

// Startup applies timeouts, builds stores and services, and starts the
// background jobs.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Ping:   appCfg.TimeoutPing,
		Short:  appCfg.TimeoutShort,
		Medium: appCfg.TimeoutMedium,
		Long:   appCfg.TimeoutLong,
	})

	s, err := buildServices(appCfg, deps, logger)
	if err != nil {
		return err
	}
	s.scheduler.Start()
	svc = s
	return nil
}

func buildServices(appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*services, error) {
	db := deps.CollabHubMongoDatabase
	s := &services{
		users:    userstore.New(db),
		projects: projectstore.New(db),
		roles:    rolestore.New(db),
		events:   audit.New(db),
	}
	invites := invitestore.New(db)
	taskStore := taskstore.New(db)

	s.audit = auditlog.New(s.events, logger, auditlog.Config{
		Auth:       appCfg.AuditLogAuth,
		Membership: appCfg.AuditLogMembership,
	})
	s.membership = membership.New(membership.Deps{
		Projects: s.projects,
		Users:    s.users,
		Invites:  invites,
		Tasks:    taskStore,
		Tx:       txn.New(deps.CollabHubMongoClient, logger),
		Audit:    s.audit,
		Log:      logger,
	}, membership.Config{
		MaxAttempts: appCfg.MutationMaxAttempts,
		InviteTTL:   appCfg.InviteTTL,
	})
	s.projectTasks = projecttasks.New(s.membership, taskStore, s.projects, s.audit, logger)

	if deps.Redis != nil {
		s.loginLimiter = ratelimit.NewLoginLimiter(
			ratelimit.NewRedis(deps.Redis, "collabhub:login:ip:", loginIPLimit, loginIPPeriod, logger),
			ratelimit.NewRedis(deps.Redis, "collabhub:login:email:", loginEmailLimit, loginEmailPeriod, logger),
		)
		s.redeemLimiter = ratelimit.NewRedis(deps.Redis, "collabhub:redeem:",
			appCfg.InviteRedeemLimit, appCfg.InviteRedeemWindow, logger)
	} else {
		s.loginLimiter = ratelimit.NewMemoryLoginLimiter(loginIPLimit, loginIPPeriod, loginEmailLimit, loginEmailPeriod)
		s.redeemLimiter = ratelimit.New(appCfg.InviteRedeemLimit, appCfg.InviteRedeemWindow)
	}

	s.scheduler = tasks.NewScheduler(logger)
	for _, job := range []tasks.Job{
		tasks.DeletionSweeperJob(s.membership, logger, appCfg.DeletionSweepInterval, appCfg.DeletionStallThreshold),
		tasks.InvitePurgeJob(s.membership, logger, appCfg.InvitePurgeInterval),
		tasks.DocumentStatsJob(db, appCfg.DocumentStatsInterval),
	} {
		if err := s.scheduler.Add(job); err != nil {
			s.stopLimiters()
			return nil, err
		}
	}
	return s, nil
}

func (s *services) stopLimiters() {
	s.loginLimiter.Stop()
	ratelimit.Stop(s.redeemLimiter)
}
