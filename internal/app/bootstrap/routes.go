// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	auditlogfeature "github.com/dalemusser/collabhub/internal/app/features/auditlog"
	healthfeature "github.com/dalemusser/collabhub/internal/app/features/health"
	invitesfeature "github.com/dalemusser/collabhub/internal/app/features/invites"
	loginfeature "github.com/dalemusser/collabhub/internal/app/features/login"
	logoutfeature "github.com/dalemusser/collabhub/internal/app/features/logout"
	membersfeature "github.com/dalemusser/collabhub/internal/app/features/members"
	projectsfeature "github.com/dalemusser/collabhub/internal/app/features/projects"
	rolesfeature "github.com/dalemusser/collabhub/internal/app/features/roles"
	settingsfeature "github.com/dalemusser/collabhub/internal/app/features/settings"
	tasksfeature "github.com/dalemusser/collabhub/internal/app/features/tasks"
	userinfofeature "github.com/dalemusser/collabhub/internal/app/features/userinfo"
	"github.com/dalemusser/collabhub/internal/app/system/apiresp"
	"github.com/dalemusser/collabhub/internal/app/system/auditlog"
	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"github.com/dalemusser/collabhub/internal/app/system/metrics"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// Every API route answers JSON. Per-project features are mounted under
// /api/projects/{id}/...; chi prefers those static segments over the
// projects router's own /{id} routes.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if svc == nil {
		return nil, errors.New("BuildHandler called before Startup")
	}

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	return newRouter(svc, sessionMgr, deps, logger), nil
}

func newRouter(s *services, sessionMgr *auth.SessionManager, deps DBDeps, logger *zap.Logger) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(auditlog.Middleware)
	r.Use(metrics.Middleware)

	// Loads SessionUser into context if signed in; handlers read it via
	// auth.CurrentUser(r).
	r.Use(sessionMgr.LoadSessionUser)

	r.Mount("/health", healthfeature.Routes(healthfeature.NewHandler(deps.CollabHubMongoClient, deps.Redis, logger)))
	r.Handle("/metrics", metrics.Handler())

	// Accounts
	r.Mount("/api/auth", loginfeature.Routes(loginfeature.NewHandler(s.users, sessionMgr, s.loginLimiter, s.audit, logger)))
	r.Mount("/api/auth/logout", logoutfeature.Routes(logoutfeature.NewHandler(sessionMgr, s.audit, logger)))
	r.Mount("/api/auth/me", userinfofeature.Routes(userinfofeature.NewHandler(s.users, logger)))

	r.Mount("/api/roles", rolesfeature.Routes(rolesfeature.NewHandler(s.roles, logger)))

	// Projects and their members
	r.Mount("/api/projects", projectsfeature.Routes(projectsfeature.NewHandler(s.membership, s.projects, s.users, logger)))

	membersHandler := membersfeature.NewHandler(s.membership, logger)
	r.Mount("/api/projects/{id}/members", membersfeature.Routes(membersHandler))
	r.Mount("/api/projects/{id}/leave", membersfeature.LeaveRoutes(membersHandler))
	r.Mount("/api/projects/{id}/settings", settingsfeature.Routes(settingsfeature.NewHandler(s.membership, logger)))

	invitesHandler := invitesfeature.NewHandler(s.membership, s.redeemLimiter, logger)
	r.Mount("/api/projects/{id}/invite", invitesfeature.ProjectRoutes(invitesHandler))
	r.Mount("/api/invites", invitesfeature.RedeemRoutes(invitesHandler))

	r.Mount("/api/projects/{id}/tasks", tasksfeature.Routes(tasksfeature.NewHandler(s.projectTasks, logger)))
	r.Mount("/api/projects/{id}/audit", auditlogfeature.Routes(auditlogfeature.NewHandler(s.membership, s.events, s.users, logger)))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		apiresp.Error(w, http.StatusNotFound, "not_found", "No such endpoint.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		apiresp.Error(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed.")
	})
	return r
}
