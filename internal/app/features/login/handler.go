// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/collabhub/internal/app/features/errors"
	userstore "github.com/dalemusser/collabhub/internal/app/store/users"
	"github.com/dalemusser/collabhub/internal/app/system/apiresp"
	"github.com/dalemusser/collabhub/internal/app/system/auditlog"
	"github.com/dalemusser/collabhub/internal/app/system/auth"
	"github.com/dalemusser/collabhub/internal/app/system/inputval"
	"github.com/dalemusser/collabhub/internal/app/system/normalize"
	"github.com/dalemusser/collabhub/internal/app/system/ratelimit"
	"github.com/dalemusser/collabhub/internal/app/system/timeouts"
	"github.com/dalemusser/collabhub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost for password hashes.
const BcryptCost = 12

// UserStore is the account directory the handler reads and writes.
type UserStore interface {
	Create(ctx context.Context, u models.User) (models.User, error)
	GetByEmail(ctx context.Context, email string) (models.User, error)
}

// Handler serves account registration and sign-in.
type Handler struct {
	Users      UserStore
	SessionMgr *auth.SessionManager
	Limiter    *ratelimit.LoginLimiter
	Audit      *auditlog.Logger
	Log        *zap.Logger
}

// NewHandler constructs a login Handler. A nil limiter disables throttling.
func NewHandler(users UserStore, sessionMgr *auth.SessionManager, limiter *ratelimit.LoginLimiter, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Users:      users,
		SessionMgr: sessionMgr,
		Limiter:    limiter,
		Audit:      audit,
		Log:        logger,
	}
}

type registerInput struct {
	FullName string `json:"full_name" validate:"required,max=200" label:"Full name"`
	Email    string `json:"email" validate:"required,email,max=254" label:"Email"`
	Password string `json:"password" validate:"required,min=8,max=72" label:"Password"`
}

type loginInput struct {
	Email    string `json:"email" validate:"required" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

// HandleRegister handles POST /api/auth/register. The new account is signed
// in on success.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := apiresp.DecodeBody(r, &in); err != nil {
		apierrors.BadRequest(w, "Request body must be a JSON object.")
		return
	}
	in.FullName = normalize.Name(in.FullName)
	in.Email = normalize.Email(in.Email)
	if res := inputval.Validate(in); res.HasErrors() {
		apierrors.BadRequest(w, res.First())
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), BcryptCost)
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "register")
	defer cancel()

	u, err := h.Users.Create(ctx, models.User{
		FullName:     in.FullName,
		Email:        in.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	h.Audit.UserRegistered(ctx, u.ID, u.Email)

	if err := h.signIn(w, r, u); err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	apiresp.OK(w, http.StatusCreated, map[string]any{"user": u})
}

// HandleLogin handles POST /api/auth/login.
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := apiresp.DecodeBody(r, &in); err != nil {
		apierrors.BadRequest(w, "Request body must be a JSON object.")
		return
	}
	in.Email = normalize.Email(in.Email)
	if res := inputval.Validate(in); res.HasErrors() {
		apierrors.BadRequest(w, res.First())
		return
	}

	if h.Limiter != nil {
		if ok, reason := h.Limiter.Check(r, in.Email); !ok {
			apiresp.Error(w, http.StatusTooManyRequests, "rate_limited", reason)
			return
		}
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "login")
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, in.Email)
	if errors.Is(err, userstore.ErrNotFound) {
		h.Audit.LoginFailedUserNotFound(ctx, in.Email)
		h.invalidCredentials(w)
		return
	}
	if err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	if u.Status != "" && u.Status != userstore.StatusActive {
		h.invalidCredentials(w)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		h.Audit.LoginFailedWrongPassword(ctx, u.ID)
		h.invalidCredentials(w)
		return
	}

	if h.Limiter != nil {
		if err := h.Limiter.ResetEmail(ctx, in.Email); err != nil {
			h.Log.Warn("login limiter reset failed", zap.Error(err))
		}
	}
	if err := h.signIn(w, r, u); err != nil {
		apierrors.Write(w, r, h.Log, err)
		return
	}
	h.Audit.LoginSuccess(ctx, u.ID, u.Email)
	apiresp.OK(w, http.StatusOK, map[string]any{"user": u})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, u models.User) error {
	return h.SessionMgr.SignIn(w, r, &auth.SessionUser{
		ID:    u.ID.Hex(),
		Name:  u.FullName,
		Email: u.Email,
	})
}

// invalidCredentials does not say which half of the pair was wrong.
func (h *Handler) invalidCredentials(w http.ResponseWriter) {
	apiresp.Error(w, http.StatusUnauthorized, "invalid_credentials", "Email or password is incorrect.")
}
