package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/campushub/classroom-reservation/internal/config"
	"github.com/campushub/classroom-reservation/internal/mailer"
	"github.com/campushub/classroom-reservation/internal/middleware"
	"github.com/campushub/classroom-reservation/internal/model"
	"github.com/campushub/classroom-reservation/internal/repository"
	"github.com/campushub/classroom-reservation/internal/utils"
)

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
	Cfg      config.Config
	Students StudentStore
	Tokens   TokenStore
	Links    *LinkBuilder
	Mail     MailQueue
	Log      *zap.Logger
}

func NewAuthHandler(cfg config.Config, s StudentStore, t TokenStore, links *LinkBuilder, mail MailQueue, log *zap.Logger) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Students: s, Tokens: t, Links: links, Mail: mail, Log: log}
}

// ----- DTOs -----

type registerReq struct {
	StudentNo string `json:"student_no" validate:"required,min=4,max=32"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
}
type loginReq struct {
	StudentNo string `json:"student_no" validate:"required"`
	Password  string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}
type resetReq struct {
	StudentNo   string `json:"student_no" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type studentPart struct {
	ID        uint64 `json:"id"`
	StudentNo string `json:"student_no"`
	Role      string `json:"role"`
}
type authResp struct {
	Student studentPart `json:"student"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

func (h *AuthHandler) issueTokens(ctx context.Context, s model.Student) (*authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, s.ID, s.StudentNo, s.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return nil, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return nil, err
	}
	if err := h.Tokens.StoreRefresh(ctx, s.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return nil, err
	}
	return &authResp{
		Student: studentPart{ID: s.ID, StudentNo: s.StudentNo, Role: s.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp},
	}, nil
}

// Register creates an account for a student number, or activates the
// placeholder an administrator's direct booking left behind.  Placeholder
// activation keeps the reservations already booked under the number.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	req.StudentNo = strings.TrimSpace(req.StudentNo)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	existing, err := h.Students.GetByStudentNo(ctx, req.StudentNo)
	switch {
	case err == nil && existing.AutoCreated:
		if existing.Status == model.StudentStatusBlacklist {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "account blocked"})
		}
		if err := h.Students.SetPassword(ctx, existing.ID, req.Password, h.Cfg.BcryptCost, true); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "activate account failed"})
		}
		existing.AutoCreated = false
	case err == nil:
		return c.JSON(http.StatusConflict, echo.Map{"error": "student number already registered"})
	case errors.Is(err, sql.ErrNoRows):
		id, err := h.Students.Create(ctx, req.StudentNo, req.Password, h.Cfg.BcryptCost)
		if err != nil {
			if errors.Is(err, repository.ErrStudentExists) {
				return c.JSON(http.StatusConflict, echo.Map{"error": "student number already registered"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create account failed"})
		}
		existing, err = h.Students.GetByID(ctx, id)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
		}
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}

	resp, err := h.issueTokens(ctx, existing)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies credentials and returns a fresh token pair.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Students.GetByStudentNo(ctx, strings.TrimSpace(req.StudentNo))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if s.Status == model.StudentStatusBlacklist {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account blocked"})
	}
	if s.AutoCreated && s.PasswordHash == "" {
		// Placeholder left by an admin direct booking: the first login sets
		// the password and activates the account.
		if err := h.Students.SetPassword(ctx, s.ID, req.Password, h.Cfg.BcryptCost, true); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "activate account failed"})
		}
		s.AutoCreated = false
	} else if !utils.VerifyPassword(s.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	resp, err := h.issueTokens(ctx, s)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Refresh validates the presented refresh token by hash, revokes it and
// issues a new pair.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	studentID, err := h.Tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	_ = h.Tokens.RevokeByHash(ctx, hash)

	s, err := h.Students.GetByID(ctx, studentID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	if s.Status == model.StudentStatusBlacklist {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account blocked"})
	}

	resp, err := h.issueTokens(ctx, s)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the presented refresh token, or with only a bearer token
// every session of the caller.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	refreshToken := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if refreshToken != "" {
		hash := utils.HashRefreshRaw(refreshToken)
		if _, err := h.Tokens.ValidateRefresh(ctx, hash); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}

	if id := middleware.StudentID(c); id != 0 {
		if err := h.Tokens.RevokeAllForStudent(ctx, id); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide refresh_token or Authorization header"})
}

// Me returns the caller's account as seen by the server.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Students.GetByID(ctx, middleware.StudentID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"id":         s.ID,
		"student_no": s.StudentNo,
		"email":      s.Email(h.Cfg.EmailDomain),
		"role":       s.Role,
		"status":     s.Status,
	})
}

// RequestPasswordReset mails a signed confirmation link that, when opened,
// applies the new password.  The response never reveals whether the
// student number exists.
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	resp := echo.Map{"message": "if the account exists, a confirmation mail was sent"}

	s, err := h.Students.GetByStudentNo(ctx, strings.TrimSpace(req.StudentNo))
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			h.Log.Warn("reset lookup failed", zap.Error(err))
		}
		return c.JSON(http.StatusOK, resp)
	}
	if s.Status == model.StudentStatusBlacklist || s.AutoCreated {
		return c.JSON(http.StatusOK, resp)
	}

	link := h.Links.ResetConfirm(s.ID, req.NewPassword)
	msg := mailer.PasswordReset(s.Email(h.Cfg.EmailDomain), link)
	if err := h.Mail.Publish(ctx, msg); err != nil {
		h.Log.Warn("reset mail enqueue failed", zap.Uint64("student_id", s.ID), zap.Error(err))
	}
	return c.JSON(http.StatusOK, resp)
}
