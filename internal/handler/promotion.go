package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/campushub/classroom-reservation/internal/config"
	"github.com/campushub/classroom-reservation/internal/mailer"
	"github.com/campushub/classroom-reservation/internal/middleware"
	"github.com/campushub/classroom-reservation/internal/model"
)

// PromotionHandler files manager-upgrade requests.  Decisions happen over
// the signed links mailed to the administrator.
type PromotionHandler struct {
	Cfg        config.Config
	Students   StudentStore
	Promotions PromotionStore
	Links      *LinkBuilder
	Mail       MailQueue
	Log        *zap.Logger
}

type promotionReq struct {
	Reason string `json:"reason" validate:"required,min=10,max=500"`
}

// Apply handles POST /v1/promotion.  One pending request at a time, and a
// rejection is final.
func (h *PromotionHandler) Apply(c echo.Context) error {
	var req promotionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	student, err := h.Students.GetByID(ctx, middleware.StudentID(c))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load account failed"})
	}
	if student.Role != model.RoleUser {
		return c.JSON(http.StatusConflict, echo.Map{"error": "account already has an elevated role"})
	}
	if student.Status == model.StudentStatusBlacklist {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "account blocked"})
	}

	if pending, err := h.Promotions.HasPending(ctx, student.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	} else if pending {
		return c.JSON(http.StatusConflict, echo.Map{"error": "a request is already waiting for review"})
	}
	if rejected, err := h.Promotions.HasRejected(ctx, student.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	} else if rejected {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "a rejected request may not be repeated"})
	}

	request, err := h.Promotions.Create(ctx, student.ID, req.Reason)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create request failed"})
	}

	msg := mailer.PromotionRequestMail(h.Cfg.AdminEmail, student.StudentNo, request.Reason,
		h.Links.PromotionAction(student.ID, actionPromote),
		h.Links.PromotionAction(student.ID, actionReject))
	if err := h.Mail.Publish(ctx, msg); err != nil {
		h.Log.Warn("promotion mail enqueue failed", zap.Uint64("request_id", request.ID), zap.Error(err))
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"id":         request.ID,
		"status":     request.Status,
		"created_at": request.CreatedAt.Format(time.RFC3339),
	})
}
