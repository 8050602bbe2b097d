// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"

	"github.com/VarshithSidhoju/sign-loginfull/internal/auth"
	"github.com/VarshithSidhoju/sign-loginfull/internal/observability"
)

// AuthService is the subset of *auth.Service the handlers call.
type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*auth.AuthResult, error)
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
	GetProfile(ctx context.Context, userID ulid.ULID) (*auth.Profile, error)
	UpdateProfile(ctx context.Context, userID ulid.ULID, update auth.ProfileUpdate) (*auth.Profile, error)
	ListUsers(ctx context.Context) ([]auth.Profile, error)
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateProfileRequest struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
}

type handlers struct {
	svc     AuthService
	metrics *observability.Metrics
	logger  *slog.Logger
}

func (h *handlers) register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req, "name, email and password are required") {
		h.metrics.RecordRegistration(observability.OutcomeInvalid)
		return
	}

	result, err := h.svc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		h.metrics.RecordRegistration(registrationOutcome(err))
		abortWithError(c, h.logger, err)
		return
	}

	h.metrics.RecordRegistration(observability.OutcomeSuccess)
	h.logger.InfoContext(c.Request.Context(), "user registered", "user_id", result.User.ID)
	c.JSON(http.StatusCreated, result)
}

func (h *handlers) login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req, "email and password are required") {
		h.metrics.RecordLogin(observability.OutcomeInvalid)
		return
	}

	result, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if auth.KindOf(err) == auth.KindAuth {
			h.metrics.RecordLogin(observability.OutcomeInvalidCredentials)
		} else {
			h.metrics.RecordLogin(observability.OutcomeError)
		}
		abortWithError(c, h.logger, err)
		return
	}

	h.metrics.RecordLogin(observability.OutcomeSuccess)
	c.JSON(http.StatusOK, result)
}

func (h *handlers) getProfile(c *gin.Context) {
	userID, ok := UserIDFrom(c.Request.Context())
	if !ok {
		abortWithMessage(c, http.StatusUnauthorized, msgNotAuthorized)
		return
	}

	profile, err := h.svc.GetProfile(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *handlers) updateProfile(c *gin.Context) {
	userID, ok := UserIDFrom(c.Request.Context())
	if !ok {
		abortWithMessage(c, http.StatusUnauthorized, msgNotAuthorized)
		return
	}

	var req updateProfileRequest
	if !bindJSON(c, &req, "invalid request body") {
		return
	}

	profile, err := h.svc.UpdateProfile(c.Request.Context(), userID, auth.ProfileUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *handlers) listUsers(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// bindJSON decodes the body into v. Oversized bodies get 413; anything else
// that fails to bind gets 400 with msg.
func bindJSON(c *gin.Context, v any, msg string) bool {
	err := c.ShouldBindJSON(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		abortWithMessage(c, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
		return false
	}
	abortWithMessage(c, http.StatusBadRequest, msg)
	return false
}

func registrationOutcome(err error) string {
	switch {
	case auth.ErrorCode(err) == auth.CodeEmailTaken:
		return observability.OutcomeEmailTaken
	case auth.KindOf(err) == auth.KindValidation:
		return observability.OutcomeInvalid
	default:
		return observability.OutcomeError
	}
}
