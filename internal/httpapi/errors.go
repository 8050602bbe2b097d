// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VarshithSidhoju/sign-loginfull/internal/auth"
	"github.com/VarshithSidhoju/sign-loginfull/pkg/errutil"
)

// Public messages. Auth and token failures never say which check failed.
const (
	msgNotAuthorized      = "not authorized"
	msgInvalidCredentials = "invalid email or password"
	msgUserNotFound       = "user not found"
	msgServerError        = "server error"
	msgNotFound           = "not found"
	msgMethodNotAllowed   = "method not allowed"
	msgBodyTooLarge       = "request body too large"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Message string `json:"message"`
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind auth.Kind) int {
	switch kind {
	case auth.KindValidation:
		return http.StatusBadRequest
	case auth.KindAuth, auth.KindToken:
		return http.StatusUnauthorized
	case auth.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the text shown to the caller. Validation messages are
// specific; everything else is generic.
func messageFor(kind auth.Kind, err error) string {
	switch kind {
	case auth.KindValidation:
		return err.Error()
	case auth.KindAuth:
		return msgInvalidCredentials
	case auth.KindToken:
		return msgNotAuthorized
	case auth.KindNotFound:
		return msgUserNotFound
	default:
		return msgServerError
	}
}

// abortWithError writes the response for err. Internal errors are logged
// with their full oops context; the caller only sees "server error".
func abortWithError(c *gin.Context, logger *slog.Logger, err error) {
	kind := auth.KindOf(err)
	if kind == auth.KindInternal {
		errutil.LogError(c.Request.Context(), logger, "request failed", err,
			"method", c.Request.Method,
			"route", c.FullPath())
	}
	_ = c.Error(err) //nolint:errcheck // recorded for the access log
	c.AbortWithStatusJSON(statusFor(kind), errorBody{Message: messageFor(kind, err)})
}

func abortWithMessage(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorBody{Message: msg})
}
