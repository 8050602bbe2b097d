// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/VarshithSidhoju/sign-loginfull/internal/auth"
	"github.com/VarshithSidhoju/sign-loginfull/internal/observability"
)

type userIDKey struct{}

// WithUserID returns a copy of ctx carrying id.
func WithUserID(ctx context.Context, id ulid.ULID) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}

// UserIDFrom returns the user id stored by RequireAuth.
func UserIDFrom(ctx context.Context) (ulid.ULID, bool) {
	id, ok := ctx.Value(userIDKey{}).(ulid.ULID)
	return id, ok
}

// RequireAuth rejects requests without a valid bearer token. Every failure
// gets the same 401 body. On success the user id is available through
// UserIDFrom on the request context.
func RequireAuth(verifier auth.TokenVerifier, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			metrics.RecordTokenRejection(strings.ToLower(auth.CodeTokenMissing))
			abortWithMessage(c, http.StatusUnauthorized, msgNotAuthorized)
			return
		}

		userID, err := verifier.Verify(token)
		if err != nil {
			metrics.RecordTokenRejection(rejectionReason(err))
			abortWithMessage(c, http.StatusUnauthorized, msgNotAuthorized)
			return
		}

		c.Request = c.Request.WithContext(WithUserID(c.Request.Context(), userID))
		c.Next()
	}
}

// bearerToken extracts the token from an Authorization header. The scheme
// is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func rejectionReason(err error) string {
	if code := auth.ErrorCode(err); strings.HasPrefix(code, "TOKEN_") {
		return strings.ToLower(code)
	}
	return "token_invalid"
}

// accessLog logs one line per request after it completes.
func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"route", routeLabel(c),
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		if id, ok := UserIDFrom(c.Request.Context()); ok {
			attrs = append(attrs, "user_id", id.String())
		}

		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request", attrs...)
	}
}

// instrument records request counts and latency by route template.
func instrument(metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.ObserveRequest(c.Request.Method, routeLabel(c), c.Writer.Status(), time.Since(start))
	}
}

// routeLabel keeps metric cardinality bounded: unmatched paths share a label.
func routeLabel(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// corsPolicy builds the CORS middleware for origins. "*" allows any origin;
// other origins must be full http or https origins.
func corsPolicy(origins []string) (gin.HandlerFunc, error) {
	cfg := cors.Config{
		AllowMethods:              []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders:              []string{"Authorization", "Content-Type"},
		MaxAge:                    10 * time.Minute,
		OptionsResponseStatusCode: http.StatusNoContent,
	}
	if slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	if err := cfg.Validate(); err != nil {
		return nil, oops.Code("HTTPAPI_CONFIG_INVALID").
			With("cors_origins", origins).
			Wrap(err)
	}
	return cors.New(cfg), nil
}

// limitBody caps request bodies at n bytes. Reads past the limit fail with
// *http.MaxBytesError.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		}
		c.Next()
	}
}

// recovery turns panics into the generic 500 body.
func recovery(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, rec any) {
		logger.ErrorContext(c.Request.Context(), "panic serving request",
			"panic", rec,
			"method", c.Request.Method,
			"path", c.Request.URL.Path)
		abortWithMessage(c, http.StatusInternalServerError, msgServerError)
	})
}
