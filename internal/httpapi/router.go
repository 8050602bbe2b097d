// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

// Package httpapi exposes the authentication service as a JSON HTTP API.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/VarshithSidhoju/sign-loginfull/internal/auth"
	"github.com/VarshithSidhoju/sign-loginfull/internal/observability"
)

// Deps wires the router.
type Deps struct {
	Service  AuthService
	Verifier auth.TokenVerifier
	// Metrics may be nil.
	Metrics *observability.Metrics
	// Logger defaults to slog.Default.
	Logger *slog.Logger
	// CORSOrigins lists browser origins allowed to call the API.
	CORSOrigins []string
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// MaxBodyBytes is the largest request body the API reads.
const MaxBodyBytes = 1 << 20

// NewRouter builds the gin engine serving /api. The caller sets the gin
// mode before calling.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Service == nil {
		return nil, oops.Code("HTTPAPI_CONFIG_INVALID").Errorf("auth service is required")
	}
	if deps.Verifier == nil {
		return nil, oops.Code("HTTPAPI_CONFIG_INVALID").Errorf("token verifier is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tp := deps.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(traceRequests(tp), recovery(logger), accessLog(logger), instrument(deps.Metrics), limitBody(MaxBodyBytes))
	if len(deps.CORSOrigins) > 0 {
		policy, err := corsPolicy(deps.CORSOrigins)
		if err != nil {
			return nil, err
		}
		r.Use(policy)
	}

	h := &handlers{svc: deps.Service, metrics: deps.Metrics, logger: logger}

	api := r.Group("/api")
	api.POST("/auth/register", h.register)
	api.POST("/auth/login", h.login)

	users := api.Group("/users", RequireAuth(deps.Verifier, deps.Metrics))
	users.GET("/profile", h.getProfile)
	users.PUT("/profile", h.updateProfile)
	users.GET("", h.listUsers)

	r.NoRoute(func(c *gin.Context) {
		abortWithMessage(c, http.StatusNotFound, msgNotFound)
	})
	r.NoMethod(func(c *gin.Context) {
		abortWithMessage(c, http.StatusMethodNotAllowed, msgMethodNotAllowed)
	})

	return r, nil
}
