package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ecs-alert/ecs-alert/internal/config"
	"github.com/ecs-alert/ecs-alert/internal/middleware"
)

// NewRouter mounts every route behind request IDs, access logging and JWT auth.
// /health and /auth/login stay open.
func NewRouter(version string, db Pinger, store AlertReader, jwtAuth *middleware.JWTAuth, logger logrus.FieldLogger) http.Handler {
	mux := http.NewServeMux()
	NewHTTPHandler(version, db).SetupRoutes(mux)
	NewAuthHandler(jwtAuth, logger).SetupRoutes(mux)
	NewAlertsHandler(store, logger).SetupRoutes(mux)

	return middleware.RequestIDMiddleware(middleware.AccessLog(logger)(jwtAuth.Wrap(mux)))
}

// PublicPaths are served without a bearer token
var PublicPaths = []string{"/health", "/auth/login"}

// NewServer builds the reporting API server for cfg
func NewServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
