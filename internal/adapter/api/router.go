package api

import (
	"log/slog"
	"net/http"

	"github.com/torqsys/tenantd/internal/adapter/api/handler"
	"github.com/torqsys/tenantd/internal/adapter/api/middleware"
)

// NewRouter creates and configures the HTTP router for the session surface.
func NewRouter(
	jwtSecret string,
	logger *slog.Logger,
	sessionHandler *handler.SessionHandler,
	impersonationHandler *handler.ImpersonationHandler,
) http.Handler {
	mux := http.NewServeMux()

	authMiddleware := middleware.Auth(jwtSecret, logger)

	mux.Handle("GET /v1/session/context", authMiddleware(http.HandlerFunc(sessionHandler.GetContext)))
	mux.Handle("POST /v1/session/retry", authMiddleware(http.HandlerFunc(sessionHandler.Retry)))
	mux.Handle("DELETE /v1/session", authMiddleware(http.HandlerFunc(sessionHandler.SignOut)))
	mux.Handle("POST /v1/session/impersonation", authMiddleware(http.HandlerFunc(impersonationHandler.Start)))
	mux.Handle("DELETE /v1/session/impersonation", authMiddleware(http.HandlerFunc(impersonationHandler.Stop)))

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return mux
}
