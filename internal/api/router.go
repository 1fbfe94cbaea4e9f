package api

import (
	"net/http"
	"time"

	"bank_ledger/internal/api/handler"
	"bank_ledger/internal/api/middleware"
	"bank_ledger/internal/app/service"
	"bank_ledger/internal/common"
	"bank_ledger/internal/common/security"
	"bank_ledger/internal/platform/idempotency"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth/v5"
)

type RouterDeps struct {
	AuthService   *service.AuthService
	LedgerService *service.LedgerService
	Tokens        *security.TokenIssuer
	Idempotency   *idempotency.Guard
	Callers       middleware.CallerResolver
	// RequestTimeout bounds each request. Zero disables the timeout middleware.
	RequestTimeout time.Duration
}

func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger) // Chi's logger
	r.Use(chiMiddleware.Recoverer)
	if deps.RequestTimeout > 0 {
		r.Use(chiMiddleware.Timeout(deps.RequestTimeout))
	}

	// Bearer tokens are optional; a valid one identifies the caller.
	r.Use(jwtauth.Verifier(deps.Tokens.JWTAuth()))
	r.Use(middleware.Authenticator)

	health := func(w http.ResponseWriter, r *http.Request) {
		common.RespondWithJSON(w, http.StatusOK, map[string]string{"status": "Bank backend is running"})
	}
	r.Get("/", health)
	r.Get("/health", health)

	handler.NewAuthHandler(deps.AuthService).RegisterRoutes(r)
	handler.NewLedgerHandler(deps.LedgerService, deps.Idempotency, deps.Callers).RegisterRoutes(r)
	r.Route("/admin", handler.NewAdminHandler(deps.LedgerService, deps.Callers).RegisterRoutes)

	return r
}
