package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"bank_ledger/internal/common"
	"bank_ledger/internal/common/security"

	"github.com/go-chi/jwtauth/v5"
)

type contextKey string

const (
	UserIDCtxKey   contextKey = "userID"
	UserRoleCtxKey contextKey = "userRole"
)

// Authenticator stores the identity of a verified bearer token in the request
// context. Requests without a token pass through untouched; requests with a
// bad token are rejected.
func Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context()) // Set by jwtauth.Verifier

		if errors.Is(err, jwtauth.ErrNoTokenFound) || (err == nil && token == nil) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token: "+err.Error())
			return
		}

		userID, err := security.GetUserIDFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
			return
		}
		userRole, err := security.GetUserRoleFromClaims(claims)
		if err != nil {
			common.RespondWithError(w, http.StatusUnauthorized, "Invalid token claims: "+err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), UserIDCtxKey, userID)
		ctx = context.WithValue(ctx, UserRoleCtxKey, userRole)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Helper to get user ID from context
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(UserIDCtxKey).(int64)
	return userID, ok
}

// Helper to get user role from context
func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	userRole, ok := ctx.Value(UserRoleCtxKey).(string)
	return userRole, ok
}

// CallerResolver works out who is making a request: the bearer token wins,
// then, if allowed, a caller id sent as a plain request parameter.
type CallerResolver struct {
	AllowParams bool
}

// Caller returns the caller id or nil when none was supplied. param names the
// legacy parameter to fall back on; an empty param disables the fallback.
func (c CallerResolver) Caller(r *http.Request, p common.Params, param string) (*int64, error) {
	if id, ok := GetUserIDFromContext(r.Context()); ok {
		return &id, nil
	}
	if param == "" || !c.AllowParams || !p.Has(param) {
		return nil, nil
	}
	id, err := p.Int64(param)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// RequireCaller is Caller for routes that cannot run anonymously.
func (c CallerResolver) RequireCaller(r *http.Request, p common.Params, param string) (int64, error) {
	id, err := c.Caller(r, p, param)
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, fmt.Errorf("caller identity required: %w", common.ErrUnauthorized)
	}
	return *id, nil
}
