package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"go-authorisation-service/internal/model"
	"go-authorisation-service/pkg/apierror"
)

type credentialsResolver interface {
	Authenticate(r *http.Request) (model.TokenCredentials, error)
	ResolveUser(ctx context.Context, r *http.Request, creds model.TokenCredentials) (model.UserCredentials, error)
	Authorize(r *http.Request, creds model.UserCredentials, routeScope string) (model.PermissionCredentials, error)
}

type contextKey string

const (
	tokenCredentialsKey      contextKey = "token_credentials"
	userCredentialsKey       contextKey = "user_credentials"
	permissionCredentialsKey contextKey = "permission_credentials"
)

type AuthMiddleware struct {
	resolver credentialsResolver
}

func NewAuthMiddleware(resolver credentialsResolver) *AuthMiddleware {
	return &AuthMiddleware{resolver: resolver}
}

// RequireSession admits requests whose carrier resolves to a live session.
func (m *AuthMiddleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds, err := m.session(r)
		if err != nil {
			writeAuthError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tokenCredentialsKey, creds)))
	})
}

// RequireUser additionally loads the user that owns the session.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		creds, err := m.user(r)
		if err != nil {
			writeAuthError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), tokenCredentialsKey, creds.TokenCredentials)
		ctx = context.WithValue(ctx, userCredentialsKey, creds)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission additionally checks that one of the user's scopes grants scope.
func (m *AuthMiddleware) RequirePermission(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userCreds, err := m.user(r)
			if err != nil {
				writeAuthError(w, r, err)
				return
			}

			creds, err := m.resolver.Authorize(r, userCreds, scope)
			if err != nil {
				writeAuthError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), tokenCredentialsKey, creds.TokenCredentials)
			ctx = context.WithValue(ctx, userCredentialsKey, creds.UserCredentials)
			ctx = context.WithValue(ctx, permissionCredentialsKey, creds)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m *AuthMiddleware) session(r *http.Request) (model.TokenCredentials, error) {
	if creds, ok := TokenCredentialsFromContext(r.Context()); ok {
		return creds, nil
	}
	return m.resolver.Authenticate(r)
}

func (m *AuthMiddleware) user(r *http.Request) (model.UserCredentials, error) {
	if creds, ok := UserCredentialsFromContext(r.Context()); ok {
		return creds, nil
	}

	tokenCreds, err := m.session(r)
	if err != nil {
		return model.UserCredentials{}, err
	}
	return m.resolver.ResolveUser(r.Context(), r, tokenCreds)
}

func TokenCredentialsFromContext(ctx context.Context) (model.TokenCredentials, bool) {
	creds, ok := ctx.Value(tokenCredentialsKey).(model.TokenCredentials)
	return creds, ok
}

func UserCredentialsFromContext(ctx context.Context) (model.UserCredentials, bool) {
	creds, ok := ctx.Value(userCredentialsKey).(model.UserCredentials)
	return creds, ok
}

func PermissionCredentialsFromContext(ctx context.Context) (model.PermissionCredentials, bool) {
	creds, ok := ctx.Value(permissionCredentialsKey).(model.PermissionCredentials)
	return creds, ok
}

// AccessToken returns the authenticated token of the request, or "".
func AccessToken(r *http.Request) string {
	creds, ok := TokenCredentialsFromContext(r.Context())
	if !ok {
		return ""
	}
	return creds.Token
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		writeJSON(w, apiErr.HTTPStatus, model.APIResponse{
			Success: false,
			Error: &model.APIError{
				Code:    apiErr.Code,
				Message: apiErr.Message,
				Details: apiErr.Details,
				Request: apiErr.Request,
			},
		})
		return
	}

	slog.ErrorContext(r.Context(), "credential resolution failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, model.APIResponse{
		Success: false,
		Error: &model.APIError{
			Code:    "INTERNAL_ERROR",
			Message: "Unexpected server error",
		},
	})
}
