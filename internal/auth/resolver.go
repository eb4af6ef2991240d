// Package auth turns a request carrier into session, user and permission
// credentials. Each stage either enriches the credentials of the previous one
// or stops the request with a 401 or 403.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"go-authorisation-service/internal/model"
	"go-authorisation-service/internal/token"
	"go-authorisation-service/pkg/apierror"
)

const (
	MessageNoClient       = "Client could not be determined."
	MessageInvalidAuth    = "Invalid authorisation"
	MessageInvalidScheme  = "Invalid authentication scheme"
	MessageInvalidToken   = "Invalid or expired token"
	MessageDecodeFailed   = "JWT decode failed"
	MessageInvalidSession = "Invalid session"
	MessageSessionExpired = "Session expired"
	MessageInvalidUser    = "Invalid session user"
	MessageNoAccess       = "User does not have access to this resource"

	accessTokenParam = "access_token"
	realIPHeader     = "X-Real-IP"
)

type TokenDecoder interface {
	Decode(tokenString string) (*token.Payload, error)
}

type SessionGetter interface {
	Get(ctx context.Context, id int64) (model.Session, error)
}

type UserGetter interface {
	Get(ctx context.Context, id int64) (model.User, error)
}

type Config struct {
	// Name is both the cookie and the header that carry "<scheme> <token>".
	Name   string
	Scheme string
}

type Resolver struct {
	cfg      Config
	decoder  TokenDecoder
	sessions SessionGetter
	users    UserGetter
	logger   *slog.Logger
	now      func() time.Time
}

func NewResolver(cfg Config, decoder TokenDecoder, sessions SessionGetter, users UserGetter, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Resolver{
		cfg:      cfg,
		decoder:  decoder,
		sessions: sessions,
		users:    users,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock replaces the clock used for the session expiry check.
func (s *Resolver) WithClock(now func() time.Time) *Resolver {
	copied := *s
	copied.now = now
	return &copied
}

// Authenticate resolves the request carrier to a live session. The session IP
// is compared with X-Real-IP but a mismatch is only logged.
func (s *Resolver) Authenticate(r *http.Request) (model.TokenCredentials, error) {
	ctx := r.Context()

	if ClientAddr(r) == "" {
		return model.TokenCredentials{}, s.reject(r, "client", "client could not be determined on protected route", MessageNoClient)
	}

	carrier, present := s.carrier(r)
	if !present {
		return model.TokenCredentials{}, s.reject(r, "carrier", "auth not sent in cookie, headers or query on protected route", MessageInvalidAuth)
	}
	if carrier == "" {
		return model.TokenCredentials{}, s.reject(r, "carrier", "empty auth in cookie, headers or query on protected route", MessageInvalidAuth)
	}

	scheme, tokenString, found := strings.Cut(carrier, " ")
	if !found || scheme != s.cfg.Scheme {
		return model.TokenCredentials{}, s.reject(r, "scheme", "invalid authentication scheme on protected route", MessageInvalidScheme)
	}

	payload, err := s.decoder.Decode(tokenString)
	if err != nil {
		s.logger.ErrorContext(ctx, "token codec is misconfigured", "stage", "decode", "path", r.URL.Path, "error", err)
		return model.TokenCredentials{}, unauthorized(r, MessageInvalidToken)
	}
	if payload == nil {
		return model.TokenCredentials{}, s.reject(r, "decode", "token decode failed on protected route", MessageDecodeFailed)
	}

	if payload.SessionID == nil {
		return model.TokenCredentials{}, s.reject(r, "session_id", "no session id in token on protected route", MessageInvalidSession)
	}

	session, err := s.sessions.Get(ctx, *payload.SessionID)
	if errors.Is(err, model.ErrSessionNotFound) {
		return model.TokenCredentials{}, s.reject(r, "session", "session not found on protected route", MessageInvalidSession, "session_id", *payload.SessionID)
	}
	if err != nil {
		return model.TokenCredentials{}, fmt.Errorf("get session %d: %w", *payload.SessionID, err)
	}

	if realIP := optionalHeader(r, realIPHeader); !sameIP(session.IP, realIP) {
		s.logger.WarnContext(ctx, "session ip does not match client on protected route",
			"stage", "ip",
			"session_id", session.ID,
			"session_ip", derefOr(session.IP, "<none>"),
			"client_ip", derefOr(realIP, "<none>"),
		)
	}

	if !session.Expires.After(s.now().UTC()) {
		return model.TokenCredentials{}, s.reject(r, "expiry", "session expired on protected route", MessageSessionExpired,
			"session_id", session.ID, "expires", session.Expires.Format(time.RFC3339))
	}

	if session.Disabled {
		return model.TokenCredentials{}, s.reject(r, "disabled", "session disabled on protected route", MessageSessionExpired, "session_id", session.ID)
	}

	return model.TokenCredentials{Scheme: scheme, Token: tokenString, Session: session}, nil
}

// ResolveUser loads the user that owns the authenticated session.
func (s *Resolver) ResolveUser(ctx context.Context, r *http.Request, creds model.TokenCredentials) (model.UserCredentials, error) {
	user, err := s.users.Get(ctx, creds.Session.UserID)
	if errors.Is(err, model.ErrUserNotFound) {
		s.logger.ErrorContext(ctx, "session user not found on protected route", "stage", "user", "user_id", creds.Session.UserID)
		return model.UserCredentials{}, unauthorized(r, MessageInvalidUser)
	}
	if err != nil {
		return model.UserCredentials{}, fmt.Errorf("get session user %d: %w", creds.Session.UserID, err)
	}

	return model.UserCredentials{TokenCredentials: creds, User: user}, nil
}

// Authorize grants routeScope when one of the user's scopes is a prefix of it.
func (s *Resolver) Authorize(r *http.Request, creds model.UserCredentials, routeScope string) (model.PermissionCredentials, error) {
	matched, ok := MatchScope(creds.User.Scopes, routeScope)
	if !ok {
		s.logger.WarnContext(r.Context(), "user lacks scope for route", "user_id", creds.User.ID, "route_scope", routeScope)
		return model.PermissionCredentials{}, apierror.Forbidden(MessageNoAccess).WithRequest(r)
	}

	return model.PermissionCredentials{UserCredentials: creds, RouteScope: routeScope, MatchedScope: matched}, nil
}

// MatchScope returns the first scope, in stored order, that prefixes routeScope.
func MatchScope(userScopes []string, routeScope string) (string, bool) {
	for _, scope := range userScopes {
		if strings.HasPrefix(routeScope, scope) {
			return scope, true
		}
	}
	return "", false
}

// carrier looks in the cookie, then the header, then the access_token query
// parameter. A cookie or header that is present wins even when empty.
func (s *Resolver) carrier(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(s.cfg.Name); err == nil {
		return cookie.Value, true
	}

	if values := r.Header.Values(s.cfg.Name); len(values) > 0 {
		return values[0], true
	}

	if accessToken := r.URL.Query().Get(accessTokenParam); accessToken != "" {
		return s.cfg.Scheme + " " + accessToken, true
	}

	return "", false
}

func (s *Resolver) reject(r *http.Request, stage string, logMessage string, message string, attrs ...any) error {
	args := append([]any{"stage", stage, "path", r.URL.Path}, attrs...)
	s.logger.ErrorContext(r.Context(), logMessage, args...)
	return unauthorized(r, message)
}

func unauthorized(r *http.Request, message string) *apierror.APIError {
	return apierror.Unauthorized(message).WithRequest(r)
}

// ClientAddr is the host part of the remote address, or "" when unknown.
func ClientAddr(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}

func optionalHeader(r *http.Request, name string) *string {
	values := r.Header.Values(name)
	if len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

func sameIP(a *string, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
