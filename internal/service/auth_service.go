package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go-authorisation-service/internal/event"
	"go-authorisation-service/internal/model"
	"go-authorisation-service/internal/token"
	"go-authorisation-service/pkg/apierror"
)

const (
	messageNoClient    = "Client could not be determined."
	messageLoginFailed = "Log in failed."
)

type passwordVerifier interface {
	VerifyPassword(ctx context.Context, username string, password string) (model.User, error)
}

type sessionRotator interface {
	Rotate(ctx context.Context, userID int64, ip *string) (model.Session, int64, error)
	Update(ctx context.Context, s model.Session) (model.Session, error)
}

type tokenSigner interface {
	Sign(payload token.Payload) (string, error)
}

type LoginInput struct {
	Username   string
	Password   string
	ClientAddr string
	// IP is the X-Real-IP of the request, stored on the session.
	IP *string
}

type AuthService struct {
	users    passwordVerifier
	sessions sessionRotator
	signer   tokenSigner
	bus      event.Bus
	logger   *slog.Logger
}

func NewAuthService(users passwordVerifier, sessions sessionRotator, signer tokenSigner, bus event.Bus, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{users: users, sessions: sessions, signer: signer, bus: bus, logger: logger}
}

// Login verifies the password, replaces every live session of the user with
// a new one and signs a token bound to it.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (model.LoginResponse, error) {
	if in.ClientAddr == "" {
		s.logger.ErrorContext(ctx, "client could not be determined on login")
		return model.LoginResponse{}, apierror.Unauthorized(messageNoClient)
	}

	user, err := s.users.VerifyPassword(ctx, in.Username, in.Password)
	if errors.Is(err, model.ErrInvalidCredentials) {
		s.logger.ErrorContext(ctx, "user password could not be verified", "username", in.Username)
		return model.LoginResponse{}, apierror.Unauthorized(messageLoginFailed)
	}
	if err != nil {
		return model.LoginResponse{}, fmt.Errorf("verify password: %w", err)
	}

	session, disabled, err := s.sessions.Rotate(ctx, user.ID, in.IP)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create session", "user_id", user.ID, "error", err)
		return model.LoginResponse{}, apierror.Unauthorized(messageLoginFailed)
	}

	accessToken, err := s.signer.Sign(token.NewPayload(session.ID, session.Expires))
	if err != nil {
		return model.LoginResponse{}, fmt.Errorf("sign session token: %w", err)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "session_id", session.ID, "disabled_sessions", disabled)
	s.publish(event.New(event.TypeSessionCreated, session, user.ID))

	return model.LoginResponse{AccessToken: accessToken, User: user.Profile(), Session: session}, nil
}

// Logout disables the session behind creds. A session that vanished in the
// meantime yields nil without an error.
func (s *AuthService) Logout(ctx context.Context, creds model.UserCredentials) (*model.LogoutResponse, error) {
	session := creds.Session
	session.Disabled = true

	updated, err := s.sessions.Update(ctx, session)
	if errors.Is(err, model.ErrSessionNotFound) {
		s.logger.WarnContext(ctx, "tried to log out non-existent session", "session_id", session.ID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("disable session %d: %w", session.ID, err)
	}

	s.publish(event.New(event.TypeSessionDisabled, updated, creds.User.ID))
	return &model.LogoutResponse{Session: updated}, nil
}

// CheckToken echoes the credentials without the password hash.
func (s *AuthService) CheckToken(creds model.UserCredentials) model.UserCredentials {
	creds.User.PasswordHash = ""
	creds.User.Scopes = append([]string{}, creds.User.Scopes...)
	return creds
}

func (s *AuthService) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
