package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-logr/logr"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"go-authorisation-service/internal/auth"
	"go-authorisation-service/internal/cache"
	"go-authorisation-service/internal/config"
	"go-authorisation-service/internal/event"
	"go-authorisation-service/internal/handler"
	"go-authorisation-service/internal/middleware"
	"go-authorisation-service/internal/model"
	"go-authorisation-service/internal/repository"
	"go-authorisation-service/internal/service"
	"go-authorisation-service/internal/token"
	"go-authorisation-service/internal/websocket"
)

type countingUsers struct {
	*repository.MemoryUserRepository
	lists atomic.Int32
}

func (c *countingUsers) List(ctx context.Context, filter model.UserFilter) ([]model.User, error) {
	c.lists.Add(1)
	return c.MemoryUserRepository.List(ctx, filter)
}

type testEnv struct {
	handler http.Handler
	users   *countingUsers
	redis   *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{
		RequestTimeout:   5 * time.Second,
		AuthName:         "Authorization",
		AuthScheme:       "Bearer",
		JWTSecret:        "router-secret",
		JWTAlgorithm:     "HS256",
		SessionDuration:  time.Hour,
		CORSOrigins:      []string{"*"},
		RateLimitRPM:     1000,
		AuthRateLimitRPM: 1000,
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	responseCache := cache.New(cache.NewRedisStore(client), nil, logr.Discard())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := &countingUsers{MemoryUserRepository: repository.NewMemoryUserRepository(bcrypt.MinCost)}
	sessions := repository.NewMemorySessionRepository(users.MemoryUserRepository, cfg.SessionDuration)
	codec := token.NewCodec(cfg.JWTSecret, cfg.JWTAlgorithm)
	bus := event.NewBus()

	ctx := context.Background()
	_, err := users.Create(ctx, model.CreateUser{Username: "admin", Password: "admin-pass", Name: "Admin", Scopes: []string{"users", "sessions"}})
	require.NoError(t, err)
	_, err = users.Create(ctx, model.CreateUser{Username: "viewer", Password: "viewer-pass", Name: "Viewer", Scopes: []string{"users.self"}})
	require.NoError(t, err)

	resolver := auth.NewResolver(auth.Config{Name: cfg.AuthName, Scheme: cfg.AuthScheme}, codec, sessions, users, logger)

	h := New(
		cfg,
		middleware.NewAuthMiddleware(resolver),
		responseCache,
		handler.NewAuthHandler(service.NewAuthService(users, sessions, codec, bus, logger), responseCache, cfg.AuthName, cfg.AuthScheme),
		handler.NewUserHandler(service.NewUserService(users, bus), responseCache),
		handler.NewSessionHandler(service.NewSessionService(sessions, bus), responseCache),
		handler.NewEventsHandler(websocket.NewRegistry(logger)),
	)

	return &testEnv{handler: h, users: users, redis: mr}
}

func (e *testEnv) do(t *testing.T, method string, path string, carrier string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, "http://auth.test"+path, reader)
	if carrier != "" {
		req.Header.Set("Authorization", carrier)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username string, password string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/v0/login", "", model.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	carrier := rec.Header().Get("Authorization")
	require.NotEmpty(t, carrier)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, carrier, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)

	return carrier
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Message
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestLoginFailures(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/v0/login", "", model.LoginRequest{Username: "admin", Password: "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Log in failed.", errorMessage(t, rec))

	rec = env.do(t, http.MethodPost, "/v0/login", "", map[string]string{"username": "admin"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScopedReadsAreCachedOnce(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin", "admin-pass")

	first := env.do(t, http.MethodGet, "/v0/users?name=Admin&scopes=users", admin, nil)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "true", first.Header().Get(cache.HeaderWillCache))
	assert.Equal(t, "60", first.Header().Get(cache.HeaderDuration))
	assert.Empty(t, first.Header().Get(cache.HeaderCachedValue))

	second := env.do(t, http.MethodGet, "/v0/users?scopes=users&name=Admin", admin, nil)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(cache.HeaderCachedValue))
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	require.Equal(t, int32(1), env.users.lists.Load())
}

func TestScopeDenied(t *testing.T) {
	env := newTestEnv(t)
	viewer := env.login(t, "viewer", "viewer-pass")

	rec := env.do(t, http.MethodGet, "/v0/users", viewer, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "User does not have access to this resource", errorMessage(t, rec))
	require.Zero(t, env.users.lists.Load())

	rec = env.do(t, http.MethodGet, "/v0/users/self", viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMissingCarrier(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/v0/users", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid authorisation", errorMessage(t, rec))

	var body model.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error.Request)
	assert.Equal(t, "auth.test", body.Error.Request.Host)
	assert.Equal(t, "/v0/users", body.Error.Request.Path)
}

func TestWritesInvalidateReads(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin", "admin-pass")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v0/users", admin, nil).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/v0/users", admin, nil).Code)
	require.Equal(t, int32(1), env.users.lists.Load())

	rec := env.do(t, http.MethodPost, "/v0/users", admin, model.CreateUser{Username: "new", Password: "new-password", Name: "New"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/v0/users", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get(cache.HeaderCachedValue))
	require.Equal(t, int32(2), env.users.lists.Load())

	var body struct {
		Data []model.UserProfile `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 3)
}

func TestTokenCheckAndLogout(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(t, "admin", "admin-pass")

	rec := env.do(t, http.MethodGet, "/v0/token", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "10", rec.Header().Get(cache.HeaderDuration))
	assert.NotContains(t, rec.Body.String(), "$2a$")

	rec = env.do(t, http.MethodGet, "/v0/token", admin, nil)
	assert.Equal(t, "true", rec.Header().Get(cache.HeaderCachedValue))

	rec = env.do(t, http.MethodPost, "/v0/logout", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/v0/token", admin, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Session expired", errorMessage(t, rec))
}

func TestSecondLoginRevokesFirstToken(t *testing.T) {
	env := newTestEnv(t)
	first := env.login(t, "admin", "admin-pass")
	second := env.login(t, "admin", "admin-pass")

	rec := env.do(t, http.MethodGet, "/v0/users/self", first, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Session expired", errorMessage(t, rec))

	rec = env.do(t, http.MethodGet, "/v0/sessions?disabled=false", second, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data []model.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
}
