package handler

import (
	"context"
	"net/http"
	"net/url"

	"go-authorisation-service/internal/auth"
	"go-authorisation-service/internal/cache"
	"go-authorisation-service/internal/middleware"
	"go-authorisation-service/internal/model"
	"go-authorisation-service/internal/service"
	"go-authorisation-service/pkg/apierror"
)

// TokenCheckPath is the cached route that echoes the caller's credentials.
const TokenCheckPath = "/v0/token"

type AuthHandler struct {
	service    *service.AuthService
	cache      *cache.Cache
	authName   string
	authScheme string
}

func NewAuthHandler(service *service.AuthService, cache *cache.Cache, authName string, authScheme string) *AuthHandler {
	return &AuthHandler{service: service, cache: cache, authName: authName, authScheme: authScheme}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload model.LoginRequest
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	input := service.LoginInput{
		Username:   payload.Username,
		Password:   payload.Password,
		ClientAddr: auth.ClientAddr(r),
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		input.IP = &realIP
	}

	resp, err := h.service.Login(r.Context(), input)
	if err != nil {
		writeError(w, withRequest(err, r))
		return
	}

	carrier := h.authScheme + " " + resp.AccessToken
	http.SetCookie(w, &http.Cookie{
		Name:     h.authName,
		Value:    carrier,
		Path:     "/",
		Expires:  resp.Session.Expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.Header().Add(h.authName, carrier)

	h.clearTokenCheck(r.Context(), r, resp.AccessToken)
	writeSuccess(w, http.StatusOK, resp)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	creds, ok := middleware.UserCredentialsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	resp, err := h.service.Logout(r.Context(), creds)
	h.clearTokenCheck(r.Context(), r, creds.Token)
	if err != nil {
		writeError(w, err)
		return
	}

	if resp == nil {
		writeSuccess(w, http.StatusOK, nil)
		return
	}
	writeSuccess(w, http.StatusOK, resp)
}

func (h *AuthHandler) CheckToken(w http.ResponseWriter, r *http.Request) {
	creds, ok := middleware.UserCredentialsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	writeSuccess(w, http.StatusOK, h.service.CheckToken(creds))
}

// clearTokenCheck drops the cached token check of accessToken so a new or
// revoked session is visible immediately.
func (h *AuthHandler) clearTokenCheck(ctx context.Context, r *http.Request, accessToken string) {
	check := r.Clone(ctx)
	check.URL = &url.URL{Path: TokenCheckPath}
	h.cache.Clear(ctx, h.cache.RouteKey(check, cache.KeyOptions{AccessToken: accessToken}))
}

func withRequest(err error, r *http.Request) error {
	if apiErr, ok := err.(*apierror.APIError); ok && apiErr.Request == nil {
		return apiErr.WithRequest(r)
	}
	return err
}
