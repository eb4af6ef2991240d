package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"go-authorisation-service/internal/cache"
	"go-authorisation-service/internal/middleware"
	"go-authorisation-service/internal/model"
	"go-authorisation-service/internal/service"
)

const UsersPath = "/v0/users"

type UserHandler struct {
	service *service.UserService
	cache   *cache.Cache
}

func NewUserHandler(service *service.UserService, cache *cache.Cache) *UserHandler {
	return &UserHandler{service: service, cache: cache}
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

func (h *UserHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

func (h *UserHandler) Self(w http.ResponseWriter, r *http.Request) {
	creds, ok := middleware.UserCredentialsFromContext(r.Context())
	if !ok {
		writeError(w, model.ErrUnauthorized)
		return
	}

	user, err := h.service.Get(r.Context(), creds.User.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user)
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := queryInts(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	query := r.URL.Query()
	users, err := h.service.List(r.Context(), model.UserFilter{
		IDs:       ids,
		Usernames: query["username"],
		Names:     query["name"],
		Scopes:    query["scopes"],
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, users)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateUser
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.Create(r.Context(), actorID(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	h.invalidate(r)
	writeSuccess(w, http.StatusCreated, user)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateUser
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.Update(r.Context(), actorID(r), id, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	h.invalidate(r)
	writeSuccess(w, http.StatusOK, user)
}

func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdatePassword
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.UpdatePassword(r.Context(), actorID(r), id, payload.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	h.invalidate(r)
	writeSuccess(w, http.StatusOK, user)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), actorID(r), id); err != nil {
		writeError(w, err)
		return
	}

	h.invalidate(r)
	writeSuccess(w, http.StatusOK, map[string]int64{"id": id})
}

// invalidate drops cached user reads and token checks, which embed the user.
func (h *UserHandler) invalidate(r *http.Request) {
	h.cache.Invalidate(r.Context(), r, UsersPath, TokenCheckPath)
}

func actorID(r *http.Request) int64 {
	if creds, ok := middleware.UserCredentialsFromContext(r.Context()); ok {
		return creds.User.ID
	}
	return 0
}
