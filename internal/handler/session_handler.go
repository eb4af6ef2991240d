package handler

import (
	"net/http"

	"go-authorisation-service/internal/cache"
	"go-authorisation-service/internal/model"
	"go-authorisation-service/internal/service"
)

const SessionsPath = "/v0/sessions"

type SessionHandler struct {
	service *service.SessionService
	cache   *cache.Cache
}

func NewSessionHandler(service *service.SessionService, cache *cache.Cache) *SessionHandler {
	return &SessionHandler{service: service, cache: cache}
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, session)
}

func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := queryInts(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	userIDs, err := queryInts(r, "user_id")
	if err != nil {
		writeError(w, err)
		return
	}
	disabled, err := queryBool(r, "disabled")
	if err != nil {
		writeError(w, err)
		return
	}

	sessions, err := h.service.List(r.Context(), model.SessionFilter{
		IDs:      ids,
		UserIDs:  userIDs,
		IPs:      r.URL.Query()["ip"],
		Disabled: disabled,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, sessions)
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateSession
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.service.Create(r.Context(), actorID(r), payload)
	if err != nil {
		writeError(w, err)
		return
	}

	h.invalidate(r)
	writeSuccess(w, http.StatusCreated, session)
}

func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.UpdateSession
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.service.Update(r.Context(), actorID(r), id, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	h.invalidate(r)
	writeSuccess(w, http.StatusOK, session)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

func (h *SessionHandler) invalidate(r *http.Request) {
	h.cache.Invalidate(r.Context(), r, SessionsPath, TokenCheckPath)
}
