package handlers

import (
	"net/http"

	apierrors "github.com/pribylovaa/aihub-client/internal/devserver/errors"
	"github.com/pribylovaa/aihub-client/internal/models"
)

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var in models.RegisterRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	out, err := h.Auth.Register(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, out)
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var in models.LoginRequest
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	out, err := h.Auth.Login(r.Context(), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	var in models.RefreshRequest
	if err := decodeStrict(r, &in); err != nil || in.RefreshToken == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	out, err := h.Auth.Refresh(r.Context(), in.RefreshToken)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out)
}

// Logout отзывает переданный refresh-токен.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	var in models.RefreshRequest
	if err := decodeStrict(r, &in); err != nil || in.RefreshToken == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	if err := h.Auth.Revoke(r.Context(), in.RefreshToken); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	u, err := h.Auth.User(uid)
	if err != nil {
		apierrors.WriteError(w, r, apierrors.ErrUnauthenticated)
		return
	}

	writeJSON(w, http.StatusOK, u)
}
