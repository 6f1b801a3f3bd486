package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/aihub-client/internal/devserver/errors"
	"github.com/pribylovaa/aihub-client/internal/devserver/events"
	"github.com/pribylovaa/aihub-client/internal/models"
)

func (h *Handlers) CreateNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var in models.NoteCreate
	if err := decodeStrict(r, &in); err != nil || strings.TrimSpace(in.Title) == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	n := h.Store.CreateNote(uid, in)
	h.Hub.Publish(uid, events.NoteCreated, n.ID)

	writeJSON(w, http.StatusCreated, n)
}

func (h *Handlers) ListNotes(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	page := h.Store.Notes(uid, r.URL.Query().Get("search"), intParam(r, "page", 1), intParam(r, "page_size", 0))
	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) GetNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	n, err := h.Store.Note(uid, chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, n)
}

func (h *Handlers) UpdateNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	var in models.NoteUpdate
	if err := decodeStrict(r, &in); err != nil {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	n, err := h.Store.UpdateNote(uid, chi.URLParam(r, "id"), in)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	h.Hub.Publish(uid, events.NoteUpdated, n.ID)

	writeJSON(w, http.StatusOK, n)
}

func (h *Handlers) DeleteNote(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteNote(uid, id); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	h.Hub.Publish(uid, events.NoteDeleted, id)

	w.WriteHeader(http.StatusNoContent)
}
