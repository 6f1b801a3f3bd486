package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/pribylovaa/aihub-client/internal/devserver/errors"
	"github.com/pribylovaa/aihub-client/internal/devserver/events"
)

func (h *Handlers) ListPapers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := h.Store.Papers(q.Get("search"), intParam(r, "page", 1), intParam(r, "page_size", 0))

	writeJSON(w, http.StatusOK, page)
}

func (h *Handlers) SearchPapers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, h.Store.SearchPapers(q, intParam(r, "limit", 20)))
}

func (h *Handlers) GetPaper(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.Paper(chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) GetPaperByArxivID(w http.ResponseWriter, r *http.Request) {
	p, err := h.Store.PaperByArxivID(chi.URLParam(r, "arxiv_id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handlers) AddFavorite(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	paperID := chi.URLParam(r, "id")
	f, err := h.Store.AddFavorite(uid, paperID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	h.Hub.Publish(uid, events.FavoriteAdded, paperID)

	writeJSON(w, http.StatusCreated, f)
}

func (h *Handlers) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	paperID := chi.URLParam(r, "id")
	if err := h.Store.RemoveFavorite(uid, paperID); err != nil {
		apierrors.WriteError(w, r, err)
		return
	}
	h.Hub.Publish(uid, events.FavoriteRemoved, paperID)

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) FavoriteStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	st, err := h.Store.FavoriteStatus(uid, chi.URLParam(r, "id"))
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, st)
}
