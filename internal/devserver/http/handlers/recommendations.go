package handlers

import (
	"net/http"
	"time"

	"github.com/pribylovaa/aihub-client/internal/devserver/events"
	"github.com/pribylovaa/aihub-client/internal/models"
)

// Recommendations предлагает статьи, которых нет в избранном; score
// убывает по порядку каталога.
func (h *Handlers) Recommendations(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.recommend(uid, intParam(r, "limit", 10)))
}

func (h *Handlers) RefreshRecommendations(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	out := h.recommend(uid, intParam(r, "limit", 10))
	h.Hub.Publish(uid, events.RecommendationsUp, "")

	writeJSON(w, http.StatusOK, out)
}

func (h *Handlers) RecommendationStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}

	list := h.recommend(uid, 1<<10)
	favs := len(h.Store.FavoritePapers(uid))

	st := models.RecommendationStatus{
		UserID:              uid,
		HasRecommendations:  list.Total > 0,
		RecommendationCount: list.Total,
		LastUpdated:         list.LastUpdated,
		FavoriteCount:       favs,
		Message:             "Recommendations are computed on request",
	}

	writeJSON(w, http.StatusOK, st)
}

func (h *Handlers) recommend(uid string, limit int) models.RecommendationList {
	favorite := make(map[string]bool)
	for _, p := range h.Store.FavoritePapers(uid) {
		favorite[p.ID] = true
	}

	now := time.Now().UTC().Format(time.RFC3339)
	page := h.Store.Papers("", 1, 100)

	out := models.RecommendationList{Recommendations: []models.Recommendation{}, LastUpdated: &now}
	for i, p := range page.Items {
		if favorite[p.ID] || len(out.Recommendations) == limit {
			continue
		}
		out.Recommendations = append(out.Recommendations, models.Recommendation{
			PaperID:   p.ID,
			Title:     p.Title,
			Abstract:  p.Abstract,
			ArxivID:   p.ArxivID,
			Score:     1 / float64(i+1),
			CreatedAt: now,
		})
	}
	out.Total = len(out.Recommendations)

	return out
}
