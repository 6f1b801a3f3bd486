package models

type Recommendation struct {
	PaperID   string  `json:"paper_id"`
	Title     string  `json:"title"`
	Abstract  *string `json:"abstract"`
	ArxivID   *string `json:"arxiv_id"`
	Score     float64 `json:"score"`
	Reason    *string `json:"reason"`
	CreatedAt string  `json:"created_at"`
}

type RecommendationList struct {
	Recommendations []Recommendation `json:"recommendations"`
	Total           int              `json:"total"`
	LastUpdated     *string          `json:"last_updated"`
}

type RecommendationStatus struct {
	UserID              string  `json:"user_id"`
	HasRecommendations  bool    `json:"has_recommendations"`
	RecommendationCount int     `json:"recommendation_count"`
	LastUpdated         *string `json:"last_updated"`
	FavoriteCount       int     `json:"favorite_count"`
	Message             string  `json:"message"`
}

type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version,omitempty"`
}

// Event — событие SSE-ленты пользователя.
type Event struct {
	Type      string `json:"type"`
	TargetID  string `json:"target_id"`
	CreatedAt string `json:"created_at"`
}
