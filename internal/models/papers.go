package models

type Paper struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Abstract      *string `json:"abstract"`
	ArxivID       *string `json:"arxiv_id"`
	PublishedDate *string `json:"published_date"`
	CreatedByID   *string `json:"created_by_id"`
	CreatedAt     string  `json:"created_at"`
	UpdatedAt     string  `json:"updated_at"`
}

// PaperListParams — фильтры списка статей. Пустые поля не передаются.
type PaperListParams struct {
	Search   string
	ArxivID  string
	AuthorID string
	ListParams
}

type Favorite struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	TargetID     string `json:"target_id"`
	FavoriteType string `json:"favorite_type"`
	CreatedAt    string `json:"created_at"`
}

type FavoriteStatus struct {
	IsFavorited   bool `json:"is_favorited"`
	FavoriteCount int  `json:"favorite_count"`
}
