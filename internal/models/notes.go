package models

type Tag struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

type Note struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	PaperID   *string `json:"paper_id"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Tags      []Tag   `json:"tags"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

type NoteCreate struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	PaperID string   `json:"paper_id,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// NoteUpdate — частичное обновление: nil-поля не изменяются.
type NoteUpdate struct {
	Title   *string  `json:"title,omitempty"`
	Content *string  `json:"content,omitempty"`
	PaperID *string  `json:"paper_id,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

type NoteListParams struct {
	Search  string
	PaperID string
	TagID   string
	ListParams
}
