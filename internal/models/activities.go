package models

type Activity struct {
	ID               string  `json:"id"`
	UserID           string  `json:"user_id"`
	User             User    `json:"user"`
	Content          string  `json:"content"`
	ActivityType     string  `json:"activity_type"`
	ReferenceNoteID  *string `json:"reference_note_id"`
	ReferencePaperID *string `json:"reference_paper_id"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
	CommentsCount    int     `json:"comments_count"`
}

type ActivityWithComments struct {
	Activity
	Comments []Comment `json:"comments"`
}

type ActivityCreate struct {
	Content          string `json:"content"`
	ActivityType     string `json:"activity_type,omitempty"`
	ReferenceNoteID  string `json:"reference_note_id,omitempty"`
	ReferencePaperID string `json:"reference_paper_id,omitempty"`
}

type ActivityUpdate struct {
	Content *string `json:"content,omitempty"`
}

type ActivityListParams struct {
	UserID       string
	ActivityType string
	ListParams
}

type Comment struct {
	ID         string    `json:"id"`
	ActivityID string    `json:"activity_id"`
	UserID     string    `json:"user_id"`
	User       User      `json:"user"`
	ParentID   *string   `json:"parent_id"`
	Content    string    `json:"content"`
	CreatedAt  string    `json:"created_at"`
	UpdatedAt  string    `json:"updated_at"`
	Replies    []Comment `json:"replies"`
}

type CommentCreate struct {
	Content  string `json:"content"`
	ParentID string `json:"parent_id,omitempty"`
}

type CommentUpdate struct {
	Content *string `json:"content,omitempty"`
}
