package models

type ChatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	Stream         bool   `json:"stream"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
}

type ChatResponse struct {
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Response       string `json:"response"`
	CreatedAt      string `json:"created_at"`
}

type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt string    `json:"created_at"`
	UpdatedAt string    `json:"updated_at"`
	Messages  []Message `json:"messages,omitempty"`
}

type ConversationListItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type SummaryRequest struct {
	PaperID string `json:"paper_id"`
}

// Статусы асинхронной задачи суммаризации.
const (
	SummaryPending    = "pending"
	SummaryProcessing = "processing"
	SummaryCompleted  = "completed"
	SummaryFailed     = "failed"
)

type SummaryResponse struct {
	TaskID  string  `json:"task_id"`
	Status  string  `json:"status"`
	Summary *string `json:"summary"`
	Error   *string `json:"error"`
}

type SummarySyncResponse struct {
	Summary   string `json:"summary"`
	PaperID   string `json:"paper_id"`
	CreatedAt string `json:"created_at"`
}
