package services

import (
	"context"

	"github.com/pribylovaa/aihub-client/internal/client"
	"github.com/pribylovaa/aihub-client/internal/models"
)

type AIService struct{ c *client.Client }

// Summarize ставит асинхронную задачу суммаризации.
func (s *AIService) Summarize(ctx context.Context, paperID string) (models.SummaryResponse, error) {
	return client.Post[models.SummaryResponse](ctx, s.c, path("ai", "summarize"), models.SummaryRequest{PaperID: paperID})
}

func (s *AIService) SummaryStatus(ctx context.Context, taskID string) (models.SummaryResponse, error) {
	return client.Get[models.SummaryResponse](ctx, s.c, path("ai", "summarize", id(taskID)), nil)
}

func (s *AIService) SummarizeSync(ctx context.Context, paperID string) (models.SummarySyncResponse, error) {
	return client.Post[models.SummarySyncResponse](ctx, s.c, path("ai", "summarize", "sync"), models.SummaryRequest{PaperID: paperID})
}

// Chat — ответ целиком (stream=false).
func (s *AIService) Chat(ctx context.Context, in models.ChatRequest) (models.ChatResponse, error) {
	in.Stream = false
	return client.Post[models.ChatResponse](ctx, s.c, path("ai", "chat"), in)
}

// ChatStream — ответ по мере генерации (stream=true). Отмена ctx прекращает
// доставку фрагментов.
func (s *AIService) ChatStream(ctx context.Context, in models.ChatRequest, onChunk func(string)) error {
	in.Stream = true
	return s.c.StreamChat(ctx, path("ai", "chat"), in, onChunk)
}

func (s *AIService) Conversations(ctx context.Context) ([]models.ConversationListItem, error) {
	return client.Get[[]models.ConversationListItem](ctx, s.c, path("ai", "chat", "conversations"), nil)
}

func (s *AIService) Conversation(ctx context.Context, conversationID string) (models.Conversation, error) {
	return client.Get[models.Conversation](ctx, s.c, path("ai", "chat", "conversations", id(conversationID)), nil)
}

func (s *AIService) DeleteConversation(ctx context.Context, conversationID string) error {
	_, err := client.Delete[client.NoContent](ctx, s.c, path("ai", "chat", "conversations", id(conversationID)))
	return err
}
