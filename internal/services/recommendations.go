package services

import (
	"context"

	"github.com/pribylovaa/aihub-client/internal/client"
	"github.com/pribylovaa/aihub-client/internal/models"
)

const defaultRecommendationLimit = 10

type RecommendationService struct{ c *client.Client }

func (s *RecommendationService) Papers(ctx context.Context, limit int) (models.RecommendationList, error) {
	if limit <= 0 {
		limit = defaultRecommendationLimit
	}

	return client.Get[models.RecommendationList](ctx, s.c, path("recommendations", "papers"), query{}.setInt("limit", limit).values())
}

func (s *RecommendationService) Refresh(ctx context.Context) (models.RecommendationList, error) {
	return client.Post[models.RecommendationList](ctx, s.c, path("recommendations", "refresh"), nil)
}

func (s *RecommendationService) Status(ctx context.Context) (models.RecommendationStatus, error) {
	return client.Get[models.RecommendationStatus](ctx, s.c, path("recommendations", "status"), nil)
}

type SystemService struct{ c *client.Client }

func (s *SystemService) Health(ctx context.Context) (models.Health, error) {
	return client.Get[models.Health](ctx, s.c, path("system", "health"), nil)
}

// Events открывает SSE-ленту событий пользователя.
func (s *SystemService) Events(ctx context.Context, h client.Handlers) (func(), error) {
	return s.c.Connect(ctx, path("events"), nil, h)
}
