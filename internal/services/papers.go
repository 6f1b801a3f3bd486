package services

import (
	"context"

	"github.com/pribylovaa/aihub-client/internal/client"
	"github.com/pribylovaa/aihub-client/internal/models"
)

// Лимит поиска по умолчанию.
const defaultSearchLimit = 20

type PaperService struct{ c *client.Client }

func (s *PaperService) List(ctx context.Context, p models.PaperListParams) (models.Page[models.Paper], error) {
	q := query{}.
		set("search", p.Search).
		set("arxiv_id", p.ArxivID).
		set("author_id", p.AuthorID).
		list(p.ListParams)

	return client.Get[models.Page[models.Paper]](ctx, s.c, path("papers")+"/", q.values())
}

func (s *PaperService) Get(ctx context.Context, paperID string) (models.Paper, error) {
	return client.Get[models.Paper](ctx, s.c, path("papers", id(paperID)), nil)
}

func (s *PaperService) GetByArxivID(ctx context.Context, arxivID string) (models.Paper, error) {
	return client.Get[models.Paper](ctx, s.c, path("papers", "arxiv", id(arxivID)), nil)
}

func (s *PaperService) AddFavorite(ctx context.Context, paperID string) (models.Favorite, error) {
	return client.Post[models.Favorite](ctx, s.c, path("papers", id(paperID), "favorite"), nil)
}

func (s *PaperService) RemoveFavorite(ctx context.Context, paperID string) error {
	_, err := client.Delete[client.NoContent](ctx, s.c, path("papers", id(paperID), "favorite"))
	return err
}

func (s *PaperService) FavoriteStatus(ctx context.Context, paperID string) (models.FavoriteStatus, error) {
	return client.Get[models.FavoriteStatus](ctx, s.c, path("papers", id(paperID), "favorite", "status"), nil)
}

// Search — полнотекстовый поиск; limit <= 0 означает 20.
func (s *PaperService) Search(ctx context.Context, q string, limit int) ([]models.Paper, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	return client.Get[[]models.Paper](ctx, s.c, path("papers", "search"), query{}.set("q", q).setInt("limit", limit).values())
}
