package services

import (
	"context"

	"github.com/pribylovaa/aihub-client/internal/client"
	"github.com/pribylovaa/aihub-client/internal/models"
)

type NoteService struct{ c *client.Client }

func (s *NoteService) Create(ctx context.Context, in models.NoteCreate) (models.Note, error) {
	return client.Post[models.Note](ctx, s.c, path("notes")+"/", in)
}

func (s *NoteService) List(ctx context.Context, p models.NoteListParams) (models.Page[models.Note], error) {
	q := query{}.
		set("search", p.Search).
		set("paper_id", p.PaperID).
		set("tag_id", p.TagID).
		list(p.ListParams)

	return client.Get[models.Page[models.Note]](ctx, s.c, path("notes")+"/", q.values())
}

func (s *NoteService) Get(ctx context.Context, noteID string) (models.Note, error) {
	return client.Get[models.Note](ctx, s.c, path("notes", id(noteID)), nil)
}

func (s *NoteService) Update(ctx context.Context, noteID string, in models.NoteUpdate) (models.Note, error) {
	return client.Put[models.Note](ctx, s.c, path("notes", id(noteID)), in)
}

func (s *NoteService) Delete(ctx context.Context, noteID string) error {
	_, err := client.Delete[client.NoContent](ctx, s.c, path("notes", id(noteID)))
	return err
}
