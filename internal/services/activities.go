package services

import (
	"context"

	"github.com/pribylovaa/aihub-client/internal/client"
	"github.com/pribylovaa/aihub-client/internal/models"
)

type ActivityService struct{ c *client.Client }

func (s *ActivityService) Create(ctx context.Context, in models.ActivityCreate) (models.Activity, error) {
	return client.Post[models.Activity](ctx, s.c, path("activities")+"/", in)
}

func (s *ActivityService) List(ctx context.Context, p models.ActivityListParams) (models.Page[models.Activity], error) {
	q := query{}.
		set("user_id", p.UserID).
		set("activity_type", p.ActivityType).
		list(p.ListParams)

	return client.Get[models.Page[models.Activity]](ctx, s.c, path("activities")+"/", q.values())
}

func (s *ActivityService) Get(ctx context.Context, activityID string) (models.ActivityWithComments, error) {
	return client.Get[models.ActivityWithComments](ctx, s.c, path("activities", id(activityID)), nil)
}

func (s *ActivityService) Update(ctx context.Context, activityID string, in models.ActivityUpdate) (models.Activity, error) {
	return client.Put[models.Activity](ctx, s.c, path("activities", id(activityID)), in)
}

func (s *ActivityService) Delete(ctx context.Context, activityID string) error {
	_, err := client.Delete[client.NoContent](ctx, s.c, path("activities", id(activityID)))
	return err
}

func (s *ActivityService) AddComment(ctx context.Context, activityID string, in models.CommentCreate) (models.Comment, error) {
	return client.Post[models.Comment](ctx, s.c, path("activities", id(activityID), "comments"), in)
}

func (s *ActivityService) Comments(ctx context.Context, activityID string) ([]models.Comment, error) {
	return client.Get[[]models.Comment](ctx, s.c, path("activities", id(activityID), "comments"), nil)
}

type CommentService struct{ c *client.Client }

func (s *CommentService) Update(ctx context.Context, commentID string, in models.CommentUpdate) (models.Comment, error) {
	return client.Put[models.Comment](ctx, s.c, path("activities", "comments", id(commentID)), in)
}

func (s *CommentService) Delete(ctx context.Context, commentID string) error {
	_, err := client.Delete[client.NoContent](ctx, s.c, path("activities", "comments", id(commentID)))
	return err
}
