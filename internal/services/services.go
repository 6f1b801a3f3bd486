// services — типизированные методы REST API поверх конвейера client.
// Пути относительны базовому адресу; идентификаторы экранируются.
package services

import (
	"net/url"
	"strconv"

	"github.com/pribylovaa/aihub-client/internal/client"
	"github.com/pribylovaa/aihub-client/internal/models"
)

const apiPrefix = "/api/v1"

// Services группирует сервисы по ресурсам.
type Services struct {
	Auth            *AuthService
	Papers          *PaperService
	Notes           *NoteService
	Activities      *ActivityService
	Comments        *CommentService
	AI              *AIService
	Recommendations *RecommendationService
	System          *SystemService
}

// New создаёт все сервисы поверх одного конвейера.
func New(c *client.Client) *Services {
	return &Services{
		Auth:            &AuthService{c: c},
		Papers:          &PaperService{c: c},
		Notes:           &NoteService{c: c},
		Activities:      &ActivityService{c: c},
		Comments:        &CommentService{c: c},
		AI:              &AIService{c: c},
		Recommendations: &RecommendationService{c: c},
		System:          &SystemService{c: c},
	}
}

func path(parts ...string) string {
	p := apiPrefix
	for _, s := range parts {
		p += "/" + s
	}

	return p
}

func id(v string) string { return url.PathEscape(v) }

// query собирает параметры; пустые значения отбрасываются конвейером.
type query url.Values

func (q query) set(key, val string) query {
	url.Values(q).Set(key, val)
	return q
}

func (q query) setInt(key string, val int) query {
	if val > 0 {
		url.Values(q).Set(key, strconv.Itoa(val))
	}
	return q
}

func (q query) list(p models.ListParams) query {
	return q.set("sort_by", p.SortBy).
		set("sort_order", p.SortOrder).
		setInt("page", p.Page).
		setInt("page_size", p.PageSize)
}

func (q query) values() url.Values { return url.Values(q) }
