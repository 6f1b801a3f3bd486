// events — раздача событий пользователя подписчикам SSE-ленты.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/pribylovaa/aihub-client/internal/models"
)

// Типы событий.
const (
	NoteCreated       = "note_created"
	NoteUpdated       = "note_updated"
	NoteDeleted       = "note_deleted"
	FavoriteAdded     = "favorite_added"
	FavoriteRemoved   = "favorite_removed"
	RecommendationsUp = "recommendations_updated"
)

// Размер буфера подписчика; медленный подписчик теряет события.
const subscriberBuffer = 16

// Hub раздаёт события подписчикам одного пользователя.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan models.Event
	next int
	now  func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[int]chan models.Event),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Subscribe регистрирует подписчика пользователя. Канал закрывается,
// когда завершается ctx.
func (h *Hub) Subscribe(ctx context.Context, userID string) <-chan models.Event {
	ch := make(chan models.Event, subscriberBuffer)

	h.mu.Lock()
	id := h.next
	h.next++
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[int]chan models.Event)
	}
	h.subs[userID][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[userID], id)
		if len(h.subs[userID]) == 0 {
			delete(h.subs, userID)
		}
		close(ch)
		h.mu.Unlock()
	}()

	return ch
}

// Publish отправляет событие всем подписчикам пользователя без блокировки.
func (h *Hub) Publish(userID, typ, targetID string) {
	ev := models.Event{Type: typ, TargetID: targetID, CreatedAt: h.now().Format(time.RFC3339)}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs[userID] {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers — число активных подписчиков пользователя.
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs[userID])
}
