package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	apierrors "github.com/pribylovaa/aihub-client/internal/devserver/errors"
	"github.com/pribylovaa/aihub-client/internal/models"
	"github.com/pribylovaa/aihub-client/pkg/log"
)

// Размер фрагмента потокового ответа в байтах. Границы фрагментов не
// совпадают с границами символов UTF-8.
const streamChunkBytes = 7

// Chat отвечает эхом: целиком (stream=false) или фрагментами text/plain.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	if _, ok := userID(w, r); !ok {
		return
	}

	var in models.ChatRequest
	if err := decodeStrict(r, &in); err != nil || strings.TrimSpace(in.Message) == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	reply := echoReply(in.Message)
	if !in.Stream {
		conv := in.ConversationID
		if conv == "" {
			conv = uuid.NewString()
		}
		writeJSON(w, http.StatusOK, models.ChatResponse{
			ConversationID: conv,
			MessageID:      uuid.NewString(),
			Response:       reply,
			CreatedAt:      time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	h.streamText(w, r, reply)
}

func (h *Handlers) streamText(w http.ResponseWriter, r *http.Request, text string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		apierrors.WriteError(w, r, fmt.Errorf("streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	b := []byte(text)
	for len(b) > 0 {
		n := min(streamChunkBytes, len(b))
		if _, err := w.Write(b[:n]); err != nil {
			return
		}
		flusher.Flush()
		b = b[n:]

		if h.ChunkDelay <= 0 || len(b) == 0 {
			continue
		}

		select {
		case <-ctx.Done():
			log.From(ctx).Debug("stream_aborted", slog.Int("left_bytes", len(b)))
			return
		case <-time.After(h.ChunkDelay):
		}
	}
}

func (h *Handlers) SummarizeSync(w http.ResponseWriter, r *http.Request) {
	if _, ok := userID(w, r); !ok {
		return
	}

	var in models.SummaryRequest
	if err := decodeStrict(r, &in); err != nil || in.PaperID == "" {
		apierrors.WriteError(w, r, apierrors.ErrBadRequest)
		return
	}

	p, err := h.Store.Paper(in.PaperID)
	if err != nil {
		apierrors.WriteError(w, r, err)
		return
	}

	summary := p.Title
	if p.Abstract != nil {
		summary = firstSentence(*p.Abstract)
	}

	writeJSON(w, http.StatusOK, models.SummarySyncResponse{
		Summary:   summary,
		PaperID:   p.ID,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func echoReply(msg string) string {
	return fmt.Sprintf("Вы спросили: «%s». Это ответ локального dev-сервера, модель не подключена.", strings.TrimSpace(msg))
}

func firstSentence(s string) string {
	if i := strings.Index(s, ". "); i >= 0 {
		return s[:i+1]
	}

	return s
}
