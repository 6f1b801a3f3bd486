package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const streamReadSize = 4 << 10

// StreamChat отправляет один POST и передаёт onChunk текст по мере
// поступления тела ответа. Декодирование UTF-8 инкрементальное: символ,
// разрезанный границей чанка, доставляется целиком в следующем фрагменте.
//
// Завершается при исчерпании тела (nil) или отмене ctx (ctx.Err()); после
// отмены onChunk больше не вызывается. Неуспешный статус — *APIError без
// попытки обновить токен.
func (c *Client) StreamChat(ctx context.Context, path string, body any, onChunk func(string)) error {
	const op = "client/stream/StreamChat"

	r := Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
		Header: http.Header{"Accept": []string{"text/plain, text/event-stream, */*"}},
	}
	payload, err := r.encode()
	if err != nil {
		return err
	}

	token, _ := c.accessToken(ctx)
	resp, err := c.send(withoutTimeout(ctx), r, payload, token, nil)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, err := c.result(r, resp)
		return err
	}
	defer resp.Body.Close()

	start := time.Now()
	chunks := 0
	rd := transform.NewReader(resp.Body, unicode.UTF8.NewDecoder())
	buf := make([]byte, streamReadSize)

	for {
		n, rerr := rd.Read(buf)
		if n > 0 {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			chunks++
			onChunk(string(buf[:n]))
		}

		switch {
		case rerr == nil:
		case errors.Is(rerr, io.EOF):
			c.log.Debug("stream_done",
				slog.String("path", path),
				slog.Int("chunks", chunks),
				slog.Duration("dur", time.Since(start)),
			)
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			c.log.Warn("stream_failed", slog.String("op", op), slog.String("err", rerr.Error()))
			return &TransportError{Method: r.Method, Path: path, Err: rerr}
		}
	}
}
