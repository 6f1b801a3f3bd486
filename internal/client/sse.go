package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Максимальная длина одной строки событийного потока.
const maxSSELine = 1 << 20

// Event — одно событие server-sent events.
type Event struct {
	ID   string
	Type string
	Data string
}

// Handlers — обработчики канала событий. Любой из них может быть nil.
type Handlers struct {
	OnOpen    func()
	OnMessage func(Event)
	// OnError вызывается при сбое транспорта или неуспешном статусе,
	// после чего канал закрывается.
	OnError func(error)
	// OnClose вызывается ровно один раз при завершении канала по любой причине.
	OnClose func()
}

// Connect открывает канал событий. Access-токен передаётся параметром
// access_token: у этого транспорта нет произвольных заголовков.
// Канал не участвует в обновлении токена: истёкший токен даёт OnError.
//
// Возвращает функцию закрытия: она идемпотентна и возвращается только
// после остановки чтения, так что обработчики больше не вызываются.
func (c *Client) Connect(ctx context.Context, path string, query url.Values, h Handlers) (func(), error) {
	const op = "client/sse/Connect"

	q := url.Values{}
	for k, vs := range query {
		q[k] = append([]string(nil), vs...)
	}
	if token, ok := c.accessToken(ctx); ok {
		q.Set("access_token", token)
	}

	r := Request{
		Method:   http.MethodGet,
		Path:     path,
		Query:    q,
		Header:   http.Header{"Accept": []string{"text/event-stream"}, "Cache-Control": []string{"no-cache"}},
		SkipAuth: true,
	}

	cctx, cancel := context.WithCancel(withoutTimeout(ctx))
	req, err := c.build(cctx, r, nil, "")
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if h.OnClose != nil {
				h.OnClose()
			}
		}()

		if err := c.consume(cctx, req, r, h); err != nil && cctx.Err() == nil {
			c.log.Warn("sse_failed", slog.String("path", path), slog.String("err", err.Error()))
			if h.OnError != nil {
				h.OnError(err)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

// consume читает поток до конца. Штатного завершения у канала нет: конец
// тела тоже ошибка транспорта.
func (c *Client) consume(ctx context.Context, req *http.Request, r Request, h Handlers) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &TransportError{Method: r.Method, Path: r.Path, Err: unwrapURLError(err)}
	}

	if resp.StatusCode != http.StatusOK {
		_, err := c.result(r, resp)
		if err == nil {
			err = &APIError{Status: resp.StatusCode, Detail: "unexpected status for event stream"}
		}
		return err
	}
	defer resp.Body.Close()

	if h.OnOpen != nil {
		h.OnOpen()
	}

	err = parseEvents(resp.Body, func(ev Event) bool {
		if ctx.Err() != nil {
			return false
		}
		if h.OnMessage != nil {
			h.OnMessage(ev)
		}
		return true
	})
	if err == nil {
		err = io.ErrUnexpectedEOF
	}

	return &TransportError{Method: r.Method, Path: r.Path, Err: err}
}

// parseEvents разбирает text/event-stream и вызывает emit для каждого
// события. emit == false останавливает разбор. Возвращает nil при конце тела.
//
// Поддерживаемые поля: data (несколько строк склеиваются через "\n"),
// event, id. Строки-комментарии (":") и retry игнорируются.
func parseEvents(body io.Reader, emit func(Event) bool) error {
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 4096), maxSSELine)

	var (
		data    strings.Builder
		hasData bool
		evType  string
		lastID  string
	)

	for sc.Scan() {
		line := sc.Text()

		if line == "" {
			if hasData {
				ev := Event{ID: lastID, Type: evType, Data: data.String()}
				if ev.Type == "" {
					ev.Type = "message"
				}
				if !emit(ev) {
					return context.Canceled
				}
			}
			data.Reset()
			hasData = false
			evType = ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "event":
			evType = value
		case "id":
			if !strings.ContainsRune(value, 0) {
				lastID = value
			}
		}
	}

	if err := sc.Err(); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}
