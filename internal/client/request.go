package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request — описание одного логического вызова. Не сохраняется между вызовами.
type Request struct {
	Method string
	// Path — путь относительно базового адреса, например "/api/v1/notes/".
	Path string
	// Query — параметры строки запроса; ключи с пустыми значениями отбрасываются.
	Query  url.Values
	Header http.Header
	// Body кодируется в JSON один раз; nil означает запрос без тела.
	Body any
	// SkipAuth — не прикладывать access-токен (login, register, refresh).
	SkipAuth bool
}

// payload — закодированное тело, переиспользуемое при повторе запроса.
type payload []byte

func (r Request) encode() (payload, error) {
	if r.Body == nil {
		return nil, nil
	}

	switch b := r.Body.(type) {
	case []byte:
		return b, nil
	case json.RawMessage:
		return payload(b), nil
	}

	b, err := json.Marshal(r.Body)
	if err != nil {
		return nil, err
	}

	return b, nil
}

// build собирает *http.Request для одной попытки. Тело создаётся заново,
// поэтому повтор после refresh отправляет те же байты.
func (c *Client) build(ctx context.Context, r Request, body payload, token string) (*http.Request, error) {
	const op = "client/request/build"

	u, err := c.resolve(r.Path, r.Query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req, nil
}

// resolve склеивает базовый адрес, путь и непустые параметры запроса.
func (c *Client) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", err
	}

	u := *c.base
	u.Path = strings.TrimSuffix(c.base.Path, "/") + "/" + strings.TrimPrefix(ref.Path, "/")
	if ref.RawPath != "" {
		u.RawPath = strings.TrimSuffix(c.base.EscapedPath(), "/") + "/" + strings.TrimPrefix(ref.RawPath, "/")
	}

	q := ref.Query()
	for k, vs := range query {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
