package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Максимальный размер тела ответа, читаемого целиком.
const maxBodyBytes = 8 << 20

// ErrBodyTooLarge — тело ответа длиннее maxBodyBytes. Усечённое тело
// вызывающему не отдаётся.
var ErrBodyTooLarge = errors.New("response body too large")

// Kind — тег результата классификации ответа.
type Kind int

const (
	// KindSuccess — 2xx с непустым телом.
	KindSuccess Kind = iota + 1
	// KindEmpty — 204 No Content или 2xx без тела.
	KindEmpty
	// KindError — любой не-2xx статус.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindEmpty:
		return "empty"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Result — классифицированный ответ.
type Result struct {
	Kind        Kind
	Status      int
	Header      http.Header
	ContentType string
	Body        []byte
	// Err заполнен только для KindError.
	Err *APIError
}

// IsJSON сообщает, объявлено ли тело как JSON.
func (r *Result) IsJSON() bool {
	return r.ContentType == "application/json" || strings.HasSuffix(r.ContentType, "+json")
}

// Decode разбирает JSON-тело в v. Пустой результат оставляет v без изменений.
func (r *Result) Decode(v any) error {
	const op = "client/response/Decode"

	if r.Kind == KindEmpty || v == nil {
		return nil
	}
	if r.Kind != KindSuccess {
		return fmt.Errorf("%s: cannot decode %s result", op, r.Kind)
	}

	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Text возвращает тело как строку (для не-JSON ответов).
func (r *Result) Text() string { return string(r.Body) }

// classify читает и закрывает тело, затем раскладывает ответ по статусу
// и объявленному Content-Type. Ошибка возвращается при сбое чтения или
// если тело не помещается в maxBodyBytes.
func classify(resp *http.Response) (*Result, error) {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if len(body) > maxBodyBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, maxBodyBytes)
	}

	ct := ""
	if v := resp.Header.Get("Content-Type"); v != "" {
		if mt, _, perr := mime.ParseMediaType(v); perr == nil {
			ct = mt
		}
	}

	res := &Result{
		Status:      resp.StatusCode,
		Header:      resp.Header,
		ContentType: ct,
		Body:        body,
	}

	switch {
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		res.Kind = KindError
		res.Err = parseAPIError(resp.StatusCode, resp.Status, body)
	case resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0:
		res.Kind = KindEmpty
	default:
		res.Kind = KindSuccess
	}

	return res, nil
}

// discard дочитывает и закрывает тело, чтобы соединение вернулось в пул.
func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
}
