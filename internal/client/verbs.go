package client

import (
	"context"
	"net/http"
	"net/url"
)

// Do выполняет запрос и декодирует успешный ответ в T.
// Пустой ответ (204) даёт нулевое значение T.
func Do[T any](ctx context.Context, c *Client, r Request) (T, error) {
	var out T

	res, err := c.Execute(ctx, r)
	if err != nil {
		return out, err
	}

	if err := res.Decode(&out); err != nil {
		return out, err
	}

	return out, nil
}

// Get — GET с параметрами; параметры с пустыми значениями не передаются.
func Get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	return Do[T](ctx, c, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post — POST с JSON-телом (nil — без тела).
func Post[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return Do[T](ctx, c, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put — PUT с JSON-телом.
func Put[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return Do[T](ctx, c, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch — PATCH с JSON-телом.
func Patch[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	return Do[T](ctx, c, Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete — DELETE без тела.
func Delete[T any](ctx context.Context, c *Client, path string) (T, error) {
	return Do[T](ctx, c, Request{Method: http.MethodDelete, Path: path})
}

// NoContent — тип результата для вызовов без полезной нагрузки.
type NoContent struct{}
