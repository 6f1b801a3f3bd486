// models — входные/выходные модели REST API backend'а. Поля зеркалят
// JSON-схемы сервера; метки времени передаются строками ISO-8601 как есть.
package models

// Page — страница результатов списочных эндпоинтов.
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// ErrorBody — тело ответа с ошибкой.
type ErrorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// ListParams — общие параметры сортировки и пагинации.
type ListParams struct {
	SortBy    string
	SortOrder string
	Page      int
	PageSize  int
}
