// pkg/models/api.go
package models

// Validation error response: the generic error shape plus per-field messages
type ValidationErrorResponse struct {
	Error  string              `json:"error" example:"Validation failed"`
	Code   string              `json:"code" example:"VALIDATION_FAILED"`
	Errors map[string][]string `json:"errors"`
}

// Generic error response (401/403/404/409/500)
type ErrorResponse struct {
	Error   string `json:"error" example:"Forbidden"`
	Details string `json:"details,omitempty" example:"project 12 is not assigned to you"`
	Code    string `json:"code,omitempty" example:"FORBIDDEN"`
}

// Page is the paginated listing envelope.
type Page[T any] struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
	Pages    int   `json:"pages"`
	Items    []T   `json:"items"`
}
