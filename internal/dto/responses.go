package dto

import (
	"github.com/ignatzorin/watchpay-backend/internal/models"
	"github.com/ignatzorin/watchpay-backend/internal/service"
)

// AuthResponse represents a user together with a fresh token pair
type AuthResponse struct {
	User   *models.User       `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
}

// ProcessWithdrawalResponse represents the outcome of an admin decision
type ProcessWithdrawalResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ListResponse wraps a paginated list
type ListResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewListResponse never returns null items
func NewListResponse[T any](items []T, limit, offset int) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Limit: limit, Offset: offset}
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// StatusResponse represents the watch report error shape
type StatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}
