package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Withdrawal описывает заявку на вывод. Сумма списывается с баланса при создании,
// при отклонении возвращается.
type Withdrawal struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Status         string          `db:"status" json:"status"`
	IdempotencyKey *string         `db:"idempotency_key" json:"-"`
	RequestedAt    time.Time       `db:"requested_at" json:"requested_at"`
	ProcessedAt    *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
}

// WithdrawalWithUser строка админского списка заявок.
type WithdrawalWithUser struct {
	Withdrawal
	Username *string `db:"username" json:"username,omitempty"`
}

// WithdrawalFilter фильтр для админского списка.
type WithdrawalFilter struct {
	Status string
	Limit  int
	Offset int
}
