package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WatchEvent запись о зачтённом просмотре. Только добавляется.
type WatchEvent struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`
	VideoID        string          `db:"video_id" json:"video_id"`
	WatchedSeconds float64         `db:"watched_seconds" json:"watched_seconds"`
	Credited       decimal.Decimal `db:"credited" json:"credited"`
	WatchedAt      time.Time       `db:"watched_at" json:"watched_at"`
}

// BalanceTransaction запись журнала изменений баланса.
type BalanceTransaction struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	UserID       uuid.UUID       `db:"user_id" json:"user_id"`
	Type         string          `db:"type" json:"type"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	ReferenceID  *uuid.UUID      `db:"reference_id" json:"reference_id,omitempty"`
	BalanceAfter decimal.Decimal `db:"balance_after" json:"balance_after"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// CreditParams содержит входные данные атомарного начисления за просмотр.
type CreditParams struct {
	UserID         uuid.UUID
	VideoID        string
	WatchedSeconds float64
	Credit         decimal.Decimal
	ReferralBonus  decimal.Decimal
	WindowStart    time.Time
	Now            time.Time
}

// CreditResult итог начисления.
type CreditResult struct {
	Event           WatchEvent       `json:"event"`
	NewBalance      decimal.Decimal  `json:"new_balance"`
	ReferrerID      *uuid.UUID       `json:"referrer_id,omitempty"`
	ReferralBonus   decimal.Decimal  `json:"referral_bonus"`
	ReferrerBalance *decimal.Decimal `json:"-"`
}

// WatchReport ответ на сообщение о просмотре.
type WatchReport struct {
	Status   string           `json:"status"`
	Credited *decimal.Decimal `json:"credited,omitempty"`
	Balance  *decimal.Decimal `json:"balance,omitempty"`
	Reason   string           `json:"reason,omitempty"`
}
