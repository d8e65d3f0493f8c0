package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// User описывает пользователя, получающего начисления за просмотры.
// ReferredBy хранит реферальный код пригласившего, а не его идентификатор.
type User struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Username     string          `db:"username" json:"username"`
	Email        string          `db:"email" json:"email"`
	PasswordHash string          `db:"password_hash" json:"-"`
	ReferralCode string          `db:"referral_code" json:"referral_code"`
	ReferredBy   *string         `db:"referred_by" json:"referred_by,omitempty"`
	Balance      decimal.Decimal `db:"balance" json:"balance"`
	IsAdmin      bool            `db:"is_admin" json:"is_admin"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Role возвращает роль для токена доступа.
func (u *User) Role() string {
	if u.IsAdmin {
		return RoleAdmin
	}
	return RoleUser
}

// Account содержит данные личного кабинета.
type Account struct {
	User           *User           `json:"user"`
	ReferralLink   string          `json:"referral_link"`
	ReferralCount  int             `json:"referral_count"`
	MinWithdrawal  decimal.Decimal `json:"min_withdrawal"`
	CreditPerWatch decimal.Decimal `json:"credit_per_watch"`
}
