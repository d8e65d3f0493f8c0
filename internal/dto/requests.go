package dto

import "github.com/shopspring/decimal"

// RegisterRequest represents the request to register a user
type RegisterRequest struct {
	Username     string `json:"username" binding:"required"`
	Email        string `json:"email"`
	Password     string `json:"password" binding:"required"`
	ReferralCode string `json:"referral_code"`
}

// LoginRequest represents the request to log in
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest represents the request to rotate a token pair
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// ReportWatchRequest represents a client report of a finished video view.
// Missing numbers are read as zero.
type ReportWatchRequest struct {
	VideoID        string  `json:"video_id"`
	WatchedSeconds float64 `json:"watched_seconds"`
	VideoDuration  float64 `json:"video_duration"`
}

// CreateWithdrawalRequest represents the request to withdraw funds
type CreateWithdrawalRequest struct {
	Amount *decimal.Decimal `json:"amount"`
}

// ProcessWithdrawalRequest represents an admin decision on a withdrawal
type ProcessWithdrawalRequest struct {
	Action string `json:"action" binding:"required"`
}
