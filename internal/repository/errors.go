package repository

import (
	"errors"

	"github.com/ignatzorin/watchpay-backend/internal/repository/common"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrWithdrawalNotFound   = errors.New("withdrawal not found")
	ErrWithdrawalNotPending = errors.New("withdrawal is not pending")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrDuplicateWatch       = errors.New("watch already credited within window")
	ErrTxConflict           = common.ErrTxConflict
)
