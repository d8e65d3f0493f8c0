package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/watchpay-backend/internal/models"
	"github.com/ignatzorin/watchpay-backend/internal/repository/common"
)

const withdrawalColumns = `id, user_id, amount, status, idempotency_key, requested_at, processed_at`

type WithdrawalRepository struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create резервирует amount на балансе пользователя и создаёт заявку в статусе pending.
// Если idempotencyKey уже использовался этим пользователем, возвращается
// существующая заявка и created = false; баланс при этом не меняется.
func (r *WithdrawalRepository) Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, idempotencyKey *string, now time.Time) (w *models.Withdrawal, created bool, err error) {
	err = common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var balance decimal.Decimal
		err := tx.GetContext(ctx, &balance, `SELECT balance FROM users WHERE id = $1 FOR UPDATE`, userID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("withdrawal repository: lock user %w", err)
		}

		// Повтор проверяется под блокировкой пользователя, поэтому два запроса
		// с одним ключом не могут оба пройти дальше.
		if idempotencyKey != nil {
			existing, err := common.GetOne[models.Withdrawal](ctx, tx, ErrWithdrawalNotFound,
				`SELECT `+withdrawalColumns+` FROM withdrawals WHERE user_id = $1 AND idempotency_key = $2`,
				userID, *idempotencyKey)
			if err == nil {
				w = existing
				return nil
			}
			if err != ErrWithdrawalNotFound {
				return fmt.Errorf("withdrawal repository: idempotency lookup %w", err)
			}
		}

		if balance.LessThan(amount) {
			return ErrInsufficientFunds
		}

		w = &models.Withdrawal{
			ID:             uuid.New(),
			UserID:         userID,
			Amount:         amount,
			Status:         models.WithdrawalStatusPending,
			IdempotencyKey: idempotencyKey,
			RequestedAt:    now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO withdrawals (id, user_id, amount, status, idempotency_key, requested_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, w.ID, w.UserID, w.Amount, w.Status, w.IdempotencyKey, w.RequestedAt)
		if err != nil {
			return fmt.Errorf("withdrawal repository: insert %w", err)
		}

		newBalance, err := addToBalance(ctx, tx, userID, amount.Neg())
		if err != nil {
			return err
		}
		if err := recordTransaction(ctx, tx, userID, models.TransactionTypeWithdrawalReserve, amount.Neg(), &w.ID, newBalance); err != nil {
			return err
		}

		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return w, created, nil
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := common.GetOne[models.Withdrawal](ctx, r.db, ErrWithdrawalNotFound,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id)
	if err != nil && err != ErrWithdrawalNotFound {
		return nil, fmt.Errorf("withdrawal repository: get by id %w", err)
	}
	return w, err
}

func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	withdrawals := []models.Withdrawal{}
	err := r.db.SelectContext(ctx, &withdrawals, `
		SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE user_id = $1 ORDER BY requested_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("withdrawal repository: list by user %w", err)
	}
	return withdrawals, nil
}

// ListAll возвращает заявки всех пользователей с именами, новые сверху.
func (r *WithdrawalRepository) ListAll(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalWithUser, error) {
	withdrawals := []models.WithdrawalWithUser{}
	err := r.db.SelectContext(ctx, &withdrawals, `
		SELECT w.id, w.user_id, w.amount, w.status, w.idempotency_key, w.requested_at, w.processed_at, u.username
		FROM withdrawals w
		LEFT JOIN users u ON u.id = w.user_id
		WHERE ($1 = '' OR w.status = $1)
		ORDER BY w.requested_at DESC
		LIMIT $2 OFFSET $3
	`, filter.Status, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("withdrawal repository: list all %w", err)
	}
	return withdrawals, nil
}

// Approve переводит заявку из pending в approved. Баланс не меняется:
// средства были зарезервированы при создании заявки.
func (r *WithdrawalRepository) Approve(ctx context.Context, id uuid.UUID, now time.Time) (*models.Withdrawal, error) {
	var w *models.Withdrawal
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		if w, err = lockPending(ctx, tx, id); err != nil {
			return err
		}
		if err := setStatus(ctx, tx, w, models.WithdrawalStatusApproved, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Reject переводит заявку из pending в rejected и возвращает зарезервированную
// сумму владельцу заявки в той же транзакции.
func (r *WithdrawalRepository) Reject(ctx context.Context, id uuid.UUID, now time.Time) (*models.Withdrawal, decimal.Decimal, error) {
	var (
		w          *models.Withdrawal
		newBalance decimal.Decimal
	)
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var err error
		if w, err = lockPending(ctx, tx, id); err != nil {
			return err
		}
		if err := setStatus(ctx, tx, w, models.WithdrawalStatusRejected, now); err != nil {
			return err
		}
		if newBalance, err = addToBalance(ctx, tx, w.UserID, w.Amount); err != nil {
			return err
		}
		return recordTransaction(ctx, tx, w.UserID, models.TransactionTypeWithdrawalRefund, w.Amount, &w.ID, newBalance)
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return w, newBalance, nil
}

// lockPending блокирует заявку и проверяет, что она ещё не обработана.
func lockPending(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := common.GetOne[models.Withdrawal](ctx, tx, ErrWithdrawalNotFound,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, ErrWithdrawalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("withdrawal repository: lock %w", err)
	}
	if w.Status != models.WithdrawalStatusPending {
		return w, ErrWithdrawalNotPending
	}
	return w, nil
}

func setStatus(ctx context.Context, tx *sqlx.Tx, w *models.Withdrawal, status string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE withdrawals SET status = $2, processed_at = $3 WHERE id = $1`, w.ID, status, now)
	if err != nil {
		return fmt.Errorf("withdrawal repository: update status %w", err)
	}
	w.Status = status
	w.ProcessedAt = &now
	return nil
}
