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

// LedgerRepository хранит историю просмотров и выполняет атомарные начисления.
type LedgerRepository struct {
	db *sqlx.DB
}

// NewLedgerRepository создаёт экземпляр репозитория.
func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// CountRecentWatches считает зачтённые просмотры пары (пользователь, видео) начиная с since.
func (r *LedgerRepository) CountRecentWatches(ctx context.Context, userID uuid.UUID, videoID string, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM watch_events
		WHERE user_id = $1 AND video_id = $2 AND watched_at >= $3
	`, userID, videoID, since)
	if err != nil {
		return 0, fmt.Errorf("ledger repository: count recent watches %w", err)
	}
	return count, nil
}

// CreditWatch в одной транзакции записывает просмотр, начисляет пользователю
// p.Credit и, если у пользователя есть действующий пригласивший, начисляет
// ему p.ReferralBonus.
//
// Строка пользователя блокируется до проверки окна дублей, поэтому
// параллельные начисления одной пары (пользователь, видео) выполняются
// по очереди и зачитывается не более одного просмотра в окне.
func (r *LedgerRepository) CreditWatch(ctx context.Context, p models.CreditParams) (*models.CreditResult, error) {
	var result *models.CreditResult

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var owner struct {
			Balance    decimal.Decimal `db:"balance"`
			ReferredBy *string         `db:"referred_by"`
		}
		err := tx.GetContext(ctx, &owner, `SELECT balance, referred_by FROM users WHERE id = $1 FOR UPDATE`, p.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrUserNotFound
			}
			return fmt.Errorf("ledger repository: lock user %w", err)
		}

		var recent int
		err = tx.GetContext(ctx, &recent, `
			SELECT COUNT(*) FROM watch_events
			WHERE user_id = $1 AND video_id = $2 AND watched_at >= $3
		`, p.UserID, p.VideoID, p.WindowStart)
		if err != nil {
			return fmt.Errorf("ledger repository: duplicate check %w", err)
		}
		if recent > 0 {
			return ErrDuplicateWatch
		}

		event := models.WatchEvent{
			ID:             uuid.New(),
			UserID:         p.UserID,
			VideoID:        p.VideoID,
			WatchedSeconds: p.WatchedSeconds,
			Credited:       p.Credit,
			WatchedAt:      p.Now,
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO watch_events (id, user_id, video_id, watched_seconds, credited, watched_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, event.ID, event.UserID, event.VideoID, event.WatchedSeconds, event.Credited, event.WatchedAt)
		if err != nil {
			return fmt.Errorf("ledger repository: insert watch event %w", err)
		}

		newBalance, err := addToBalance(ctx, tx, p.UserID, p.Credit)
		if err != nil {
			return err
		}
		if err := recordTransaction(ctx, tx, p.UserID, models.TransactionTypeWatchCredit, p.Credit, &event.ID, newBalance); err != nil {
			return err
		}

		result = &models.CreditResult{
			Event:         event,
			NewBalance:    newBalance,
			ReferralBonus: decimal.Zero,
		}

		if owner.ReferredBy == nil || *owner.ReferredBy == "" || !p.ReferralBonus.IsPositive() {
			return nil
		}

		// Код может не принадлежать никому: бонус тогда просто не начисляется.
		var referrer struct {
			ID      uuid.UUID       `db:"id"`
			Balance decimal.Decimal `db:"balance"`
		}
		err = tx.GetContext(ctx, &referrer, `
			UPDATE users SET balance = balance + $1, updated_at = NOW()
			WHERE referral_code = $2 AND id <> $3
			RETURNING id, balance
		`, p.ReferralBonus, *owner.ReferredBy, p.UserID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("ledger repository: credit referrer %w", err)
		}
		if err := recordTransaction(ctx, tx, referrer.ID, models.TransactionTypeReferralBonus, p.ReferralBonus, &event.ID, referrer.Balance); err != nil {
			return err
		}

		result.ReferrerID = &referrer.ID
		result.ReferralBonus = p.ReferralBonus
		result.ReferrerBalance = &referrer.Balance
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// ListWatches возвращает историю просмотров пользователя.
func (r *LedgerRepository) ListWatches(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WatchEvent, error) {
	events := []models.WatchEvent{}
	err := r.db.SelectContext(ctx, &events, `
		SELECT id, user_id, video_id, watched_seconds, credited, watched_at
		FROM watch_events WHERE user_id = $1
		ORDER BY watched_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: list watches %w", err)
	}
	return events, nil
}

// ListTransactions возвращает журнал изменений баланса пользователя.
func (r *LedgerRepository) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BalanceTransaction, error) {
	transactions := []models.BalanceTransaction{}
	err := r.db.SelectContext(ctx, &transactions, `
		SELECT id, user_id, type, amount, reference_id, balance_after, created_at
		FROM balance_transactions WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("ledger repository: list transactions %w", err)
	}
	return transactions, nil
}

// addToBalance изменяет баланс на delta (может быть отрицательной) и возвращает новое значение.
func addToBalance(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := tx.GetContext(ctx, &balance, `
		UPDATE users SET balance = balance + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING balance
	`, userID, delta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, ErrUserNotFound
		}
		if common.IsCheckViolation(err) {
			return decimal.Zero, ErrInsufficientFunds
		}
		return decimal.Zero, fmt.Errorf("ledger repository: update balance %w", err)
	}
	return balance, nil
}

// recordTransaction добавляет запись в журнал баланса.
func recordTransaction(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, txType string, amount decimal.Decimal, referenceID *uuid.UUID, balanceAfter decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO balance_transactions (id, user_id, type, amount, reference_id, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), userID, txType, amount, referenceID, balanceAfter)
	if err != nil {
		return fmt.Errorf("ledger repository: record %s transaction %w", txType, err)
	}
	return nil
}
