package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Коды ошибок PostgreSQL, на которые реагируют репозитории.
const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// ErrTxConflict помечает транзакцию, откатенную из-за конкурентной блокировки.
// Такую операцию можно безопасно повторить целиком.
var ErrTxConflict = errors.New("transaction conflict")

// GetOne выполняет запрос одной строки и подменяет sql.ErrNoRows на notFoundErr.
func GetOne[T any](ctx context.Context, q sqlx.QueryerContext, notFoundErr error, query string, args ...interface{}) (*T, error) {
	var entity T
	if err := sqlx.GetContext(ctx, q, &entity, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFoundErr
		}
		return nil, err
	}
	return &entity, nil
}

// WithTransaction выполняет функцию внутри транзакции с правильной обработкой ошибок.
// Ошибка fn возвращается как есть, чтобы sentinel-ошибки оставались сравнимыми.
// Конфликты сериализации и дедлоки дополнительно помечаются ErrTxConflict.
func WithTransaction(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %w, rollback error: %v", tagRetryable(err), rbErr)
		}
		return tagRetryable(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", tagRetryable(err))
	}

	return nil
}

// IsUniqueViolation сообщает о нарушении уникального индекса.
func IsUniqueViolation(err error) bool {
	return hasPQCode(err, pgUniqueViolation)
}

// IsCheckViolation сообщает о нарушении CHECK-ограничения (например, balance >= 0).
func IsCheckViolation(err error) bool {
	return hasPQCode(err, pgCheckViolation)
}

// IsRetryable сообщает о конфликте сериализации или дедлоке: транзакцию
// откатил сервер, и её можно повторить.
func IsRetryable(err error) bool {
	return hasPQCode(err, pgSerializationFailure) || hasPQCode(err, pgDeadlockDetected)
}

func tagRetryable(err error) error {
	if IsRetryable(err) {
		return errors.Join(ErrTxConflict, err)
	}
	return err
}

func hasPQCode(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}
