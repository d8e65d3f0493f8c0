package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/watchpay-backend/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })
	return sqlx.NewDb(mockDB, "postgres"), mock
}

var (
	lockUserForCredit = regexp.QuoteMeta(`SELECT balance, referred_by FROM users WHERE id = $1 FOR UPDATE`)
	countWindow       = regexp.QuoteMeta(`SELECT COUNT(*) FROM watch_events`)
	insertWatch       = regexp.QuoteMeta(`INSERT INTO watch_events`)
	updateBalance     = regexp.QuoteMeta(`UPDATE users SET balance = balance + $2`)
	creditReferrer    = regexp.QuoteMeta(`WHERE referral_code = $2 AND id <> $3`)
	insertJournal     = regexp.QuoteMeta(`INSERT INTO balance_transactions`)
)

func creditParams(userID uuid.UUID) models.CreditParams {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return models.CreditParams{
		UserID:         userID,
		VideoID:        "video-1",
		WatchedSeconds: 90,
		Credit:         decimal.RequireFromString("0.01"),
		ReferralBonus:  decimal.RequireFromString("0.001"),
		WindowStart:    now.Add(-time.Hour),
		Now:            now,
	}
}

func TestLedgerRepository_CreditWatch_WithReferrer(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)
	userID := uuid.New()
	referrerID := uuid.New()
	p := creditParams(userID)

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserForCredit).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "referred_by"}).AddRow("1.5", "alice_ref"))
	mock.ExpectQuery(countWindow).WithArgs(userID, "video-1", p.WindowStart).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(insertWatch).
		WithArgs(sqlmock.AnyArg(), userID, "video-1", float64(90), p.Credit, p.Now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(updateBalance).WithArgs(userID, p.Credit).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1.51"))
	mock.ExpectExec(insertJournal).
		WithArgs(sqlmock.AnyArg(), userID, models.TransactionTypeWatchCredit, p.Credit, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(creditReferrer).WithArgs(p.ReferralBonus, "alice_ref", userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}).AddRow(referrerID.String(), "2.001"))
	mock.ExpectExec(insertJournal).
		WithArgs(sqlmock.AnyArg(), referrerID, models.TransactionTypeReferralBonus, p.ReferralBonus, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := repo.CreditWatch(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, result.NewBalance.Equal(decimal.RequireFromString("1.51")))
	require.NotNil(t, result.ReferrerID)
	assert.Equal(t, referrerID, *result.ReferrerID)
	assert.True(t, result.ReferralBonus.Equal(p.ReferralBonus))
	assert.True(t, result.ReferrerBalance.Equal(decimal.RequireFromString("2.001")))
	assert.Equal(t, "video-1", result.Event.VideoID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_CreditWatch_DanglingReferralSkipsBonus(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)
	userID := uuid.New()
	p := creditParams(userID)

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserForCredit).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "referred_by"}).AddRow("0", "ghost_ref"))
	mock.ExpectQuery(countWindow).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(insertWatch).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(updateBalance).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("0.01"))
	mock.ExpectExec(insertJournal).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(creditReferrer).WithArgs(p.ReferralBonus, "ghost_ref", userID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance"}))
	mock.ExpectCommit()

	result, err := repo.CreditWatch(context.Background(), p)
	require.NoError(t, err)
	assert.Nil(t, result.ReferrerID)
	assert.True(t, result.ReferralBonus.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_CreditWatch_NoReferrer(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserForCredit).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "referred_by"}).AddRow("0", nil))
	mock.ExpectQuery(countWindow).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(insertWatch).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(updateBalance).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("0.01"))
	mock.ExpectExec(insertJournal).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	result, err := repo.CreditWatch(context.Background(), creditParams(userID))
	require.NoError(t, err)
	assert.Nil(t, result.ReferrerID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_CreditWatch_DuplicateRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)
	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserForCredit).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "referred_by"}).AddRow("0.01", nil))
	mock.ExpectQuery(countWindow).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	result, err := repo.CreditWatch(context.Background(), creditParams(userID))
	assert.ErrorIs(t, err, ErrDuplicateWatch)
	assert.Nil(t, result)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_CreditWatch_UserNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserForCredit).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "referred_by"}))
	mock.ExpectRollback()

	_, err := repo.CreditWatch(context.Background(), creditParams(uuid.New()))
	assert.ErrorIs(t, err, ErrUserNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_CreditWatch_InsertFailureRollsBack(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserForCredit).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "referred_by"}).AddRow("0", nil))
	mock.ExpectQuery(countWindow).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(insertWatch).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.CreditWatch(context.Background(), creditParams(uuid.New()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert watch event")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_CreditWatch_DeadlockIsTaggedRetryable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)
	userID := uuid.New()
	p := creditParams(userID)

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserForCredit).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "referred_by"}).AddRow("1", "bob_ref"))
	mock.ExpectQuery(countWindow).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(insertWatch).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(updateBalance).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1.01"))
	mock.ExpectExec(insertJournal).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(creditReferrer).WillReturnError(&pq.Error{Code: "40P01", Message: "deadlock detected"})
	mock.ExpectRollback()

	_, err := repo.CreditWatch(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTxConflict)
	var pqErr *pq.Error
	require.ErrorAs(t, err, &pqErr)
	assert.Equal(t, pq.ErrorCode("40P01"), pqErr.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_CreditWatch_PlainFailureIsNotRetryable(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(lockUserForCredit).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.CreditWatch(context.Background(), creditParams(uuid.New()))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTxConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddToBalance_CheckViolationMeansInsufficientFunds(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(updateBalance).
		WillReturnError(&pq.Error{Code: "23514"})
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	_, err = addToBalance(context.Background(), tx, uuid.New(), decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLedgerRepository_CountRecentWatches(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewLedgerRepository(db)
	userID := uuid.New()
	since := time.Now().Add(-time.Hour)

	mock.ExpectQuery(countWindow).WithArgs(userID, "video-9", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountRecentWatches(context.Background(), userID, "video-9", since)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
