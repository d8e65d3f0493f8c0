package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/watchpay-backend/internal/logger"
	"github.com/ignatzorin/watchpay-backend/internal/metrics"
	"github.com/ignatzorin/watchpay-backend/internal/models"
	"github.com/ignatzorin/watchpay-backend/internal/pkg/apperror"
	"github.com/ignatzorin/watchpay-backend/internal/repository"
)

const maxIdempotencyKeyLength = 128

// WithdrawalStore описывает зависимости WithdrawalService от слоя хранилища.
type WithdrawalStore interface {
	Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, idempotencyKey *string, now time.Time) (*models.Withdrawal, bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error)
	ListAll(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalWithUser, error)
	Approve(ctx context.Context, id uuid.UUID, now time.Time) (*models.Withdrawal, error)
	Reject(ctx context.Context, id uuid.UUID, now time.Time) (*models.Withdrawal, decimal.Decimal, error)
}

// WithdrawalEvent полезная нагрузка события withdrawal_processed.
type WithdrawalEvent struct {
	Withdrawal *models.Withdrawal `json:"withdrawal"`
	Balance    *decimal.Decimal   `json:"balance,omitempty"`
}

// WithdrawalService управляет жизненным циклом заявок на вывод:
// pending -> approved | rejected.
type WithdrawalService struct {
	repo          WithdrawalStore
	notifier      Notifier
	minWithdrawal decimal.Decimal
	now           func() time.Time
}

func NewWithdrawalService(repo WithdrawalStore, notifier Notifier, minWithdrawal decimal.Decimal) *WithdrawalService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &WithdrawalService{
		repo:          repo,
		notifier:      notifier,
		minWithdrawal: minWithdrawal,
		now:           time.Now,
	}
}

// RequestWithdrawal резервирует сумму и создаёт заявку в статусе pending.
// Минимальная сумма проверяется раньше баланса.
func (s *WithdrawalService) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, idempotencyKey string) (*models.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, apperror.ErrAmountNotPositive
	}
	if !models.FitsMoneyScale(amount) {
		return nil, apperror.ErrAmountTooPrecise
	}
	if amount.LessThan(s.minWithdrawal) {
		return nil, apperror.ErrBelowMinWithdrawal
	}

	var key *string
	if k := strings.TrimSpace(idempotencyKey); k != "" {
		if len(k) > maxIdempotencyKeyLength {
			return nil, apperror.ErrInvalidIdempotencyKey
		}
		key = &k
	}

	w, created, err := s.repo.Create(ctx, userID, amount, key, s.now())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, apperror.ErrInsufficientFunds
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, apperror.ErrUserNotFound
		default:
			return nil, storageFailure(err)
		}
	}
	if !created {
		return w, nil
	}

	metrics.Withdrawals.WithLabelValues("requested").Inc()
	logger.WithFields(logrus.Fields{
		"user_id":       userID,
		"withdrawal_id": w.ID,
		"amount":        amount.String(),
	}).Info("withdrawal service: создана заявка на вывод")

	return w, nil
}

// Approve переводит заявку в approved. Баланс не меняется.
func (s *WithdrawalService) Approve(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := s.repo.Approve(ctx, id, s.now())
	if err != nil {
		return nil, mapProcessError(err)
	}

	metrics.Withdrawals.WithLabelValues(models.WithdrawalStatusApproved).Inc()
	logger.WithFields(logrus.Fields{
		"user_id":       w.UserID,
		"withdrawal_id": w.ID,
		"amount":        w.Amount.String(),
	}).Info("withdrawal service: заявка одобрена")

	s.notify(w, nil)
	return w, nil
}

// Reject переводит заявку в rejected и возвращает сумму на баланс владельца.
func (s *WithdrawalService) Reject(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	w, balance, err := s.repo.Reject(ctx, id, s.now())
	if err != nil {
		return nil, mapProcessError(err)
	}

	metrics.Withdrawals.WithLabelValues(models.WithdrawalStatusRejected).Inc()
	logger.WithFields(logrus.Fields{
		"user_id":       w.UserID,
		"withdrawal_id": w.ID,
		"refunded":      w.Amount.String(),
		"balance":       balance.String(),
	}).Info("withdrawal service: заявка отклонена, средства возвращены")

	s.notify(w, &balance)
	return w, nil
}

// ProcessWithdrawal применяет действие администратора и возвращает новый статус.
func (s *WithdrawalService) ProcessWithdrawal(ctx context.Context, id uuid.UUID, action string) (string, error) {
	var (
		w   *models.Withdrawal
		err error
	)
	switch strings.ToLower(strings.TrimSpace(action)) {
	case models.WithdrawalActionApprove:
		w, err = s.Approve(ctx, id)
	case models.WithdrawalActionReject:
		w, err = s.Reject(ctx, id)
	default:
		return "", apperror.ErrUnknownAction
	}
	if err != nil {
		return "", err
	}
	return w.Status, nil
}

func (s *WithdrawalService) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrWithdrawalNotFound) {
			return nil, apperror.ErrWithdrawalNotFound
		}
		return nil, apperror.StorageFailure(err)
	}
	return w, nil
}

func (s *WithdrawalService) ListUserWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	list, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	return list, nil
}

// ListWithdrawals возвращает заявки для администратора; при пустом статусе все.
func (s *WithdrawalService) ListWithdrawals(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalWithUser, error) {
	if filter.Status != "" {
		if _, ok := models.ValidWithdrawalStatuses[filter.Status]; !ok {
			return nil, apperror.New(apperror.ErrCodeInvalidInput, "неизвестный статус заявки")
		}
	}
	list, err := s.repo.ListAll(ctx, filter)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	return list, nil
}

func (s *WithdrawalService) notify(w *models.Withdrawal, balance *decimal.Decimal) {
	if err := s.notifier.BroadcastToUser(w.UserID, EventWithdrawalProcessed, WithdrawalEvent{Withdrawal: w, Balance: balance}); err != nil {
		logger.WithFields(logrus.Fields{"withdrawal_id": w.ID, "error": err.Error()}).
			Warn("withdrawal service: не удалось отправить событие")
	}
}

func mapProcessError(err error) error {
	switch {
	case errors.Is(err, repository.ErrWithdrawalNotFound):
		return apperror.ErrWithdrawalNotFound
	case errors.Is(err, repository.ErrWithdrawalNotPending):
		return apperror.ErrWithdrawalNotPending
	default:
		return storageFailure(err)
	}
}

// storageFailure отделяет откат из-за конкурентной блокировки (409, запрос
// можно повторить) от прочих сбоев хранилища.
func storageFailure(err error) error {
	if errors.Is(err, repository.ErrTxConflict) {
		return apperror.ErrConcurrentUpdate.WithCause(err)
	}
	return apperror.StorageFailure(err)
}
