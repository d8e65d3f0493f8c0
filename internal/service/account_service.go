package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/watchpay-backend/internal/config"
	"github.com/ignatzorin/watchpay-backend/internal/models"
	"github.com/ignatzorin/watchpay-backend/internal/pkg/apperror"
	"github.com/ignatzorin/watchpay-backend/internal/repository"
)

type AccountUsers interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	CountReferrals(ctx context.Context, code string) (int, error)
	List(ctx context.Context, limit, offset int) ([]models.User, error)
}

type AccountHistory interface {
	ListWatches(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WatchEvent, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BalanceTransaction, error)
}

// AccountService отдаёт данные личного кабинета и списки для администратора.
// Баланс здесь только читается.
type AccountService struct {
	users   AccountUsers
	history AccountHistory
	rewards config.RewardConfig
	baseURL string
}

func NewAccountService(users AccountUsers, history AccountHistory, rewards config.RewardConfig, publicBaseURL string) *AccountService {
	return &AccountService{
		users:   users,
		history: history,
		rewards: rewards,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

// GetAccount возвращает баланс, реферальную ссылку и число приглашённых.
func (s *AccountService) GetAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, apperror.StorageFailure(err)
	}

	count, err := s.users.CountReferrals(ctx, user.ReferralCode)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}

	return &models.Account{
		User:           user,
		ReferralLink:   s.ReferralLink(user.ReferralCode),
		ReferralCount:  count,
		MinWithdrawal:  s.rewards.MinWithdrawal,
		CreditPerWatch: s.rewards.CreditPerWatch,
	}, nil
}

// ReferralLink формирует ссылку на регистрацию с кодом пригласившего.
func (s *AccountService) ReferralLink(code string) string {
	return s.baseURL + "/register?ref=" + code
}

func (s *AccountService) ListWatches(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WatchEvent, error) {
	events, err := s.history.ListWatches(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	return events, nil
}

func (s *AccountService) ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BalanceTransaction, error) {
	txs, err := s.history.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	return txs, nil
}

func (s *AccountService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	users, err := s.users.List(ctx, limit, offset)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	return users, nil
}
