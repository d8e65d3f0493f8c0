package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/watchpay-backend/internal/config"
	"github.com/ignatzorin/watchpay-backend/internal/models"
	"github.com/ignatzorin/watchpay-backend/internal/pkg/apperror"
	"github.com/ignatzorin/watchpay-backend/internal/repository"
)

// CreditLedger атомарно записывает просмотр и начисления.
type CreditLedger interface {
	CreditWatch(ctx context.Context, p models.CreditParams) (*models.CreditResult, error)
}

// CreditingEngine начисляет пользователю фиксированную сумму за просмотр
// и бонус пригласившему.
type CreditingEngine struct {
	ledger   CreditLedger
	credit   decimal.Decimal
	fraction decimal.Decimal
	window   time.Duration
	now      func() time.Time
}

func NewCreditingEngine(ledger CreditLedger, rewards config.RewardConfig) *CreditingEngine {
	return &CreditingEngine{
		ledger:   ledger,
		credit:   rewards.CreditPerWatch,
		fraction: rewards.ReferralBonusFraction,
		window:   rewards.DuplicateWindow,
		now:      time.Now,
	}
}

// ReferralBonus возвращает бонус пригласившему за одно начисление.
func (e *CreditingEngine) ReferralBonus() decimal.Decimal {
	return e.credit.Mul(e.fraction)
}

// CreditWatch вызывается только после вердикта Credit. Если за время между
// проверкой и начислением просмотр уже был засчитан, возвращается
// repository.ErrDuplicateWatch и ничего не меняется.
func (e *CreditingEngine) CreditWatch(ctx context.Context, userID uuid.UUID, videoID string, watchedSeconds float64) (*models.CreditResult, error) {
	now := e.now()
	result, err := e.ledger.CreditWatch(ctx, models.CreditParams{
		UserID:         userID,
		VideoID:        strings.TrimSpace(videoID),
		WatchedSeconds: watchedSeconds,
		Credit:         e.credit,
		ReferralBonus:  e.ReferralBonus(),
		WindowStart:    now.Add(-e.window),
		Now:            now,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateWatch):
			return nil, err
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, apperror.ErrUserNotFound
		default:
			return nil, storageFailure(err)
		}
	}
	return result, nil
}
