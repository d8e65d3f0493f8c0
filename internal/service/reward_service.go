package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/watchpay-backend/internal/logger"
	"github.com/ignatzorin/watchpay-backend/internal/metrics"
	"github.com/ignatzorin/watchpay-backend/internal/models"
	"github.com/ignatzorin/watchpay-backend/internal/pkg/apperror"
	"github.com/ignatzorin/watchpay-backend/internal/repository"
)

// События, отправляемые пользователю по WebSocket.
const (
	EventBalanceUpdated      = "balance_updated"
	EventWithdrawalProcessed = "withdrawal_processed"
)

// Notifier доставляет события пользователю.
type Notifier interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

type nopNotifier struct{}

func (nopNotifier) BroadcastToUser(uuid.UUID, string, any) error { return nil }

// BalanceEvent полезная нагрузка события balance_updated.
type BalanceEvent struct {
	Balance decimal.Decimal `json:"balance"`
	Delta   decimal.Decimal `json:"delta"`
	Reason  string          `json:"reason"`
}

// RewardService обрабатывает сообщения о просмотрах: проверка, затем начисление.
type RewardService struct {
	verifier *WatchVerifier
	engine   *CreditingEngine
	notifier Notifier
}

func NewRewardService(verifier *WatchVerifier, engine *CreditingEngine, notifier Notifier) *RewardService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &RewardService{
		verifier: verifier,
		engine:   engine,
		notifier: notifier,
	}
}

// ReportWatch возвращает status ok с начисленной суммой и новым балансом либо
// status ignored с причиной. Некорректные данные возвращаются ошибкой InvalidInput.
func (s *RewardService) ReportWatch(ctx context.Context, userID uuid.UUID, videoID string, watchedSeconds, videoDuration float64) (*models.WatchReport, error) {
	verdict, err := s.verifier.Verify(ctx, userID, videoID, watchedSeconds, videoDuration)
	if err != nil {
		if apperror.IsInvalidInput(err) {
			metrics.WatchReports.WithLabelValues("error").Inc()
		}
		return nil, err
	}
	if !verdict.Credit {
		metrics.WatchReports.WithLabelValues(verdict.Reason).Inc()
		return ignored(verdict.Reason), nil
	}

	result, err := s.engine.CreditWatch(ctx, userID, videoID, watchedSeconds)
	if err != nil {
		// Параллельный запрос успел зачесть этот же просмотр.
		if errors.Is(err, repository.ErrDuplicateWatch) {
			metrics.WatchReports.WithLabelValues(models.IgnoreReasonDuplicate).Inc()
			return ignored(models.IgnoreReasonDuplicate), nil
		}
		return nil, err
	}

	metrics.WatchReports.WithLabelValues(models.WatchStatusOK).Inc()
	metrics.CreditsIssued.WithLabelValues(models.TransactionTypeWatchCredit).Add(result.Event.Credited.InexactFloat64())

	log := logger.WithFields(logrus.Fields{
		"user_id":  userID,
		"video_id": result.Event.VideoID,
		"credited": result.Event.Credited.String(),
		"balance":  result.NewBalance.String(),
	})

	s.notify(userID, BalanceEvent{
		Balance: result.NewBalance,
		Delta:   result.Event.Credited,
		Reason:  models.TransactionTypeWatchCredit,
	})

	if result.ReferrerID != nil && result.ReferrerBalance != nil {
		metrics.CreditsIssued.WithLabelValues(models.TransactionTypeReferralBonus).Add(result.ReferralBonus.InexactFloat64())
		log = log.WithFields(logrus.Fields{
			"referrer_id":    *result.ReferrerID,
			"referral_bonus": result.ReferralBonus.String(),
		})
		s.notify(*result.ReferrerID, BalanceEvent{
			Balance: *result.ReferrerBalance,
			Delta:   result.ReferralBonus,
			Reason:  models.TransactionTypeReferralBonus,
		})
	}
	log.Info("reward service: просмотр зачтён")

	credited := result.Event.Credited
	balance := result.NewBalance
	return &models.WatchReport{
		Status:   models.WatchStatusOK,
		Credited: &credited,
		Balance:  &balance,
	}, nil
}

func (s *RewardService) notify(userID uuid.UUID, event BalanceEvent) {
	if err := s.notifier.BroadcastToUser(userID, EventBalanceUpdated, event); err != nil {
		logger.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).
			Warn("reward service: не удалось отправить событие")
	}
}

func ignored(reason string) *models.WatchReport {
	return &models.WatchReport{Status: models.WatchStatusIgnored, Reason: reason}
}
