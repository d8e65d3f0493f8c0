package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/watchpay-backend/internal/config"
	"github.com/ignatzorin/watchpay-backend/internal/models"
	"github.com/ignatzorin/watchpay-backend/internal/pkg/apperror"
)

// WatchHistory источник истории просмотров для проверки окна дублей.
type WatchHistory interface {
	CountRecentWatches(ctx context.Context, userID uuid.UUID, videoID string, since time.Time) (int, error)
}

// Verdict решение о том, можно ли начислить за просмотр.
type Verdict struct {
	Credit bool
	Reason string
}

var creditVerdict = Verdict{Credit: true}

func ignoreVerdict(reason string) Verdict {
	return Verdict{Reason: reason}
}

// WatchVerifier проверяет сообщение о просмотре. Состояние не меняет.
type WatchVerifier struct {
	history   WatchHistory
	threshold decimal.Decimal
	window    time.Duration
	now       func() time.Time
}

// NewWatchVerifier создаёт проверку просмотров с порогом и окном из конфигурации.
func NewWatchVerifier(history WatchHistory, rewards config.RewardConfig) *WatchVerifier {
	return &WatchVerifier{
		history:   history,
		threshold: rewards.CompletionThreshold,
		window:    rewards.DuplicateWindow,
		now:       time.Now,
	}
}

// Verify возвращает Credit, Ignore(duplicate), Ignore(incomplete) или ошибку InvalidInput.
func (v *WatchVerifier) Verify(ctx context.Context, userID uuid.UUID, videoID string, watchedSeconds, videoDuration float64) (Verdict, error) {
	if err := validateWatch(videoID, watchedSeconds, videoDuration); err != nil {
		return Verdict{}, err
	}

	since := v.now().Add(-v.window)
	count, err := v.history.CountRecentWatches(ctx, userID, strings.TrimSpace(videoID), since)
	if err != nil {
		return Verdict{}, apperror.StorageFailure(err)
	}
	if count > 0 {
		return ignoreVerdict(models.IgnoreReasonDuplicate), nil
	}

	if !isComplete(watchedSeconds, videoDuration, v.threshold) {
		return ignoreVerdict(models.IgnoreReasonIncomplete), nil
	}

	return creditVerdict, nil
}

func validateWatch(videoID string, watchedSeconds, videoDuration float64) error {
	if strings.TrimSpace(videoID) == "" {
		return apperror.ErrEmptyVideoID
	}
	if math.IsNaN(videoDuration) || math.IsInf(videoDuration, 0) || videoDuration <= 0 {
		return apperror.ErrInvalidDuration
	}
	if math.IsNaN(watchedSeconds) || math.IsInf(watchedSeconds, 0) || watchedSeconds < 0 {
		return apperror.ErrInvalidWatchedTime
	}
	return nil
}

// isComplete сравнивает в десятичной арифметике: ровно threshold*duration засчитывается.
func isComplete(watchedSeconds, videoDuration float64, threshold decimal.Decimal) bool {
	required := threshold.Mul(decimal.NewFromFloat(videoDuration))
	return decimal.NewFromFloat(watchedSeconds).GreaterThanOrEqual(required)
}
