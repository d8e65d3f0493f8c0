package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/watchpay-backend/internal/dto"
	"github.com/ignatzorin/watchpay-backend/internal/http/handlers/common"
	"github.com/ignatzorin/watchpay-backend/internal/models"
	"github.com/ignatzorin/watchpay-backend/internal/pkg/apperror"
)

// WatchReporter описывает RewardService для HTTP слоя.
type WatchReporter interface {
	ReportWatch(ctx context.Context, userID uuid.UUID, videoID string, watchedSeconds, videoDuration float64) (*models.WatchReport, error)
}

type WatchHandler struct {
	rewards WatchReporter
}

func NewWatchHandler(rewards WatchReporter) *WatchHandler {
	return &WatchHandler{rewards: rewards}
}

// Report POST /watch/report
// Некорректные данные отвечают {"status":"error"} с кодом 400,
// незасчитанный просмотр отвечает {"status":"ignored"} с кодом 200.
func (h *WatchHandler) Report(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.ReportWatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.StatusResponse{Status: models.WatchStatusError, Message: "invalid data"})
		return
	}

	report, err := h.rewards.ReportWatch(c.Request.Context(), userID, req.VideoID, req.WatchedSeconds, req.VideoDuration)
	if err != nil {
		if apperror.IsInvalidInput(err) {
			c.JSON(http.StatusBadRequest, dto.StatusResponse{Status: models.WatchStatusError, Message: errorMessage(err)})
			return
		}
		common.Fail(c, err)
		return
	}

	common.RespondJSON(c, http.StatusOK, report)
}

func errorMessage(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
