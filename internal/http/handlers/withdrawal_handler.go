package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/watchpay-backend/internal/dto"
	"github.com/ignatzorin/watchpay-backend/internal/http/handlers/common"
	"github.com/ignatzorin/watchpay-backend/internal/models"
	"github.com/ignatzorin/watchpay-backend/internal/pkg/apperror"
)

// IdempotencyKeyHeader повтор с тем же ключом возвращает исходную заявку.
const IdempotencyKeyHeader = "Idempotency-Key"

// Withdrawals описывает WithdrawalService для HTTP слоя.
type Withdrawals interface {
	RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, idempotencyKey string) (*models.Withdrawal, error)
	ListUserWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalWithUser, error)
	ProcessWithdrawal(ctx context.Context, id uuid.UUID, action string) (string, error)
}

type WithdrawalHandler struct {
	svc Withdrawals
}

func NewWithdrawalHandler(s Withdrawals) *WithdrawalHandler {
	return &WithdrawalHandler{svc: s}
}

// CreateWithdrawal POST /withdrawals
func (h *WithdrawalHandler) CreateWithdrawal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.CreateWithdrawalRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}
	if req.Amount == nil {
		common.Fail(c, apperror.ErrAmountNotPositive)
		return
	}

	w, err := h.svc.RequestWithdrawal(c.Request.Context(), userID, *req.Amount, c.GetHeader(IdempotencyKeyHeader))
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusCreated, w)
}

// ListWithdrawals GET /withdrawals
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	withdrawals, err := h.svc.ListUserWithdrawals(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewListResponse(withdrawals, limit, offset))
}

// AdminList GET /admin/withdrawals?status=
func (h *WithdrawalHandler) AdminList(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	list, err := h.svc.ListWithdrawals(c.Request.Context(), models.WithdrawalFilter{
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewListResponse(list, limit, offset))
}

// Process POST /admin/withdrawals/:id/process
func (h *WithdrawalHandler) Process(c *gin.Context) {
	id, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	var req dto.ProcessWithdrawalRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	status, err := h.svc.ProcessWithdrawal(c.Request.Context(), id, req.Action)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.ProcessWithdrawalResponse{ID: id.String(), Status: status})
}
