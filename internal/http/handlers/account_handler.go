package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/watchpay-backend/internal/dto"
	"github.com/ignatzorin/watchpay-backend/internal/http/handlers/common"
	"github.com/ignatzorin/watchpay-backend/internal/models"
)

// AccountReader описывает операции AccountService, нужные HTTP слою.
type AccountReader interface {
	GetAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	ListWatches(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WatchEvent, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.BalanceTransaction, error)
	ListUsers(ctx context.Context, limit, offset int) ([]models.User, error)
}

// AccountHandler отдаёт баланс, реферальную ссылку и историю пользователя.
type AccountHandler struct {
	accounts AccountReader
}

func NewAccountHandler(accounts AccountReader) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

// Me GET /me
func (h *AccountHandler) Me(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	account, err := h.accounts.GetAccount(c.Request.Context(), userID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, account)
}

// ListWatches GET /me/watches
func (h *AccountHandler) ListWatches(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	watches, err := h.accounts.ListWatches(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewListResponse(watches, limit, offset))
}

// ListTransactions GET /me/transactions
func (h *AccountHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.Fail(c, err)
		return
	}

	limit, offset := common.GetPagination(c)
	txs, err := h.accounts.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewListResponse(txs, limit, offset))
}

// ListUsers GET /admin/users
func (h *AccountHandler) ListUsers(c *gin.Context) {
	limit, offset := common.GetPagination(c)
	users, err := h.accounts.ListUsers(c.Request.Context(), limit, offset)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.RespondJSON(c, http.StatusOK, dto.NewListResponse(users, limit, offset))
}
