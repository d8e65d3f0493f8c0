package handlers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/watchpay-backend/internal/models"
	"github.com/ignatzorin/watchpay-backend/internal/pkg/apperror"
)

type mockWithdrawals struct {
	mock.Mock
}

func (m *mockWithdrawals) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, idempotencyKey string) (*models.Withdrawal, error) {
	args := m.Called(ctx, userID, amount.String(), idempotencyKey)
	w, _ := args.Get(0).(*models.Withdrawal)
	return w, args.Error(1)
}

func (m *mockWithdrawals) ListUserWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	args := m.Called(ctx, userID, limit, offset)
	list, _ := args.Get(0).([]models.Withdrawal)
	return list, args.Error(1)
}

func (m *mockWithdrawals) ListWithdrawals(ctx context.Context, filter models.WithdrawalFilter) ([]models.WithdrawalWithUser, error) {
	args := m.Called(ctx, filter)
	list, _ := args.Get(0).([]models.WithdrawalWithUser)
	return list, args.Error(1)
}

func (m *mockWithdrawals) ProcessWithdrawal(ctx context.Context, id uuid.UUID, action string) (string, error) {
	args := m.Called(ctx, id, action)
	return args.String(0), args.Error(1)
}

func TestWithdrawalHandler_Create_PassesIdempotencyKey(t *testing.T) {
	userID := uuid.New()
	created := &models.Withdrawal{
		ID:          uuid.New(),
		UserID:      userID,
		Amount:      decimal.RequireFromString("6"),
		Status:      models.WithdrawalStatusPending,
		RequestedAt: time.Now(),
	}
	svc := &mockWithdrawals{}
	svc.On("RequestWithdrawal", mock.Anything, userID, "6", "key-1").Return(created, nil)

	r := newTestRouter(userID)
	r.POST("/withdrawals", NewWithdrawalHandler(svc).CreateWithdrawal)

	w := doJSON(r, http.MethodPost, "/withdrawals", `{"amount": 6}`, map[string]string{IdempotencyKeyHeader: "key-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "6", body["amount"])
	svc.AssertExpectations(t)
}

func TestWithdrawalHandler_Create_Errors(t *testing.T) {
	userID := uuid.New()
	svc := &mockWithdrawals{}
	svc.On("RequestWithdrawal", mock.Anything, userID, "4", "").Return(nil, apperror.ErrBelowMinWithdrawal)
	svc.On("RequestWithdrawal", mock.Anything, userID, "50", "").Return(nil, apperror.ErrInsufficientFunds)

	r := newTestRouter(userID)
	r.POST("/withdrawals", NewWithdrawalHandler(svc).CreateWithdrawal)

	tests := []struct {
		name   string
		body   string
		status int
		code   apperror.ErrorCode
	}{
		{"below minimum", `{"amount": "4"}`, http.StatusUnprocessableEntity, apperror.ErrCodeInvalidAmount},
		{"insufficient funds", `{"amount": 50}`, http.StatusUnprocessableEntity, apperror.ErrCodeInvalidAmount},
		{"missing amount", `{}`, http.StatusUnprocessableEntity, apperror.ErrCodeInvalidAmount},
		{"not a number", `{"amount": "много"}`, http.StatusBadRequest, apperror.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/withdrawals", tt.body, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, string(tt.code), decodeBody(t, w)["code"])
		})
	}
}

func TestWithdrawalHandler_List_UsesPagination(t *testing.T) {
	userID := uuid.New()
	svc := &mockWithdrawals{}
	svc.On("ListUserWithdrawals", mock.Anything, userID, 100, 0).Return(nil, nil)

	r := newTestRouter(userID)
	r.GET("/withdrawals", NewWithdrawalHandler(svc).ListWithdrawals)

	w := doJSON(r, http.MethodGet, "/withdrawals?limit=500&offset=-3", nil, nil)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, []any{}, body["items"])
	assert.Equal(t, float64(100), body["limit"])
	svc.AssertExpectations(t)
}

func TestWithdrawalHandler_AdminList_FiltersByStatus(t *testing.T) {
	username := "alice"
	svc := &mockWithdrawals{}
	svc.On("ListWithdrawals", mock.Anything, models.WithdrawalFilter{Status: "pending", Limit: 20}).
		Return([]models.WithdrawalWithUser{{
			Withdrawal: models.Withdrawal{ID: uuid.New(), Status: models.WithdrawalStatusPending},
			Username:   &username,
		}}, nil)
	svc.On("ListWithdrawals", mock.Anything, models.WithdrawalFilter{Status: "paid", Limit: 20}).
		Return(nil, apperror.New(apperror.ErrCodeInvalidInput, "неизвестный статус заявки"))

	r := newTestRouter(uuid.New())
	r.GET("/admin/withdrawals", NewWithdrawalHandler(svc).AdminList)

	w := doJSON(r, http.MethodGet, "/admin/withdrawals?status=pending", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decodeBody(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "alice", items[0].(map[string]any)["username"])

	w = doJSON(r, http.MethodGet, "/admin/withdrawals?status=paid", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestWithdrawalHandler_Process(t *testing.T) {
	pendingID, doneID, missingID := uuid.New(), uuid.New(), uuid.New()
	svc := &mockWithdrawals{}
	svc.On("ProcessWithdrawal", mock.Anything, pendingID, "reject").Return(models.WithdrawalStatusRejected, nil)
	svc.On("ProcessWithdrawal", mock.Anything, doneID, "approve").Return("", apperror.ErrWithdrawalNotPending)
	svc.On("ProcessWithdrawal", mock.Anything, missingID, "approve").Return("", apperror.ErrWithdrawalNotFound)
	svc.On("ProcessWithdrawal", mock.Anything, pendingID, "pay").Return("", apperror.ErrUnknownAction)

	r := newTestRouter(uuid.New())
	r.POST("/admin/withdrawals/:id/process", NewWithdrawalHandler(svc).Process)

	tests := []struct {
		name   string
		id     string
		action string
		status int
	}{
		{"reject pending", pendingID.String(), "reject", http.StatusOK},
		{"already processed", doneID.String(), "approve", http.StatusConflict},
		{"missing", missingID.String(), "approve", http.StatusNotFound},
		{"unknown action", pendingID.String(), "pay", http.StatusBadRequest},
		{"invalid id", "not-a-uuid", "approve", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(r, http.MethodPost, "/admin/withdrawals/"+tt.id+"/process", map[string]string{"action": tt.action}, nil)
			assert.Equal(t, tt.status, w.Code)
		})
	}

	w := doJSON(r, http.MethodPost, "/admin/withdrawals/"+pendingID.String()+"/process", map[string]string{"action": "reject"}, nil)
	assert.Equal(t, "rejected", decodeBody(t, w)["status"])
}
