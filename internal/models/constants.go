package models

// Роли пользователей
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Статусы заявок на вывод
const (
	WithdrawalStatusPending  = "pending"
	WithdrawalStatusApproved = "approved"
	WithdrawalStatusRejected = "rejected"
)

// Действия администратора над заявкой
const (
	WithdrawalActionApprove = "approve"
	WithdrawalActionReject  = "reject"
)

// Типы записей журнала баланса
const (
	TransactionTypeWatchCredit       = "watch_credit"
	TransactionTypeReferralBonus     = "referral_bonus"
	TransactionTypeWithdrawalReserve = "withdrawal_reserve"
	TransactionTypeWithdrawalRefund  = "withdrawal_refund"
)

// Итоги обработки просмотра
const (
	WatchStatusOK      = "ok"
	WatchStatusIgnored = "ignored"
	WatchStatusError   = "error"

	IgnoreReasonDuplicate  = "duplicate"
	IgnoreReasonIncomplete = "incomplete"
)

// ValidWithdrawalStatuses список валидных статусов заявок
var ValidWithdrawalStatuses = map[string]struct{}{
	WithdrawalStatusPending:  {},
	WithdrawalStatusApproved: {},
	WithdrawalStatusRejected: {},
}
