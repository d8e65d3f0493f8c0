package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeInvalidState   ErrorCode = "INVALID_STATE"
	ErrCodeInvalidAmount  ErrorCode = "INVALID_AMOUNT"
	ErrCodeStorageFailure ErrorCode = "STORAGE_FAILURE"
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden      ErrorCode = "FORBIDDEN"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает ошибки по коду и сообщению, чтобы обёрнутые sentinel-ошибки
// находились через errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// StorageFailure оборачивает ошибку слоя хранения.
func StorageFailure(err error) *AppError {
	return Wrap(err, ErrCodeStorageFailure, "ошибка хранилища, повторите запрос позже")
}

// WithCause возвращает копию sentinel-ошибки с причиной.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Cause = err
	return &cp
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeInvalidInput:
		return http.StatusBadRequest
	case ErrCodeInvalidAmount:
		return http.StatusUnprocessableEntity
	case ErrCodeInvalidState, ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// CodeOf возвращает код ошибки или ErrCodeInternal для неизвестных ошибок.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// HTTPStatus возвращает HTTP статус для ошибки, 500 для неизвестных.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool       { return hasCode(err, ErrCodeNotFound) }
func IsInvalidInput(err error) bool   { return hasCode(err, ErrCodeInvalidInput) }
func IsInvalidState(err error) bool   { return hasCode(err, ErrCodeInvalidState) }
func IsInvalidAmount(err error) bool  { return hasCode(err, ErrCodeInvalidAmount) }
func IsStorageFailure(err error) bool { return hasCode(err, ErrCodeStorageFailure) }
func IsForbidden(err error) bool      { return hasCode(err, ErrCodeForbidden) }

var (
	ErrUserNotFound         = New(ErrCodeNotFound, "пользователь не найден")
	ErrWithdrawalNotFound   = New(ErrCodeNotFound, "заявка на вывод не найдена")
	ErrWithdrawalNotPending = New(ErrCodeInvalidState, "заявка уже обработана")
	ErrAmountNotPositive    = New(ErrCodeInvalidAmount, "сумма должна быть положительной")
	ErrBelowMinWithdrawal   = New(ErrCodeInvalidAmount, "сумма меньше минимальной суммы вывода")
	ErrInsufficientFunds    = New(ErrCodeInvalidAmount, "недостаточно средств на балансе")
	ErrAmountTooPrecise     = New(ErrCodeInvalidAmount, "сумма должна содержать не более 8 знаков после запятой")
	ErrEmptyVideoID         = New(ErrCodeInvalidInput, "не указан идентификатор видео")
	ErrInvalidDuration      = New(ErrCodeInvalidInput, "длительность видео должна быть положительной")
	ErrInvalidWatchedTime   = New(ErrCodeInvalidInput, "время просмотра не может быть отрицательным")
	ErrUnknownAction        = New(ErrCodeInvalidInput, "неизвестное действие, ожидается approve или reject")
	ErrUnauthorized         = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden            = New(ErrCodeForbidden, "недостаточно прав")
	ErrInvalidCredentials   = New(ErrCodeUnauthorized, "неверные учетные данные")
	ErrUsernameTaken        = New(ErrCodeConflict, "имя пользователя уже занято")
	ErrConcurrentUpdate     = New(ErrCodeConflict, "баланс изменяется параллельным запросом, повторите запрос")
)

// ErrInvalidIdempotencyKey возвращается для слишком длинного ключа Idempotency-Key.
var ErrInvalidIdempotencyKey = New(ErrCodeInvalidInput, "ключ идемпотентности длиннее 128 символов")
