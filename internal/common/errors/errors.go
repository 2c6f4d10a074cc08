package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode представляет код ошибки
type ErrorCode string

const (
	// Общие ошибки
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"

	// Anti-abuse
	ErrCodeCooldown  ErrorCode = "COOLDOWN_ACTIVE"
	ErrCodeRateLimit ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Пользователи и социальный граф
	ErrCodeUserBlocked      ErrorCode = "USER_BLOCKED"
	ErrCodeUsernameTaken    ErrorCode = "USERNAME_TAKEN"
	ErrCodeSelfFollow       ErrorCode = "SELF_FOLLOW"
	ErrCodeAlreadyFollowing ErrorCode = "ALREADY_FOLLOWING"

	// Confession lifecycle
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// Хранилище и внешние API
	ErrCodeDatabaseError ErrorCode = "DATABASE_ERROR"
	ErrCodeTelegramAPI   ErrorCode = "TELEGRAM_API_ERROR"
)

// Sentinels for errors.Is. AppError.Is matches on Code only, so any AppError
// built with the same code satisfies errors.Is(err, ErrNotFound).
var (
	ErrValidation        = &AppError{Code: ErrCodeValidation}
	ErrNotFound          = &AppError{Code: ErrCodeNotFound}
	ErrForbidden         = &AppError{Code: ErrCodeForbidden}
	ErrCooldown          = &AppError{Code: ErrCodeCooldown}
	ErrRateLimit         = &AppError{Code: ErrCodeRateLimit}
	ErrUserBlocked       = &AppError{Code: ErrCodeUserBlocked}
	ErrUsernameTaken     = &AppError{Code: ErrCodeUsernameTaken}
	ErrSelfFollow        = &AppError{Code: ErrCodeSelfFollow}
	ErrAlreadyFollowing  = &AppError{Code: ErrCodeAlreadyFollowing}
	ErrInvalidTransition = &AppError{Code: ErrCodeInvalidTransition}
)

// AppError представляет типизированную ошибку приложения
type AppError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	UserID    int64                  `json:"user_id,omitempty"`
	Cause     error                  `json:"-"`
}

// Error возвращает строковое представление ошибки
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap возвращает причину ошибки
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// IsInternal проверяет, является ли ошибка внутренней ошибкой
func (e *AppError) IsInternal() bool {
	return e.Code == ErrCodeInternal ||
		e.Code == ErrCodeDatabaseError ||
		e.Code == ErrCodeTelegramAPI
}

// IsTemporary reports whether the caller may retry the same action later.
func (e *AppError) IsTemporary() bool {
	return e.Code == ErrCodeCooldown || e.Code == ErrCodeRateLimit
}

// WithDetail добавляет детальную информацию к ошибке
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithRequestID добавляет ID запроса к ошибке
func (e *AppError) WithRequestID(requestID string) *AppError {
	e.RequestID = requestID
	return e
}

// WithUserID добавляет ID пользователя к ошибке
func (e *AppError) WithUserID(userID int64) *AppError {
	e.UserID = userID
	return e
}

// New создает новую ошибку приложения
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// Wrap оборачивает существующую ошибку
func Wrap(err error, code ErrorCode, message string) *AppError {
	appErr := New(code, message)
	appErr.Cause = err
	return appErr
}

// NewValidationError создает ошибку валидации
func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, reason).
		WithDetail("field", field).
		WithDetail("reason", reason)
}

// NewNotFoundError создает ошибку "не найдено"
func NewNotFoundError(resource string, id interface{}) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource)).
		WithDetail("resource", resource).
		WithDetail("id", id)
}

// NewForbiddenError создает ошибку доступа
func NewForbiddenError(reason string) *AppError {
	return New(ErrCodeForbidden, fmt.Sprintf("Forbidden: %s", reason)).
		WithDetail("reason", reason)
}

// NewCooldownError reports that action may be repeated after retryAfter.
func NewCooldownError(action string, retryAfter time.Duration) *AppError {
	return New(ErrCodeCooldown, fmt.Sprintf("Cooldown active for %s", action)).
		WithDetail("action", action).
		WithDetail("retry_after", retryAfter)
}

// NewRateLimitError создает ошибку превышения лимита запросов
func NewRateLimitError(action string, window time.Duration) *AppError {
	return New(ErrCodeRateLimit, fmt.Sprintf("Rate limit exceeded for %s", action)).
		WithDetail("action", action).
		WithDetail("window", window.String())
}

// NewDatabaseError создает ошибку базы данных
func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabaseError, fmt.Sprintf("Database operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// NewTelegramAPIError создает ошибку Telegram API
func NewTelegramAPIError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeTelegramAPI, fmt.Sprintf("Telegram API operation failed: %s", operation)).
		WithDetail("operation", operation)
}

// NewInvalidTransitionError reports a lifecycle move that the state machine forbids.
func NewInvalidTransitionError(id, from, to string) *AppError {
	return New(ErrCodeInvalidTransition, fmt.Sprintf("cannot move %s from %s to %s", id, from, to)).
		WithDetail("id", id).
		WithDetail("from", from).
		WithDetail("to", to)
}

// AsAppError приводит ошибку к AppError
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if err == nil {
		return nil, false
	}
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// RetryAfter returns the retry_after detail of a cooldown error, or zero.
func RetryAfter(err error) time.Duration {
	appErr, ok := AsAppError(err)
	if !ok {
		return 0
	}
	if d, ok := appErr.Details["retry_after"].(time.Duration); ok {
		return d
	}
	return 0
}
