package middleware

import (
	"fmt"
	"math"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"confession-bot-backend/internal/common/errors"
)

const (
	requestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
)

// ErrorHandler recovers panics and answers with an INTERNAL_ERROR envelope.
func ErrorHandler() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.Error().
			Str("request_id", getRequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Interface("panic", recovered).
			Str("stack", string(debug.Stack())).
			Msg("Panic recovered")

		appErr := errors.New(errors.ErrCodeInternal, "Internal server error").
			WithDetail("panic", fmt.Sprintf("%v", recovered))
		sendErrorResponse(c, appErr)
	})
}

// RequestID добавляет ID запроса в контекст и заголовок ответа
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(requestIDKey, requestID)
		c.Header(requestIDHeader, requestID)
		c.Next()
	}
}

// ErrorResponse is the JSON envelope of every failed request.
type ErrorResponse struct {
	Success   bool             `json:"success"`
	Error     *errors.AppError `json:"error"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
	Path      string           `json:"path,omitempty"`
	Method    string           `json:"method,omitempty"`
}

// HandleErrors turns the last error a handler attached with c.Error into a
// JSON response. Errors that are not AppErrors are wrapped as internal.
func HandleErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		appErr, ok := errors.AsAppError(err)
		if !ok {
			appErr = errors.Wrap(err, errors.ErrCodeInternal, "Handler error occurred").
				WithUserID(getUserID(c))
		}
		sendErrorResponse(c, appErr)
	}
}

// Abort attaches err and stops the chain; HandleErrors writes the response.
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func sendErrorResponse(c *gin.Context, appErr *errors.AppError) {
	requestID := getRequestID(c)
	appErr.WithRequestID(requestID)

	logError(c, appErr)
	if appErr.IsTemporary() {
		if wait := errors.RetryAfter(appErr); wait > 0 {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
		}
	}
	c.AbortWithStatusJSON(StatusCode(appErr), ErrorResponse{
		Success:   false,
		Error:     appErr,
		Timestamp: time.Now(),
		RequestID: requestID,
		Path:      c.Request.URL.Path,
		Method:    c.Request.Method,
	})
}

// StatusCode maps an error code to its HTTP status.
func StatusCode(appErr *errors.AppError) int {
	switch appErr.Code {
	case errors.ErrCodeValidation, errors.ErrCodeBadRequest, errors.ErrCodeSelfFollow:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden, errors.ErrCodeUserBlocked:
		return http.StatusForbidden
	case errors.ErrCodeConflict, errors.ErrCodeUsernameTaken, errors.ErrCodeAlreadyFollowing, errors.ErrCodeInvalidTransition:
		return http.StatusConflict
	case errors.ErrCodeCooldown, errors.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case errors.ErrCodeTelegramAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func logError(c *gin.Context, appErr *errors.AppError) {
	var event *zerolog.Event
	switch {
	case appErr.IsInternal():
		event = log.Error()
	case appErr.Code == errors.ErrCodeUnauthorized || appErr.Code == errors.ErrCodeForbidden:
		event = log.Warn()
	default:
		event = log.Info()
	}

	event = event.
		Str("request_id", getRequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Str("error_code", string(appErr.Code)).
		Str("error_message", appErr.Message)
	if userID := getUserID(c); userID != 0 {
		event = event.Int64("user_id", userID)
	}
	if len(appErr.Details) > 0 {
		event = event.Interface("details", appErr.Details)
	}
	if appErr.Cause != nil {
		event = event.Err(appErr.Cause)
	}
	event.Msg("Request failed")
}

// ValidationErrorResponse carries every failed field of a request at once.
type ValidationErrorResponse struct {
	Success   bool               `json:"success"`
	Errors    []*errors.AppError `json:"errors"`
	Timestamp time.Time          `json:"timestamp"`
	RequestID string             `json:"request_id"`
}

// SendValidationErrors answers 400 with one AppError per invalid field.
func SendValidationErrors(c *gin.Context, validationErrors []*errors.AppError) {
	requestID := getRequestID(c)
	for _, e := range validationErrors {
		e.WithRequestID(requestID)
	}

	log.Info().
		Str("request_id", requestID).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("error_count", len(validationErrors)).
		Msg("Validation errors")

	c.AbortWithStatusJSON(http.StatusBadRequest, ValidationErrorResponse{
		Success:   false,
		Errors:    validationErrors,
		Timestamp: time.Now(),
		RequestID: requestID,
	})
}

func getRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	return "unknown"
}

func getUserID(c *gin.Context) int64 {
	return c.GetInt64(UserIDKey)
}
