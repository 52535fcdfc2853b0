package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger (LED) ----

func ErrInsufficientBalance() *AppError {
	return New("LED_001", "Insufficient balance", http.StatusPaymentRequired)
}

func ErrInvalidOperation(message string) *AppError {
	return New("LED_002", message, http.StatusBadRequest)
}

func ErrWalletFrozen() *AppError {
	return New("LED_003", "Wallet is frozen", http.StatusForbidden)
}

func ErrBurnExceedsSupply() *AppError {
	return New("LED_004", "Burn amount exceeds total supply", http.StatusUnprocessableEntity)
}

func ErrContention() *AppError {
	return New("LED_005", "Concurrent update conflict, retry the operation", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New("LED_006", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Deposits & rails (DEP) ----

func ErrUnknownRail(rail string) *AppError {
	return New("DEP_001", fmt.Sprintf("Unknown deposit rail: %s", rail), http.StatusBadRequest)
}

func ErrDepositNotPending() *AppError {
	return New("DEP_002", "Deposit is not in a pending state", http.StatusConflict)
}

func ErrInvalidWebhookSignature() *AppError {
	return New("DEP_003", "Invalid webhook signature", http.StatusUnauthorized)
}

func ErrRailUnavailable(err error) *AppError {
	return Wrap("DEP_004", "Payment rail unavailable", http.StatusBadGateway, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New("AUTH_001", "Invalid credentials", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("AUTH_002", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_002-style validation error.
func Validation(message string) *AppError {
	return New("LED_002", message, http.StatusBadRequest)
}
