package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable error category callers branch on.
type Kind string

const (
	KindValidation        Kind = "ValidationError"
	KindNotFound          Kind = "NotFoundError"
	KindStateConflict     Kind = "StateConflictError"
	KindInsufficientFunds Kind = "InsufficientFundsError"
	KindLimitExceeded     Kind = "LimitExceededError"
	KindPermissionDenied  Kind = "PermissionDeniedError"
	KindExternalService   Kind = "ExternalServiceError"
	KindAuthentication    Kind = "AuthenticationError"
	KindRateLimit         Kind = "RateLimitError"
	KindInternal          Kind = "InternalError"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Kind       Kind   `json:"error"`
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"status_code"`
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
func New(kind Kind, code string, message string, httpStatus int) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(kind Kind, code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Kind:       kind,
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// KindOf returns the kind of err, or KindInternal when err is not an
// AppError. A nil error has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err, or SYS_001 when err is not an
// AppError. A nil error has no code.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "SYS_001"
}

// ---- Validation (VAL) ----

// Validation returns a generic input validation error.
func Validation(message string) *AppError {
	return New(KindValidation, "VAL_001", message, http.StatusBadRequest)
}

func ErrInvalidAmount() *AppError {
	return New(KindValidation, "VAL_002", "Amount must be greater than zero", http.StatusBadRequest)
}

func ErrUnsupportedBank(code string) *AppError {
	return New(KindValidation, "VAL_003", fmt.Sprintf("Unsupported bank: %s", code), http.StatusBadRequest)
}

func ErrAmountOutOfRange(min, max string) *AppError {
	return New(KindValidation, "VAL_004",
		fmt.Sprintf("Amount must be between %s and %s for this bank", min, max), http.StatusBadRequest)
}

// ---- Lookup (NF) ----

func ErrNotFound(entity string) *AppError {
	return New(KindNotFound, "NF_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- State transitions (STATE, QR, EFT) ----

// ErrStateConflict reports that a record was not in the expected prior state.
func ErrStateConflict(reason string) *AppError {
	return New(KindStateConflict, "STATE_001", reason, http.StatusConflict)
}

func ErrQRExpired() *AppError {
	return New(KindStateConflict, "QR_001", "expired", http.StatusConflict)
}

func ErrQRAlreadyUsed() *AppError {
	return New(KindStateConflict, "QR_002", "already_used", http.StatusConflict)
}

func ErrQRCancelled() *AppError {
	return New(KindStateConflict, "QR_003", "cancelled", http.StatusConflict)
}

func ErrPaymentTerminal(status string) *AppError {
	return New(KindStateConflict, "EFT_001",
		fmt.Sprintf("Payment is already %s", status), http.StatusConflict)
}

// ---- Wallet (WAL) ----

func ErrInsufficientFunds() *AppError {
	return New(KindInsufficientFunds, "WAL_001", "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrWalletInactive() *AppError {
	return New(KindStateConflict, "WAL_002", "Wallet is not active", http.StatusConflict)
}

func ErrLimitExceeded(window string) *AppError {
	return New(KindLimitExceeded, "WAL_003",
		fmt.Sprintf("%s spend limit exceeded", window), http.StatusUnprocessableEntity)
}

// ---- Access control (ACL) ----

func ErrPermissionDenied(required string) *AppError {
	return New(KindPermissionDenied, "ACL_001",
		fmt.Sprintf("Merchant lacks %s access to this wallet", required), http.StatusForbidden)
}

func ErrAdminRequired() *AppError {
	return New(KindPermissionDenied, "ACL_002", "Administrative privileges required", http.StatusForbidden)
}

// ---- External services (EXT) ----

func ErrBankUnavailable(err error) *AppError {
	return Wrap(KindExternalService, "EXT_001", "Bank service unavailable", http.StatusBadGateway, err)
}

func ErrBankRejected(err error) *AppError {
	return Wrap(KindExternalService, "EXT_002", "Bank rejected the payment", http.StatusBadGateway, err)
}

// ---- Authentication (AUTH) ----

func ErrInvalidSignature() *AppError {
	return New(KindAuthentication, "AUTH_001", "Invalid webhook signature", http.StatusUnauthorized)
}

func ErrWebhookSecretMissing() *AppError {
	return New(KindAuthentication, "AUTH_002", "Webhook secret is not configured", http.StatusInternalServerError)
}

func ErrInvalidToken() *AppError {
	return New(KindAuthentication, "AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(KindRateLimit, "RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(KindInternal, "SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
