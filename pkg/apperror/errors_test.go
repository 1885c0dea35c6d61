package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New(KindInsufficientFunds, "WAL_001", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[WAL_001] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap(KindInternal, "SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap(KindInternal, "SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New(KindValidation, "VAL_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("redeem: %w", ErrQRAlreadyUsed())
	assert.Equal(t, KindStateConflict, KindOf(wrapped))
	assert.Equal(t, "QR_002", CodeOf(wrapped))

	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "SYS_001", CodeOf(errors.New("boom")))

	assert.Empty(t, KindOf(nil))
	assert.Empty(t, CodeOf(nil))
}

func TestTaxonomy(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		kind       Kind
		code       string
		httpStatus int
	}{
		{"Validation", Validation("bad"), KindValidation, "VAL_001", 400},
		{"InvalidAmount", ErrInvalidAmount(), KindValidation, "VAL_002", 400},
		{"UnsupportedBank", ErrUnsupportedBank("xyz"), KindValidation, "VAL_003", 400},
		{"AmountOutOfRange", ErrAmountOutOfRange("10.00", "50000.00"), KindValidation, "VAL_004", 400},
		{"NotFound", ErrNotFound("Wallet"), KindNotFound, "NF_001", 404},
		{"StateConflict", ErrStateConflict("concurrent update"), KindStateConflict, "STATE_001", 409},
		{"QRExpired", ErrQRExpired(), KindStateConflict, "QR_001", 409},
		{"QRAlreadyUsed", ErrQRAlreadyUsed(), KindStateConflict, "QR_002", 409},
		{"QRCancelled", ErrQRCancelled(), KindStateConflict, "QR_003", 409},
		{"PaymentTerminal", ErrPaymentTerminal("completed"), KindStateConflict, "EFT_001", 409},
		{"InsufficientFunds", ErrInsufficientFunds(), KindInsufficientFunds, "WAL_001", 402},
		{"WalletInactive", ErrWalletInactive(), KindStateConflict, "WAL_002", 409},
		{"LimitExceeded", ErrLimitExceeded("daily"), KindLimitExceeded, "WAL_003", 422},
		{"PermissionDenied", ErrPermissionDenied("full"), KindPermissionDenied, "ACL_001", 403},
		{"AdminRequired", ErrAdminRequired(), KindPermissionDenied, "ACL_002", 403},
		{"BankUnavailable", ErrBankUnavailable(nil), KindExternalService, "EXT_001", 502},
		{"BankRejected", ErrBankRejected(nil), KindExternalService, "EXT_002", 502},
		{"InvalidSignature", ErrInvalidSignature(), KindAuthentication, "AUTH_001", 401},
		{"WebhookSecretMissing", ErrWebhookSecretMissing(), KindAuthentication, "AUTH_002", 500},
		{"InvalidToken", ErrInvalidToken(), KindAuthentication, "AUTH_003", 401},
		{"RateLimit", ErrRateLimitExceeded(), KindRateLimit, "RATE_001", 429},
		{"Internal", InternalError(nil), KindInternal, "SYS_001", 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestQRConflictMessages(t *testing.T) {
	assert.Equal(t, "expired", ErrQRExpired().Message)
	assert.Equal(t, "already_used", ErrQRAlreadyUsed().Message)
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("QR code")
	assert.Contains(t, err.Message, "QR code")
}
