package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// QRStatus is the lifecycle state of a QR payment request.
type QRStatus string

const (
	QRStatusActive    QRStatus = "active"
	QRStatusUsed      QRStatus = "used"
	QRStatusExpired   QRStatus = "expired"
	QRStatusCancelled QRStatus = "cancelled"
)

const (
	DefaultQRTTLMinutes = 15
	MaxQRTTLMinutes     = 1440
)

// QR invalidity reasons.
const (
	QRReasonExpired     = "expired"
	QRReasonAlreadyUsed = "already_used"
	QRReasonCancelled   = "cancelled"
)

// QRCode is a time-boxed, single-use claim for a fixed amount in favour of
// the issuing merchant. Status leaves active exactly once.
type QRCode struct {
	ID               uuid.UUID       `json:"id"`
	MerchantID       uuid.UUID       `json:"merchant_id"`
	Amount           decimal.Decimal `json:"amount"`
	Description      string          `json:"description"`
	Reference        string          `json:"reference"`
	Token            string          `json:"token"`
	Status           QRStatus        `json:"status"`
	ExpiresAt        time.Time       `json:"expires_at"`
	CreatedAt        time.Time       `json:"created_at"`
	UsedAt           *time.Time      `json:"used_at,omitempty"`
	UsedByCustomerID *uuid.UUID      `json:"used_by_customer_id,omitempty"`
	UsedByWalletID   *uuid.UUID      `json:"used_by_wallet_id,omitempty"`
	TransactionID    *uuid.UUID      `json:"transaction_id,omitempty"`
}

// IsValid reports whether the code can be redeemed at now. Expiry is
// strict: a redemption at exactly ExpiresAt is too late.
func (q *QRCode) IsValid(now time.Time) bool {
	return q.Status == QRStatusActive && now.Before(q.ExpiresAt)
}

// Invalidity names why the code cannot be redeemed at now, or "" if it can.
func (q *QRCode) Invalidity(now time.Time) string {
	switch q.Status {
	case QRStatusUsed:
		return QRReasonAlreadyUsed
	case QRStatusCancelled:
		return QRReasonCancelled
	case QRStatusExpired:
		return QRReasonExpired
	}
	if !now.Before(q.ExpiresAt) {
		return QRReasonExpired
	}
	return ""
}

// QRPayload is the content encoded into the scannable image.
type QRPayload struct {
	Token       string `json:"token"`
	MerchantID  string `json:"merchant"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Reference   string `json:"reference"`
	ExpiresAt   string `json:"expires_at"`
	PaymentURL  string `json:"payment_url"`
}

// Payload builds the scannable content for the code.
func (q *QRCode) Payload(baseURL string) QRPayload {
	return QRPayload{
		Token:       q.Token,
		MerchantID:  q.MerchantID.String(),
		Amount:      q.Amount.StringFixed(2),
		Description: q.Description,
		Reference:   q.Reference,
		ExpiresAt:   q.ExpiresAt.UTC().Format(time.RFC3339),
		PaymentURL:  baseURL + "/" + q.Token,
	}
}

// PayloadJSON renders Payload as a compact JSON string.
func (q *QRCode) PayloadJSON(baseURL string) string {
	b, _ := json.Marshal(q.Payload(baseURL))
	return string(b)
}
