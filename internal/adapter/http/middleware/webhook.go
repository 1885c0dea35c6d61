package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	// Header names for bank webhook authentication
	HeaderWebhookSignature = "X-Webhook-Signature"
	HeaderWebhookTimestamp = "X-Webhook-Timestamp"
	HeaderWebhookID        = "X-Webhook-Id"

	webhookNonceScope = "webhook"
)

// WebhookSignature verifies bank webhooks before the handler runs.
// Pipeline: secret configured -> timestamp skew -> signature -> delivery ID.
//
// The signature is HMAC-SHA256 over "POST|path|timestamp|delivery-id|body".
// A delivery ID seen before is acknowledged without reaching the handler,
// unless its earlier attempt failed with a server error.
func WebhookSignature(
	secret string,
	sigSvc ports.SignatureService,
	nonceStore ports.NonceStore,
	maxSkew time.Duration,
	log zerolog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			log.Error().Msg("webhook received but no webhook secret is configured")
			response.Abort(c, apperror.ErrWebhookSecretMissing())
			return
		}

		signature := c.GetHeader(HeaderWebhookSignature)
		timestampStr := c.GetHeader(HeaderWebhookTimestamp)
		deliveryID := c.GetHeader(HeaderWebhookID)
		if signature == "" || timestampStr == "" {
			response.Abort(c, apperror.ErrInvalidSignature())
			return
		}

		timestamp, err := strconv.ParseInt(timestampStr, 10, 64)
		if err != nil {
			response.Abort(c, apperror.ErrInvalidSignature())
			return
		}
		drift := time.Since(time.Unix(timestamp, 0))
		if drift < 0 {
			drift = -drift
		}
		if drift > maxSkew {
			log.Warn().Int64("timestamp", timestamp).Msg("webhook timestamp outside allowed skew")
			response.Abort(c, apperror.ErrInvalidSignature())
			return
		}

		bodyBytes, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Abort(c, apperror.Validation("cannot read request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

		canonical := sigSvc.BuildCanonicalString(
			c.Request.Method,
			c.Request.URL.Path,
			timestamp,
			deliveryID,
			string(bodyBytes),
		)
		if !sigSvc.Verify(secret, canonical, signature) {
			log.Warn().Str("client_ip", c.ClientIP()).Msg("webhook signature mismatch")
			response.Abort(c, apperror.ErrInvalidSignature())
			return
		}

		recorded := false
		if deliveryID != "" && nonceStore != nil {
			isNew, err := nonceStore.CheckAndSet(c.Request.Context(), webhookNonceScope, deliveryID, 2*maxSkew)
			switch {
			case err != nil:
				log.Warn().Err(err).Msg("nonce store error, allowing webhook")
			case !isNew:
				log.Info().Str("delivery_id", deliveryID).Msg("webhook delivery replayed")
				c.AbortWithStatusJSON(http.StatusOK, gin.H{"status": "success", "processed": false})
				return
			default:
				recorded = true
			}
		}

		c.Next()

		// a failed delivery must stay retryable
		if recorded && c.Writer.Status() >= http.StatusInternalServerError {
			if err := nonceStore.Release(c.Request.Context(), webhookNonceScope, deliveryID); err != nil {
				log.Warn().Err(err).Str("delivery_id", deliveryID).Msg("nonce release failed")
			}
		}
	}
}
