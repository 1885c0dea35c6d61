package middleware

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"wallet-ledger/internal/core/ports"
	"wallet-ledger/internal/core/ports/mocks"
	"wallet-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

const (
	testWebhookSecret = "whsec_test"
	webhookPath       = "/eft/webhook"
	webhookBody       = `{"reference":"BNK-000042","status":"completed"}`
)

func webhookRouter(secret string, nonces ports.NonceStore, handlerStatus int) *gin.Engine {
	r := gin.New()
	r.POST(webhookPath, WebhookSignature(secret, service.NewHMACSignatureService(), nonces, 5*time.Minute, zerolog.Nop()),
		func(c *gin.Context) {
			body, _ := io.ReadAll(c.Request.Body)
			c.String(handlerStatus, string(body))
		})
	return r
}

func signedRequest(secret string, ts time.Time, deliveryID, body string) *http.Request {
	sig := service.NewHMACSignatureService()
	canonical := sig.BuildCanonicalString(http.MethodPost, webhookPath, ts.Unix(), deliveryID, body)

	req := httptest.NewRequest(http.MethodPost, webhookPath, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderWebhookTimestamp, strconv.FormatInt(ts.Unix(), 10))
	req.Header.Set(HeaderWebhookSignature, sig.Sign(secret, canonical))
	if deliveryID != "" {
		req.Header.Set(HeaderWebhookID, deliveryID)
	}
	return req
}

func TestWebhookSignature_Valid(t *testing.T) {
	w := httptest.NewRecorder()
	webhookRouter(testWebhookSecret, nil, http.StatusOK).ServeHTTP(w, signedRequest(testWebhookSecret, time.Now(), "", webhookBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, webhookBody, w.Body.String(), "handler must see the original body")
}

func TestWebhookSignature_SecretNotConfigured(t *testing.T) {
	w := httptest.NewRecorder()
	webhookRouter("", nil, http.StatusOK).ServeHTTP(w, signedRequest("anything", time.Now(), "", webhookBody))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "AUTH_002")
}

func TestWebhookSignature_Rejections(t *testing.T) {
	tests := []struct {
		name string
		req  func() *http.Request
	}{
		{"wrong secret", func() *http.Request {
			return signedRequest("other-secret", time.Now(), "", webhookBody)
		}},
		{"tampered body", func() *http.Request {
			req := signedRequest(testWebhookSecret, time.Now(), "", webhookBody)
			req.Body = io.NopCloser(strings.NewReader(strings.Replace(webhookBody, "completed", "failed", 1)))
			return req
		}},
		{"stale timestamp", func() *http.Request {
			return signedRequest(testWebhookSecret, time.Now().Add(-6*time.Minute), "", webhookBody)
		}},
		{"future timestamp", func() *http.Request {
			return signedRequest(testWebhookSecret, time.Now().Add(6*time.Minute), "", webhookBody)
		}},
		{"missing signature", func() *http.Request {
			req := signedRequest(testWebhookSecret, time.Now(), "", webhookBody)
			req.Header.Del(HeaderWebhookSignature)
			return req
		}},
		{"malformed timestamp", func() *http.Request {
			req := signedRequest(testWebhookSecret, time.Now(), "", webhookBody)
			req.Header.Set(HeaderWebhookTimestamp, "yesterday")
			return req
		}},
		{"delivery id swapped", func() *http.Request {
			req := signedRequest(testWebhookSecret, time.Now(), "dlv-1", webhookBody)
			req.Header.Set(HeaderWebhookID, "dlv-2")
			return req
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			webhookRouter(testWebhookSecret, nil, http.StatusOK).ServeHTTP(w, tt.req())
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "AUTH_001")
		})
	}
}

func TestWebhookSignature_ReplayedDelivery(t *testing.T) {
	ctrl := gomock.NewController(t)
	nonces := mocks.NewMockNonceStore(ctrl)
	gomock.InOrder(
		nonces.EXPECT().CheckAndSet(gomock.Any(), "webhook", "dlv-1", 10*time.Minute).Return(true, nil),
		nonces.EXPECT().CheckAndSet(gomock.Any(), "webhook", "dlv-1", 10*time.Minute).Return(false, nil),
	)
	r := webhookRouter(testWebhookSecret, nonces, http.StatusOK)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(testWebhookSecret, time.Now(), "dlv-1", webhookBody))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, webhookBody, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, signedRequest(testWebhookSecret, time.Now(), "dlv-1", webhookBody))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"success","processed":false}`, w.Body.String())
}

func TestWebhookSignature_FailedDeliveryIsReleased(t *testing.T) {
	ctrl := gomock.NewController(t)
	nonces := mocks.NewMockNonceStore(ctrl)
	nonces.EXPECT().CheckAndSet(gomock.Any(), "webhook", "dlv-9", gomock.Any()).Return(true, nil)
	nonces.EXPECT().Release(gomock.Any(), "webhook", "dlv-9").Return(nil)

	w := httptest.NewRecorder()
	webhookRouter(testWebhookSecret, nonces, http.StatusInternalServerError).
		ServeHTTP(w, signedRequest(testWebhookSecret, time.Now(), "dlv-9", webhookBody))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestWebhookSignature_NonceStoreDown(t *testing.T) {
	ctrl := gomock.NewController(t)
	nonces := mocks.NewMockNonceStore(ctrl)
	nonces.EXPECT().CheckAndSet(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("redis down"))

	w := httptest.NewRecorder()
	webhookRouter(testWebhookSecret, nonces, http.StatusOK).
		ServeHTTP(w, signedRequest(testWebhookSecret, time.Now(), "dlv-2", webhookBody))
	assert.Equal(t, http.StatusOK, w.Code)
}
