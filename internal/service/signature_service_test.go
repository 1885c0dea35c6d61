package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	secret := "bank-webhook-secret"
	payload := svc.BuildCanonicalString("POST", "/eft/webhook", 1772366400, "evt-1", `{"reference":"BNK-000042","status":"completed"}`)

	signature := svc.Sign(secret, payload)

	assert.Regexp(t, `^[0-9a-f]{64}$`, signature)
	assert.True(t, svc.Verify(secret, payload, signature))
}

func TestHMACSignatureService_VerifyAcceptsPrefixAndUppercase(t *testing.T) {
	svc := NewHMACSignatureService()
	signature := svc.Sign("key", "payload")

	assert.True(t, svc.Verify("key", "payload", "sha256="+signature))
	assert.True(t, svc.Verify("key", "payload", strings.ToUpper(signature)))
}

func TestHMACSignatureService_VerifyFails(t *testing.T) {
	svc := NewHMACSignatureService()
	signature := svc.Sign("correct-key", "original payload")

	tests := []struct {
		name      string
		secret    string
		payload   string
		signature string
	}{
		{"wrong key", "wrong-key", "original payload", signature},
		{"tampered payload", "correct-key", "tampered payload", signature},
		{"not hex", "correct-key", "original payload", "invalidsignature"},
		{"empty signature", "correct-key", "original payload", ""},
		{"empty secret", "", "original payload", svc.Sign("", "original payload")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, svc.Verify(tt.secret, tt.payload, tt.signature))
		})
	}
}

func TestHMACSignatureService_DeterministicSign(t *testing.T) {
	svc := NewHMACSignatureService()
	assert.Equal(t, svc.Sign("key", "data"), svc.Sign("key", "data"))
}

func TestHMACSignatureService_BuildCanonicalString(t *testing.T) {
	svc := NewHMACSignatureService()

	result := svc.BuildCanonicalString("post", "/eft/webhook", 1772366400, "evt-1", `{"status":"failed"}`)
	assert.Equal(t, `POST|/eft/webhook|1772366400|evt-1|{"status":"failed"}`, result)

	result = svc.BuildCanonicalString("POST", "/submit", 1772366400, "", "")
	assert.Equal(t, "POST|/submit|1772366400||", result)
}
