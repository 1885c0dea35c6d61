package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// sigPrefix is accepted (and ignored) in front of a received signature.
const sigPrefix = "sha256="

// HMACSignatureService signs bank traffic with HMAC-SHA256. Outbound bank
// submissions and inbound bank webhooks share the canonical form.
type HMACSignatureService struct{}

// NewHMACSignatureService creates a new HMAC-SHA256 signature service.
func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func (s *HMACSignatureService) Sign(secretKey string, payload string) string {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against the expected MAC in constant time.
// An empty secret never verifies.
func (s *HMACSignatureService) Verify(secretKey string, payload string, signature string) bool {
	if secretKey == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(signature), sigPrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write([]byte(payload))
	return hmac.Equal(mac.Sum(nil), got)
}

// BuildCanonicalString joins METHOD|PATH|TIMESTAMP|NONCE|BODY.
func (s *HMACSignatureService) BuildCanonicalString(method, path string, timestamp int64, nonce string, body string) string {
	var b strings.Builder
	b.Grow(len(method) + len(path) + len(nonce) + len(body) + 24)
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('|')
	b.WriteString(path)
	b.WriteByte('|')
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteByte('|')
	b.WriteString(nonce)
	b.WriteByte('|')
	b.WriteString(body)
	return b.String()
}
