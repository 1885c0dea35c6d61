package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// sealedPrefix versions the stored format so a future key rotation can tell
// old and new ciphertexts apart.
const sealedPrefix = "v1:"

// accountAAD binds ciphertexts to the destination-account column; a value
// sealed here cannot be replayed into another encrypted field.
var accountAAD = []byte("eft_payments.account_number")

var errMalformedSealed = errors.New("malformed sealed account number")

// AESEncryptionService seals EFT destination account numbers with
// AES-256-GCM before they reach storage.
type AESEncryptionService struct {
	aead cipher.AEAD
}

// NewAESEncryptionService expects the 32-byte key as 64 hex characters.
func NewAESEncryptionService(hexKey string) (*AESEncryptionService, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("aes key is not hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("aes key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESEncryptionService{aead: aead}, nil
}

// Encrypt returns "v1:" + base64url(nonce || ciphertext || tag).
func (s *AESEncryptionService) Encrypt(accountNumber string) (string, error) {
	ns := s.aead.NonceSize()
	buf := make([]byte, ns, ns+len(accountNumber)+s.aead.Overhead())
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}
	sealed := s.aead.Seal(buf, buf[:ns], []byte(accountNumber), accountAAD)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

func (s *AESEncryptionService) Decrypt(sealed string) (string, error) {
	body, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", errMalformedSealed
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil || len(raw) < s.aead.NonceSize()+s.aead.Overhead() {
		return "", errMalformedSealed
	}
	ns := s.aead.NonceSize()
	plain, err := s.aead.Open(nil, raw[:ns], raw[ns:], accountAAD)
	if err != nil {
		return "", fmt.Errorf("open sealed account number: %w", err)
	}
	return string(plain), nil
}
