package bank

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"strings"

	"wallet-ledger/internal/core/ports"
)

// SandboxAdapter acknowledges every submission locally. The external
// reference is derived from the payment ID, so resubmissions of one
// payment return the same reference.
type SandboxAdapter struct {
	code string
}

// NewSandboxAdapter creates a sandbox adapter for a bank code.
func NewSandboxAdapter(code string) *SandboxAdapter {
	return &SandboxAdapter{code: code}
}

func (a *SandboxAdapter) Submit(ctx context.Context, sub ports.BankSubmission) (*ports.BankAck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ref := "BNK-" + strings.ToUpper(hex.EncodeToString(sub.PaymentID[:6]))
	raw, err := json.Marshal(map[string]any{
		"sandbox":   true,
		"bank_code": a.code,
		"reference": ref,
		"status":    "accepted",
	})
	if err != nil {
		return nil, err
	}
	return &ports.BankAck{ExternalReference: ref, Raw: raw}, nil
}
