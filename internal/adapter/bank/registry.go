package bank

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/core/ports"

	"github.com/rs/zerolog"
)

// Registry resolves the adapter for a bank code.
type Registry struct {
	adapters map[string]ports.BankAdapter
}

// NewRegistry returns a registry over the given adapters.
func NewRegistry(adapters map[string]ports.BankAdapter) *Registry {
	m := make(map[string]ports.BankAdapter, len(adapters))
	for code, a := range adapters {
		m[strings.ToLower(code)] = a
	}
	return &Registry{adapters: m}
}

// Adapter implements ports.BankRegistry.
func (r *Registry) Adapter(code string) (ports.BankAdapter, bool) {
	a, ok := r.adapters[strings.ToLower(code)]
	return a, ok
}

// FromConfig builds one adapter per configured bank: sandbox banks get a
// SandboxAdapter, the rest share one HTTP client.
func FromConfig(banks []config.BankConfig, timeout time.Duration, sigSvc ports.SignatureService, log zerolog.Logger) (*Registry, error) {
	client := &http.Client{Timeout: timeout}
	adapters := make(map[string]ports.BankAdapter, len(banks))
	for _, b := range banks {
		if b.Code == "" {
			return nil, errors.New("bank without code")
		}
		if b.Sandbox {
			adapters[b.Code] = NewSandboxAdapter(b.Code)
			log.Info().Str("bank_code", b.Code).Msg("bank adapter: sandbox")
			continue
		}
		if b.Endpoint == "" {
			return nil, fmt.Errorf("bank %s: endpoint is required", b.Code)
		}
		adapters[b.Code] = NewHTTPAdapter(b.Code, b.Endpoint, b.APIKey, client, sigSvc, log)
		log.Info().Str("bank_code", b.Code).Str("endpoint", b.Endpoint).Msg("bank adapter: http")
	}
	return NewRegistry(adapters), nil
}
