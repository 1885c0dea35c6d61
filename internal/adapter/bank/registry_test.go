package bank

import (
	"context"
	"strings"
	"testing"
	"time"

	"wallet-ledger/config"
	"wallet-ledger/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSandboxAdapter_DeterministicReference(t *testing.T) {
	a := NewSandboxAdapter("fnb")
	sub := testSubmission()

	first, err := a.Submit(context.Background(), sub)
	require.NoError(t, err)
	second, err := a.Submit(context.Background(), sub)
	require.NoError(t, err)

	assert.Equal(t, first.ExternalReference, second.ExternalReference)
	assert.True(t, strings.HasPrefix(first.ExternalReference, "BNK-"))
	assert.Len(t, first.ExternalReference, len("BNK-")+12)

	other, err := a.Submit(context.Background(), testSubmission())
	require.NoError(t, err)
	assert.NotEqual(t, first.ExternalReference, other.ExternalReference)
}

func TestSandboxAdapter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewSandboxAdapter("fnb").Submit(ctx, testSubmission())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromConfig(t *testing.T) {
	reg, err := FromConfig([]config.BankConfig{
		{Code: "fnb", Sandbox: true},
		{Code: "standard", Endpoint: "https://bank.example.com/eft", APIKey: "k"},
	}, time.Second, service.NewHMACSignatureService(), zerolog.Nop())
	require.NoError(t, err)

	a, ok := reg.Adapter("FNB")
	require.True(t, ok)
	assert.IsType(t, &SandboxAdapter{}, a)

	a, ok = reg.Adapter("standard")
	require.True(t, ok)
	assert.IsType(t, &HTTPAdapter{}, a)

	_, ok = reg.Adapter("barclays")
	assert.False(t, ok)
}

func TestFromConfig_MissingEndpoint(t *testing.T) {
	_, err := FromConfig([]config.BankConfig{{Code: "standard"}}, time.Second, service.NewHMACSignatureService(), zerolog.Nop())
	assert.Error(t, err)
}
