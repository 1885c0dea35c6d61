package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"wallet-ledger/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxResponseBytes bounds how much of a bank response is read.
const maxResponseBytes = 64 << 10

// HTTPClient is the subset of *http.Client the adapter needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPAdapter submits top-ups to a bank's JSON API. Requests are signed
// with the bank's API key over "POST|path|timestamp|nonce|body".
type HTTPAdapter struct {
	code     string
	endpoint string
	apiKey   string
	client   HTTPClient
	sigSvc   ports.SignatureService
	now      func() time.Time
	log      zerolog.Logger
}

// NewHTTPAdapter creates an adapter for one bank endpoint.
func NewHTTPAdapter(code, endpoint, apiKey string, client HTTPClient, sigSvc ports.SignatureService, log zerolog.Logger) *HTTPAdapter {
	return &HTTPAdapter{
		code:     code,
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   client,
		sigSvc:   sigSvc,
		now:      time.Now,
		log:      log.With().Str("bank_code", code).Logger(),
	}
}

type submitResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// Submit posts one submission. Transport errors and 5xx/429 responses wrap
// ports.ErrBankUnavailable; other non-2xx responses wrap ports.ErrBankRejected.
func (a *HTTPAdapter) Submit(ctx context.Context, sub ports.BankSubmission) (*ports.BankAck, error) {
	body, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	path := "/"
	if u, err := url.Parse(a.endpoint); err == nil && u.Path != "" {
		path = u.Path
	}
	ts := a.now().Unix()
	nonce := uuid.NewString()
	canonical := a.sigSvc.BuildCanonicalString(http.MethodPost, path, ts, nonce, string(body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build bank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", sub.PaymentID.String())
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Nonce", nonce)
	req.Header.Set("X-Signature", a.sigSvc.Sign(a.apiKey, canonical))

	resp, err := a.client.Do(req)
	if err != nil {
		a.log.Warn().Err(err).Str("eft_id", sub.PaymentID.String()).Msg("bank submission transport error")
		return nil, fmt.Errorf("%w: %v", ports.ErrBankUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ports.ErrBankUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		a.log.Warn().Int("status", resp.StatusCode).Str("eft_id", sub.PaymentID.String()).Msg("bank unavailable")
		return nil, fmt.Errorf("%w: status %d", ports.ErrBankUnavailable, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		var r submitResponse
		_ = json.Unmarshal(raw, &r)
		msg := r.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		a.log.Info().Int("status", resp.StatusCode).Str("eft_id", sub.PaymentID.String()).Msg("bank rejected submission")
		return nil, fmt.Errorf("%w: %s", ports.ErrBankRejected, msg)
	}

	var r submitResponse
	if err := json.Unmarshal(raw, &r); err != nil || r.Reference == "" {
		// the Idempotency-Key makes a resubmission safe
		return nil, fmt.Errorf("%w: acknowledgement without reference", ports.ErrBankUnavailable)
	}

	a.log.Info().Str("eft_id", sub.PaymentID.String()).Str("external_reference", r.Reference).Msg("bank accepted submission")
	return &ports.BankAck{ExternalReference: r.Reference, Raw: json.RawMessage(raw)}, nil
}
