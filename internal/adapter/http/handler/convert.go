package handler

import (
	"encoding/json"
	"time"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"

	"github.com/google/uuid"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func uuidPtrString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		ID:           w.ID.String(),
		CustomerID:   w.CustomerID.String(),
		Balance:      w.Balance.StringFixed(2),
		Currency:     w.Currency,
		DailyLimit:   w.DailyLimit.StringFixed(2),
		MonthlyLimit: w.MonthlyLimit.StringFixed(2),
		Status:       string(w.Status),
		CreatedAt:    formatTime(w.CreatedAt),
		UpdatedAt:    formatTime(w.UpdatedAt),
	}
}

func toGrantResponse(g *domain.AccessGrant) dto.GrantResponse {
	return dto.GrantResponse{
		ID:                 g.ID.String(),
		MerchantID:         g.MerchantID.String(),
		CustomerID:         g.CustomerID.String(),
		Capability:         string(g.Capability),
		Reason:             g.Reason,
		GrantedBy:          uuidPtrString(g.GrantedBy),
		GrantedAt:          formatTime(g.GrantedAt),
		ExpiresAt:          formatTimePtr(g.ExpiresAt),
		Active:             g.Active,
		DeactivationReason: g.DeactivationReason,
	}
}

func toQRResponse(q *domain.QRCode, payload string) dto.QRResponse {
	resp := dto.QRResponse{
		ID:          q.ID.String(),
		MerchantID:  q.MerchantID.String(),
		Token:       q.Token,
		Amount:      q.Amount.StringFixed(2),
		Description: q.Description,
		Reference:   q.Reference,
		Status:      string(q.Status),
		ExpiresAt:   formatTime(q.ExpiresAt),
		CreatedAt:   formatTime(q.CreatedAt),
		UsedAt:      formatTimePtr(q.UsedAt),
	}
	if payload != "" {
		resp.QRData = json.RawMessage(payload)
	}
	return resp
}

func toEFTResponse(p *domain.EFTPayment, note string) dto.EFTResponse {
	return dto.EFTResponse{
		ID:                p.ID.String(),
		CustomerID:        p.CustomerID.String(),
		WalletID:          p.WalletID.String(),
		Amount:            p.Amount.StringFixed(2),
		Fee:               p.Fee.StringFixed(2),
		BankCode:          p.BankCode,
		AccountNumber:     domain.MaskedAccount(p.AccountNumber),
		Reference:         p.Reference,
		ExternalReference: p.ExternalReference,
		Status:            string(p.Status),
		FailureReason:     p.FailureReason,
		TransactionID:     uuidPtrString(p.TransactionID),
		CreatedAt:         formatTime(p.CreatedAt),
		CompletedAt:       formatTimePtr(p.CompletedAt),
		Note:              note,
	}
}

func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:            t.ID.String(),
		Kind:          string(t.Kind),
		Direction:     string(t.Direction),
		Amount:        t.Amount.StringFixed(2),
		Fee:           t.Fee.StringFixed(2),
		NetAmount:     t.NetAmount.StringFixed(2),
		WalletID:      t.WalletID().String(),
		CustomerID:    t.CustomerID.String(),
		MerchantID:    uuidPtrString(t.MerchantID),
		BalanceBefore: t.BalanceBefore.StringFixed(2),
		BalanceAfter:  t.BalanceAfter.StringFixed(2),
		Status:        string(t.Status),
		Reference:     t.Reference,
		Metadata:      t.Metadata,
		RelatedID:     uuidPtrString(t.RelatedID),
		CreatedAt:     formatTime(t.CreatedAt),
		CompletedAt:   formatTimePtr(t.CompletedAt),
	}
}

func toBankResponse(b domain.BankConfig) dto.BankResponse {
	return dto.BankResponse{
		Code:      b.Code,
		Name:      b.Name,
		MinAmount: b.MinAmount.StringFixed(2),
		MaxAmount: b.MaxAmount.StringFixed(2),
		FeeRate:   b.FeeRate.String(),
	}
}
