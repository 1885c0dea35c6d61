package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"wallet-ledger/internal/adapter/http/dto"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/service"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func tokenCmd(c *cli) *cobra.Command {
	var role, subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for an admin or merchant",
		Example: `  wallet-ledger token --role admin
  wallet-ledger token --role merchant --subject 6f1c0c9e-3b7a-4d55-9d0e-3a4b2f1c9e10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.cfg.JWT.Secret == "" {
				return errors.New("jwt.secret is not configured")
			}

			id := uuid.New()
			if subject != "" {
				parsed, err := uuid.Parse(subject)
				if err != nil {
					return fmt.Errorf("invalid --subject: %w", err)
				}
				id = parsed
			}

			tokens := service.NewJWTTokenService(c.cfg.JWT.Secret, c.cfg.JWT.Expiry, c.cfg.JWT.Issuer)
			token, expiresAt, err := tokens.Generate(domain.Principal{ID: id, Role: domain.Role(role)})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Subject string `json:"subject"`
				Role    string `json:"role"`
				dto.TokenResponse
			}{id.String(), role, dto.TokenResponse{Token: token, Expiry: expiresAt.Unix()}})
		},
	}
	cmd.Flags().StringVar(&role, "role", string(domain.RoleMerchant), "admin or merchant")
	cmd.Flags().StringVar(&subject, "subject", "", "principal ID (random when empty)")

	return cmd
}
