package main

import (
	"github.com/spf13/cobra"
)

func sweepCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-qr",
		Short: "Mark active QR codes past their expiry as expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			a, err := buildApp(ctx, c.cfg, c.log)
			if err != nil {
				return err
			}
			defer a.shutdown(ctx, c.log)

			n, err := a.qr.ExpireStale(ctx)
			if err != nil {
				return err
			}
			c.log.Info().Int64("expired", n).Msg("QR expiry sweep complete")
			return nil
		},
	}
}
