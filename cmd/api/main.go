package main

import (
	"fmt"
	"os"

	"wallet-ledger/config"
	"wallet-ledger/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var Version = "dev"

// cli carries what every subcommand needs once the root has loaded config.
type cli struct {
	configPath string
	cfg        *config.Config
	log        zerolog.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:           "wallet-ledger",
		Short:         "Wallet ledger and payment processing engine",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			c.cfg = cfg
			c.log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ./config.yaml or ./config/config.yaml)")

	rootCmd.AddCommand(serveCmd(c))
	rootCmd.AddCommand(migrateCmd(c))
	rootCmd.AddCommand(sweepCmd(c))
	rootCmd.AddCommand(tokenCmd(c))

	return rootCmd
}
