package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lightsgoout/exchange-engine/internal/config"
)

func newVerifyConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-config <path>",
		Short: "Load and validate a configuration file without starting the engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			fmt.Printf("config OK: %d instrument(s), stp mode %s, audit sinks %v\n",
				len(cfg.Products), cfg.STP.Mode, cfg.Audit.Sinks)
			return nil
		},
	}
}
