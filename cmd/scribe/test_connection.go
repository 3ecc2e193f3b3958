package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Verify the configured provider answers a minimal request",
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := loadHome()
		if err != nil {
			return err
		}
		cfg, err := loadConfig(h)
		if err != nil {
			return err
		}
		provider, err := buildProvider(cfg)
		if err != nil {
			return err
		}

		if err := provider.TestConnection(cmd.Context()); err != nil {
			return fmt.Errorf("connection test failed for %s: %w", provider.Name(), err)
		}
		fmt.Printf("%s: connection OK\n", provider.Name())
		return nil
	},
}
