package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/scribe/internal/config"
	"github.com/jackzampolin/scribe/internal/home"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the scribe home directory and default config",
	Long: `Create the scribe home directory (default: ~/.scribe) with its state
and outputs subdirectories, and write a default config.yaml.

An existing config file is left untouched unless --force is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		if h.ConfigExists() && !initForce {
			fmt.Printf("config already exists at %s (use --force to overwrite)\n", h.ConfigPath())
			return nil
		}

		if err := config.WriteDefault(h.ConfigPath()); err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", h.ConfigPath())
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}
