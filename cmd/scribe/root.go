package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/scribe/internal/config"
	"github.com/jackzampolin/scribe/internal/home"
	"github.com/jackzampolin/scribe/internal/providers"
	"github.com/jackzampolin/scribe/internal/state"
	"github.com/jackzampolin/scribe/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	providerName string
)

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Book translation pipeline with LLM-powered metadata extraction",
	Long: `Scribe translates whole books through chat-based LLM providers.

The pipeline includes:
  - Metadata extraction (upload-first, with a chunked fallback)
  - Boundary-aware chunking with strict-JSON translation replies
  - Per-chunk checkpointing so interrupted jobs resume where they stopped
  - Cached metadata keyed by document content hash`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.scribe/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "scribe home directory (default: ~/.scribe)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output-format", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&providerName, "provider", "", "provider name from config (default: configured default)",
	)

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(testConnectionCmd)
	rootCmd.AddCommand(metadataCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(stateCmd)
}

// newLogger builds the shared text logger.
func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// loadHome resolves the home directory and makes sure it exists.
func loadHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}
	return h, nil
}

// loadConfig loads configuration, preferring the --config flag and
// falling back to the home directory config file.
func loadConfig(h *home.Dir) (*config.Config, error) {
	path := cfgFile
	if path == "" && h.ConfigExists() {
		path = h.ConfigPath()
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, err
	}
	return mgr.Get(), nil
}

// openStore opens the state store rooted in the home directory.
func openStore(h *home.Dir) (*state.Store, error) {
	return state.NewStore(h.StatePath())
}

// buildProvider constructs the provider selected by --provider (or the
// configured default).
func buildProvider(cfg *config.Config) (providers.Provider, error) {
	p, err := cfg.BuildProvider(providerName)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider: %w", err)
	}
	return p, nil
}
