package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackzampolin/scribe/internal/providers"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Providers) == 0 {
		t.Error("expected default providers")
	}
	openai, ok := cfg.GetProvider("openai")
	if !ok {
		t.Fatal("expected openai provider")
	}
	if openai.APIKey != "${OPENAI_API_KEY}" {
		t.Error("expected openai API key placeholder")
	}
	if cfg.Defaults.Provider != "openai" {
		t.Errorf("default provider = %s, want openai", cfg.Defaults.Provider)
	}
	if cfg.Translation.ChunkChars <= cfg.Metadata.ChunkChars {
		t.Error("translation chunks should be larger than metadata chunks")
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_API_KEY", "secret123")
		defer os.Unsetenv("TEST_API_KEY")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestEnabledProviders(t *testing.T) {
	cfg := &Config{
		Providers: map[string]ProviderCfg{
			"on":  {Type: "ollama", Enabled: true},
			"off": {Type: "ollama", Enabled: false},
		},
	}

	enabled := cfg.EnabledProviders()
	if len(enabled) != 1 {
		t.Fatalf("expected 1 enabled provider, got %d", len(enabled))
	}
	if _, ok := enabled["on"]; !ok {
		t.Error("expected provider 'on' to be enabled")
	}
}

func TestBuildProvider(t *testing.T) {
	cfg := &Config{
		Providers: map[string]ProviderCfg{
			"local": {
				Type:    "ollama",
				Model:   "llama3.1",
				BaseURL: "http://localhost:11434",
				Enabled: true,
			},
			"cloud": {
				Type:    "openai",
				Model:   "gpt-5-nano",
				APIKey:  "sk-test",
				Enabled: true,
			},
			"disabled": {
				Type:    "ollama",
				Enabled: false,
			},
			"weird": {
				Type:    "carrier-pigeon",
				Enabled: true,
			},
		},
		Defaults: DefaultsCfg{Provider: "local"},
	}

	t.Run("builds ollama provider", func(t *testing.T) {
		p, err := cfg.BuildProvider("local")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Name() != providers.OllamaName {
			t.Errorf("Name() = %s, want %s", p.Name(), providers.OllamaName)
		}
	})

	t.Run("builds openai provider", func(t *testing.T) {
		p, err := cfg.BuildProvider("cloud")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Name() != providers.OpenAIName {
			t.Errorf("Name() = %s, want %s", p.Name(), providers.OpenAIName)
		}
	})

	t.Run("empty name selects default", func(t *testing.T) {
		p, err := cfg.BuildProvider("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Name() != providers.OllamaName {
			t.Errorf("Name() = %s, want default provider", p.Name())
		}
	})

	t.Run("unknown provider", func(t *testing.T) {
		if _, err := cfg.BuildProvider("nope"); err == nil {
			t.Error("expected error for unknown provider")
		}
	})

	t.Run("disabled provider", func(t *testing.T) {
		if _, err := cfg.BuildProvider("disabled"); err == nil {
			t.Error("expected error for disabled provider")
		}
	})

	t.Run("unknown type", func(t *testing.T) {
		if _, err := cfg.BuildProvider("weird"); err == nil {
			t.Error("expected error for unknown provider type")
		}
	})
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		configContent := `
defaults:
  provider: ollama
  target_language: Ukrainian
`
		if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Defaults.Provider != "ollama" {
			t.Errorf("provider = %s, want ollama", cfg.Defaults.Provider)
		}
		if cfg.Defaults.TargetLanguage != "Ukrainian" {
			t.Errorf("target language = %s, want Ukrainian", cfg.Defaults.TargetLanguage)
		}
		// Unset sections fall back to defaults.
		if cfg.Translation.ChunkChars != 30000 {
			t.Errorf("chunk chars = %d, want default 30000", cfg.Translation.ChunkChars)
		}
	})
}

func TestManager_OnChange(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("defaults:\n  provider: openai\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 2 {
		t.Errorf("expected 2 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read config: %v", err)
	}
	text := string(data)
	if !strings.HasPrefix(text, "# Scribe configuration") {
		t.Error("expected comment header")
	}
	if !strings.Contains(text, "${OPENAI_API_KEY}") {
		t.Error("expected API key placeholder in written config")
	}

	// The written file round-trips through the manager.
	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("failed to load written config: %v", err)
	}
	if mgr.Get().Defaults.Provider != "openai" {
		t.Error("written config did not round-trip")
	}
}
