package config

// Config holds scribe configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Providers   map[string]ProviderCfg `mapstructure:"providers" yaml:"providers"`
	Defaults    DefaultsCfg            `mapstructure:"defaults" yaml:"defaults"`
	Translation TranslationCfg         `mapstructure:"translation" yaml:"translation"`
	Metadata    MetadataCfg            `mapstructure:"metadata" yaml:"metadata"`
}

// ProviderCfg configures an LLM provider.
type ProviderCfg struct {
	Type           string `mapstructure:"type" yaml:"type"`                       // "openai", "ollama"
	Model          string `mapstructure:"model" yaml:"model"`                     // Model name
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`                 // API key (supports ${ENV_VAR} syntax)
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"`               // Optional endpoint override
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // Per-request timeout
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default selections for runs.
type DefaultsCfg struct {
	Provider       string `mapstructure:"provider" yaml:"provider"`               // Default provider name
	TargetLanguage string `mapstructure:"target_language" yaml:"target_language"` // Default translation target
}

// TranslationCfg bounds the translation pipeline.
type TranslationCfg struct {
	ChunkChars        int `mapstructure:"chunk_chars" yaml:"chunk_chars"`
	JSONRepairRetries int `mapstructure:"json_repair_retries" yaml:"json_repair_retries"`
}

// MetadataCfg bounds the metadata resolver.
type MetadataCfg struct {
	ChunkChars        int `mapstructure:"chunk_chars" yaml:"chunk_chars"`
	UploadRetries     int `mapstructure:"upload_retries" yaml:"upload_retries"`
	JSONRepairRetries int `mapstructure:"json_repair_retries" yaml:"json_repair_retries"`
	EarlyChunkHints   int `mapstructure:"early_chunk_hints" yaml:"early_chunk_hints"`
	MaxChunkSummaries int `mapstructure:"max_chunk_summaries" yaml:"max_chunk_summaries"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderCfg{
			"openai": {
				Type:    "openai",
				Model:   "gpt-5-nano",
				APIKey:  "${OPENAI_API_KEY}",
				Enabled: true,
			},
			"ollama": {
				Type:    "ollama",
				Model:   "llama3.1",
				BaseURL: "http://localhost:11434",
				Enabled: false,
			},
		},
		Defaults: DefaultsCfg{
			Provider:       "openai",
			TargetLanguage: "English",
		},
		Translation: TranslationCfg{
			ChunkChars:        30000,
			JSONRepairRetries: 2,
		},
		Metadata: MetadataCfg{
			ChunkChars:        8000,
			UploadRetries:     2,
			JSONRepairRetries: 2,
			EarlyChunkHints:   3,
			MaxChunkSummaries: 500,
		},
	}
}

// GetProvider returns a provider config by name.
func (c *Config) GetProvider(name string) (ProviderCfg, bool) {
	cfg, ok := c.Providers[name]
	return cfg, ok
}

// EnabledProviders returns all enabled providers.
func (c *Config) EnabledProviders() map[string]ProviderCfg {
	result := make(map[string]ProviderCfg)
	for name, cfg := range c.Providers {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
