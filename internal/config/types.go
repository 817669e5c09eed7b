package config

// ProviderType identifies an LLM or embedding provider.
type ProviderType string

const (
	ProviderOpenAI ProviderType = "openai"
	ProviderOllama ProviderType = "ollama"
)

// Config is the top-level finsight configuration, corresponding to .finsight.yml.
type Config struct {
	Provider          ProviderType `yaml:"provider" koanf:"provider"`
	Model             string       `yaml:"model" koanf:"model"`
	EmbeddingProvider ProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string       `yaml:"embedding_model" koanf:"embedding_model"`
	DataDir           string       `yaml:"data_dir" koanf:"data_dir"`
	Include           []string     `yaml:"include" koanf:"include"`
	Exclude           []string     `yaml:"exclude" koanf:"exclude"`

	// Metrics is the default list of financial metrics extracted by the
	// metric task when the caller does not name its own.
	Metrics []string `yaml:"metrics" koanf:"metrics"`

	TopK            int     `yaml:"top_k" koanf:"top_k"`
	Temperature     float64 `yaml:"temperature" koanf:"temperature"`
	MaxOutputTokens int     `yaml:"max_output_tokens" koanf:"max_output_tokens"`
	MaxAttempts     int     `yaml:"max_attempts" koanf:"max_attempts"`
	MaxConcurrency  int     `yaml:"max_concurrency" koanf:"max_concurrency"`
	RequestsPerMin  int     `yaml:"requests_per_min" koanf:"requests_per_min"`
	TimeoutSeconds  int     `yaml:"timeout_seconds" koanf:"timeout_seconds"`

	Server ServerConfig `yaml:"server" koanf:"server"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port     int    `yaml:"port" koanf:"port"`
	APIKey   string `yaml:"api_key" koanf:"api_key"`
	AllowAll bool   `yaml:"allow_all_origins" koanf:"allow_all_origins"`
}
