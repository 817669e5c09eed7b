package config

// DefaultMetrics is the metric list extracted when a request names none.
var DefaultMetrics = []string{
	"Total Revenue",
	"Net Income",
	"EPS",
	"Operating Margin",
	"Debt to Equity Ratio",
}

// DefaultIncludes are glob patterns matched against filing files on bulk ingest.
var DefaultIncludes = []string{
	"**/*.txt",
	"**/*.md",
}

// DefaultExcludes are glob patterns skipped on bulk ingest.
var DefaultExcludes = []string{
	".git/**",
	"**/*.tmp",
	"**/README.md",
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderOpenAI,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: ProviderOpenAI,
		EmbeddingModel:    "text-embedding-3-small",
		DataDir:           ".finsight",
		Include:           DefaultIncludes,
		Exclude:           DefaultExcludes,
		Metrics:           DefaultMetrics,
		TopK:              5,
		Temperature:       0.0,
		MaxOutputTokens:   1024,
		MaxAttempts:       3,
		MaxConcurrency:    4,
		RequestsPerMin:    60,
		TimeoutSeconds:    60,
		Server: ServerConfig{
			Port: 8080,
		},
	}
}
