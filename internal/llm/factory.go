package llm

import (
	"fmt"
	"os"
)

// NewProvider builds the chat provider named by providerType, either
// "openai" or "ollama". OpenAI reads its key from OPENAI_API_KEY; Ollama
// resolves its host inside the constructor.
func NewProvider(providerType string, model string) (Provider, error) {
	switch providerType {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
		}
		return NewOpenAIProvider(apiKey, model), nil
	case "ollama":
		return NewOllamaProvider("", model), nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", providerType)
	}
}
