package llm

import (
	"fmt"
	"strings"
)

// Config selects and configures a provider.
type Config struct {
	Provider string // "anthropic" (default) or "openai"
	APIKey   string
	BaseURL  string
	Model    string
}

// NewProvider returns the provider named in cfg.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "anthropic":
		return NewAnthropicProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %s", cfg.Provider)
	}
}
