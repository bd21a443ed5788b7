package llm

import (
	"fmt"
	"strings"
	"time"
)

// FactoryConfig holds the parameters needed to create a Completer.
// It is defined here so the llm package does not import the config package.
type FactoryConfig struct {
	// Provider is the backend name ("openai" or "langchain").
	Provider string
	// APIKey is the provider credential.
	APIKey string
	// Model is the model identifier.
	Model string
	// BaseURL is the OpenAI-compatible API base URL.
	BaseURL string
	// Temperature is the sampling temperature.
	Temperature float64
	// MaxTokens bounds completion length (0 means provider default).
	MaxTokens int
	// Timeout is the per-call timeout.
	Timeout time.Duration
	// MaxRetries is the maximum number of retries for transient failures.
	MaxRetries int
	// RetryDelay is the base delay between retries.
	RetryDelay time.Duration
}

// NewCompleter creates a Completer for the configured provider. Returns an
// error for unsupported or empty provider values.
func NewCompleter(cfg FactoryConfig) (Completer, error) {
	openAICfg := OpenAIConfig{
		APIKey:      cfg.APIKey,
		Model:       cfg.Model,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
		RetryDelay:  cfg.RetryDelay,
	}

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIProvider(openAICfg), nil
	case "langchain":
		return NewLangchainOpenAIProvider(openAICfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %q", cfg.Provider)
	}
}
