package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// LangchainProvider implements Completer on top of a langchaingo model.
type LangchainProvider struct {
	model       llms.Model
	name        string
	modelName   string
	temperature float64
	maxTokens   int
}

var _ Completer = (*LangchainProvider)(nil)

// NewLangchainProvider wraps an existing langchaingo model. name and
// modelName are only used for reporting.
func NewLangchainProvider(model llms.Model, name, modelName string, temperature float64, maxTokens int) *LangchainProvider {
	return &LangchainProvider{
		model:       model,
		name:        name,
		modelName:   modelName,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// NewLangchainOpenAIProvider builds a langchaingo OpenAI-compatible model
// from cfg and wraps it.
func NewLangchainOpenAIProvider(cfg OpenAIConfig) (*LangchainProvider, error) {
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultOpenAIModel
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithModel(modelName),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, openai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("langchain: failed to create openai model: %w", err)
	}

	return NewLangchainProvider(model, "langchain", modelName, cfg.Temperature, cfg.MaxTokens), nil
}

// Complete converts messages to langchaingo message content and returns the
// first choice's text.
func (p *LangchainProvider) Complete(ctx context.Context, messages []Message) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages))
	for _, m := range messages {
		content = append(content, llms.TextParts(chatMessageType(m.Role), m.Content))
	}

	opts := []llms.CallOption{llms.WithTemperature(p.temperature)}
	if p.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(p.maxTokens))
	}

	resp, err := p.model.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("langchain: generate content: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", fmt.Errorf("langchain: %w: no choices in response", ErrEmptyCompletion)
	}

	return resp.Choices[0].Content, nil
}

// Provider returns the name of the LLM provider.
func (p *LangchainProvider) Provider() string {
	return p.name
}

// Model returns the model identifier being used.
func (p *LangchainProvider) Model() string {
	return p.modelName
}

func chatMessageType(role Role) llms.ChatMessageType {
	switch role {
	case RoleSystem:
		return llms.ChatMessageTypeSystem
	case RoleAssistant:
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeHuman
	}
}
