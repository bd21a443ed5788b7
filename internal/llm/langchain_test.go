package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

// fakeModel is an llms.Model that records the last request.
type fakeModel struct {
	messages []llms.MessageContent
	opts     llms.CallOptions
	resp     *llms.ContentResponse
	err      error
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.opts)
	}
	return m.resp, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangchainProvider_Complete(t *testing.T) {
	t.Parallel()

	model := &fakeModel{resp: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "## Findings\nSolid."}},
	}}
	provider := NewLangchainProvider(model, "langchain", "gpt-4o-mini", 0.2, 256)

	text, err := provider.Complete(context.Background(), []Message{
		SystemMessage("sys"),
		UserMessage("write"),
		{Role: RoleAssistant, Content: "draft"},
	})

	require.NoError(t, err)
	assert.Equal(t, "## Findings\nSolid.", text)
	require.Len(t, model.messages, 3)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[1].Role)
	assert.Equal(t, llms.ChatMessageTypeAI, model.messages[2].Role)
	assert.Equal(t, llms.TextContent{Text: "write"}, model.messages[1].Parts[0])
	assert.InDelta(t, 0.2, model.opts.Temperature, 1e-9)
	assert.Equal(t, 256, model.opts.MaxTokens)
	assert.Equal(t, "langchain", provider.Provider())
	assert.Equal(t, "gpt-4o-mini", provider.Model())
}

func TestLangchainProvider_Complete_Errors(t *testing.T) {
	t.Parallel()

	t.Run("model error is wrapped", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		provider := NewLangchainProvider(&fakeModel{err: boom}, "langchain", "m", 0, 0)

		_, err := provider.Complete(context.Background(), []Message{UserMessage("x")})
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("no choices", func(t *testing.T) {
		t.Parallel()
		provider := NewLangchainProvider(&fakeModel{resp: &llms.ContentResponse{}}, "langchain", "m", 0, 0)

		_, err := provider.Complete(context.Background(), []Message{UserMessage("x")})
		assert.ErrorIs(t, err, ErrEmptyCompletion)
	})
}
