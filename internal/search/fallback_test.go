package search

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTool struct {
	output string
	err    error
	input  string
}

func (f *fakeTool) Name() string        { return "fake" }
func (f *fakeTool) Description() string { return "fake search tool" }

func (f *fakeTool) Call(_ context.Context, input string) (string, error) {
	f.input = input
	return f.output, f.err
}

func TestToolFallback_SearchText(t *testing.T) {
	t.Parallel()

	tool := &fakeTool{output: "  Solid-state <em>batteries</em> reach pilot production &amp; scale.\n"}
	fallback := NewToolFallback(tool, nil, zerolog.Nop())

	text, err := fallback.SearchText(context.Background(), "EV battery trends")

	require.NoError(t, err)
	assert.Equal(t, "EV battery trends", tool.input)
	assert.Equal(t, "Solid-state batteries reach pilot production & scale.", text)
}

func TestToolFallback_SearchText_ToolError(t *testing.T) {
	t.Parallel()

	cause := errors.New("rate limited")
	fallback := NewToolFallback(&fakeTool{err: cause}, nil, zerolog.Nop())

	_, err := fallback.SearchText(context.Background(), "q")

	var searchErr *SearchError
	require.True(t, errors.As(err, &searchErr))
	assert.Equal(t, "fake", searchErr.Provider)
	assert.ErrorIs(t, err, cause)
}

func TestToolFallback_SearchText_BlankOutput(t *testing.T) {
	t.Parallel()

	fallback := NewToolFallback(&fakeTool{output: " <p></p> "}, nil, zerolog.Nop())

	text, err := fallback.SearchText(context.Background(), "q")

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestNewDuckDuckGoFallback(t *testing.T) {
	t.Parallel()

	fallback, err := NewDuckDuckGoFallback(6, nil, zerolog.Nop())

	require.NoError(t, err)
	require.NotNil(t, fallback)
	assert.NotEmpty(t, fallback.tool.Name())
}
