// Package llm provides the text completion collaborator used by the workflow
// steps.
//
// Steps depend only on the Completer interface. Two backends are available:
// OpenAIProvider talks to any OpenAI-compatible Chat Completions endpoint
// directly, and LangchainProvider adapts a langchaingo llms.Model. Both are
// usually wrapped in an InstrumentedCompleter that records metrics.
//
// Example usage:
//
//	completer, err := llm.NewCompleter(llm.FactoryConfig{Provider: "openai", APIKey: key})
//	text, err := completer.Complete(ctx, []llm.Message{
//		llm.SystemMessage("You are a research planner."),
//		llm.UserMessage("task: battery recycling"),
//	})
package llm

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat turn sent to the model.
type Message struct {
	Role    Role
	Content string
}

// SystemMessage returns a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage returns a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// Completer produces a single text completion for an ordered message list.
//
// Implementations must be safe for concurrent use. Any returned error is a
// collaborator failure; callers decide on a fallback.
type Completer interface {
	// Complete returns the assistant text for messages.
	Complete(ctx context.Context, messages []Message) (string, error)

	// Provider returns the backend name (e.g., "openai").
	Provider() string

	// Model returns the model identifier in use.
	Model() string
}
