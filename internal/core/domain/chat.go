package domain

// FallbackAnswer is returned to the user when generation is unavailable.
const FallbackAnswer = "The school assistant is temporarily unavailable. Please try again in a few minutes."

// ChatRole identifies the author of a conversation turn.
type ChatRole string

// Conversation roles.
const (
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatTurn is one message of a conversation.
type ChatTurn struct {
	Role    ChatRole
	Content string
}

// ChatRequest is a user question plus prior conversation.
type ChatRequest struct {
	Message string
	History []ChatTurn
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	// RequestID correlates the reply with server logs.
	RequestID string

	// Answer is the generated text, or FallbackAnswer when degraded.
	Answer string

	// Sources lists the passages the answer was grounded on.
	Sources []RetrievalResult

	// Degraded is true when retrieval or generation failed.
	Degraded bool
}

// GenerationRequest is the data handed to the generation service.
type GenerationRequest struct {
	SystemPrompt string
	Context      string
	History      []ChatTurn
	Message      string
}
