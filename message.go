package statements

// Conversation roles understood by chat completion endpoints.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message represents a message in a conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a new user message
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewSystemMessage creates a new system message
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// buildMessages assembles system prompt, history and the user prompt into a
// fresh slice so retries never see a previous attempt's messages.
func buildMessages(system string, history []Message, prompt string) []Message {
	msgs := make([]Message, 0, len(history)+2)
	if system != "" {
		msgs = append(msgs, NewSystemMessage(system))
	}
	msgs = append(msgs, history...)
	if prompt != "" {
		msgs = append(msgs, NewUserMessage(prompt))
	}
	return msgs
}
