package server

// ChatRequest is the chat endpoint's payload. Messages follow the
// assistant-ui shape: each message's content is either a plain string or a
// list of typed parts, of which only the first "text" part is read.
type ChatRequest struct {
	Persona   string        `json:"persona,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
	UserID    string        `json:"user_id,omitempty"`
	MaxSteps  int           `json:"max_steps,omitempty"`
	Messages  []ChatMessage `json:"messages"`
}

// ChatMessage is one entry in the request's message list.
type ChatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

// Text extracts the message's text: the content itself when it is a string,
// otherwise the first {"type": "text", "text": ...} part of the list form.
func (m ChatMessage) Text() string {
	switch content := m.Content.(type) {
	case string:
		return content
	case []any:
		if len(content) == 0 {
			return ""
		}
		part, ok := content[0].(map[string]any)
		if !ok {
			return ""
		}
		if t, _ := part["type"].(string); t != "text" {
			return ""
		}
		text, _ := part["text"].(string)
		return text
	default:
		return ""
	}
}

// SystemInstruction returns the first system message's text, or "".
// A persona on the request takes priority over it downstream.
func (r ChatRequest) SystemInstruction() string {
	for _, m := range r.Messages {
		if m.Role == "system" {
			if text := m.Text(); text != "" {
				return text
			}
		}
	}
	return ""
}

// LastUserMessage returns the newest user message's text, falling back to a
// fixed placeholder so orchestration always receives a non-empty input.
func (r ChatRequest) LastUserMessage() string {
	for i := len(r.Messages) - 1; i >= 0; i-- {
		if r.Messages[i].Role == "user" {
			if text := r.Messages[i].Text(); text != "" {
				return text
			}
		}
	}
	return "No text content provided."
}
