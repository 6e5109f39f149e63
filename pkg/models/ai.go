package models

import "encoding/json"

// ChatMessage is one prior turn of a conversation, "user" or "assistant".
// The system role is carried separately in SystemPrompt.
type ChatMessage struct {
	Role string `json:"role" binding:"required"`
	Text string `json:"text" binding:"required"`
}

// GenerateRequest is the transport shape for an AI text generation call.
// Single-turn callers set Prompt; chat callers send the conversation history
// in Messages, optionally with Prompt as the newest user turn. One of the two
// must be present.
type GenerateRequest struct {
	Prompt       string        `json:"prompt,omitempty"`
	Messages     []ChatMessage `json:"messages,omitempty"`
	SystemPrompt string        `json:"system_prompt,omitempty"`
	Provider     string        `json:"provider,omitempty"` // "openai", "gemini" or "auto"
	Model        string        `json:"model,omitempty"`
	Temperature  *float32      `json:"temperature,omitempty"`
	MaxTokens    int           `json:"max_tokens,omitempty"`
	JSONMode     bool          `json:"json_mode,omitempty"`

	// Optional inline image for vision prompts, base64 on the wire. The image
	// attaches to the newest user turn.
	ImageData []byte `json:"image_data,omitempty"`
	ImageMIME string `json:"image_mime,omitempty"`
}

// GenerateResponse carries the raw model text and, when JSON mode was
// requested, the normalized JSON extracted from it.
type GenerateResponse struct {
	Provider string          `json:"provider"`
	Text     string          `json:"text"`
	JSON     json.RawMessage `json:"json,omitempty"`
}
