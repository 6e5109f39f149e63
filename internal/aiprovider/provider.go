package aiprovider

import (
	"context"
	"io"
)

// Name identifies a backing AI provider.
type Name string

const (
	ProviderOpenAI Name = "openai"
	ProviderGemini Name = "gemini"
	// ProviderAuto lets the router pick whichever provider has credentials.
	ProviderAuto Name = "auto"
)

// Role of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a model conversation. A message may carry an inline
// image for vision calls; ImageMIME must be set alongside ImageData.
type Message struct {
	Role      Role
	Text      string
	ImageData []byte
	ImageMIME string
}

// CallOptions tune a single model call. Zero values mean provider defaults.
type CallOptions struct {
	Model       string
	Temperature *float32
	MaxTokens   int
	// JSONMode asks the model for a raw JSON document with no prose around it.
	JSONMode bool
	// ImageCount is how many images GenerateImage should produce. Zero means
	// one.
	ImageCount int
}

// Chunk is one piece of a streamed completion.
type Chunk struct {
	Text string
}

// TextStream delivers a completion incrementally. Recv returns io.EOF after
// the final chunk. Close releases the underlying connection and is safe to
// call more than once.
type TextStream interface {
	Recv() (Chunk, error)
	Close() error
}

// Provider is a single AI backend. Implementations classify transport
// failures as provider errors and HTTP 429 responses as rate limit errors so
// the router can fall back and retry accordingly.
type Provider interface {
	Name() Name
	// Available reports whether the provider currently has credentials.
	// Credentials are re-read on every call, so availability can change
	// between calls.
	Available() bool
	GenerateText(ctx context.Context, msgs []Message, opts CallOptions) (string, error)
	StreamText(ctx context.Context, msgs []Message, opts CallOptions) (TextStream, error)
	// GenerateImage returns one payload per generated image, opts.ImageCount
	// of them.
	GenerateImage(ctx context.Context, prompt string, opts CallOptions) ([][]byte, error)
}

// singleChunkStream adapts a fully buffered completion to the TextStream
// interface for providers without native streaming.
type singleChunkStream struct {
	text string
	done bool
}

func newSingleChunkStream(text string) TextStream {
	return &singleChunkStream{text: text}
}

func (s *singleChunkStream) Recv() (Chunk, error) {
	if s.done {
		return Chunk{}, io.EOF
	}
	s.done = true
	return Chunk{Text: s.text}, nil
}

func (s *singleChunkStream) Close() error {
	s.done = true
	return nil
}
