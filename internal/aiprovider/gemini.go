package aiprovider

import (
	"context"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"go-scan-capture/internal/config"
	apperrors "go-scan-capture/internal/errors"
)

const defaultGeminiModel = "gemini-1.5-flash"

// GeminiProvider talks to the Gemini API through the official SDK. A fresh
// client is created per call and closed when done, so a rotated API key takes
// effect immediately.
type GeminiProvider struct {
	source config.Source
}

func NewGeminiProvider(source config.Source) *GeminiProvider {
	return &GeminiProvider{source: source}
}

func (p *GeminiProvider) Name() Name { return ProviderGemini }

func (p *GeminiProvider) Available() bool {
	_, ok := p.source.Get(config.KeyGeminiAPIKey)
	return ok
}

func (p *GeminiProvider) model(opts CallOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	if v, ok := p.source.Get(config.KeyGeminiModel); ok {
		return v
	}
	return defaultGeminiModel
}

func (p *GeminiProvider) GenerateText(ctx context.Context, msgs []Message, opts CallOptions) (string, error) {
	key, ok := p.source.Get(config.KeyGeminiAPIKey)
	if !ok {
		return "", apperrors.NewConfigurationError("gemini: GEMINI_API_KEY is not set", nil)
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return "", apperrors.NewProviderError("gemini: creating client", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(strings.TrimSpace(p.model(opts)))
	m.GenerationConfig = genai.GenerationConfig{Temperature: opts.Temperature}
	if opts.MaxTokens > 0 {
		tokens := int32(opts.MaxTokens)
		m.GenerationConfig.MaxOutputTokens = &tokens
	}
	if opts.JSONMode {
		m.GenerationConfig.ResponseMIMEType = "application/json"
	}

	var system []genai.Part
	var parts []genai.Part
	for _, msg := range msgs {
		switch msg.Role {
		case RoleSystem:
			system = append(system, genai.Text(msg.Text))
		default:
			if msg.Text != "" {
				parts = append(parts, genai.Text(msg.Text))
			}
			if len(msg.ImageData) > 0 {
				parts = append(parts, &genai.Blob{MIMEType: msg.ImageMIME, Data: msg.ImageData})
			}
		}
	}
	if len(system) > 0 {
		m.SystemInstruction = &genai.Content{Parts: system}
	}
	if len(parts) == 0 {
		return "", apperrors.NewValidationError("gemini: no user content in request", nil)
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", classifyGeminiError(err)
	}
	text := firstCandidateText(resp)
	if text == "" {
		return "", apperrors.NewProviderError("gemini: empty response", nil)
	}
	return text, nil
}

// StreamText buffers the whole completion and hands it back as one chunk, so
// callers see the same stream shape regardless of the resolved provider.
func (p *GeminiProvider) StreamText(ctx context.Context, msgs []Message, opts CallOptions) (TextStream, error) {
	text, err := p.GenerateText(ctx, msgs, opts)
	if err != nil {
		return nil, err
	}
	return newSingleChunkStream(text), nil
}

// GenerateImage is not offered by this backend. Returning a provider error
// lets the router route image generation to the other provider.
func (p *GeminiProvider) GenerateImage(ctx context.Context, prompt string, opts CallOptions) ([][]byte, error) {
	return nil, apperrors.NewProviderError("gemini: image generation is not supported", nil)
}

func classifyGeminiError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "resource_exhausted") {
		return apperrors.NewRateLimitError("gemini: rate limited", err)
	}
	return apperrors.NewProviderError("gemini: request failed", err)
}

func firstCandidateText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			break
		}
	}
	return sb.String()
}
