package aiprovider

import (
	"context"
	"errors"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-scan-capture/internal/config"
	apperrors "go-scan-capture/internal/errors"
)

func TestGeminiProvider_Available(t *testing.T) {
	withKey := NewGeminiProvider(config.StaticSource{config.KeyGeminiAPIKey: "k"})
	assert.True(t, withKey.Available())

	withoutKey := NewGeminiProvider(config.StaticSource{})
	assert.False(t, withoutKey.Available())
}

func TestGeminiProvider_MissingKey(t *testing.T) {
	provider := NewGeminiProvider(config.StaticSource{})

	_, err := provider.GenerateText(context.Background(), []Message{{Role: RoleUser, Text: "hi"}}, CallOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
}

func TestGeminiProvider_GenerateImageUnsupported(t *testing.T) {
	provider := NewGeminiProvider(config.StaticSource{config.KeyGeminiAPIKey: "k"})

	_, err := provider.GenerateImage(context.Background(), "a diagram", CallOptions{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeProvider))
}

func TestGeminiProvider_ModelPrecedence(t *testing.T) {
	provider := NewGeminiProvider(config.StaticSource{
		config.KeyGeminiAPIKey: "k",
		config.KeyGeminiModel:  "gemini-1.5-pro",
	})

	assert.Equal(t, "gemini-1.5-pro", provider.model(CallOptions{}))
	assert.Equal(t, "gemini-2.0-flash", provider.model(CallOptions{Model: "gemini-2.0-flash"}))

	bare := NewGeminiProvider(config.StaticSource{config.KeyGeminiAPIKey: "k"})
	assert.Equal(t, defaultGeminiModel, bare.model(CallOptions{}))
}

func TestClassifyGeminiError(t *testing.T) {
	rateLimited := classifyGeminiError(errors.New("googleapi: Error 429: quota exceeded"))
	assert.True(t, apperrors.IsType(rateLimited, apperrors.ErrorTypeRateLimit))

	exhausted := classifyGeminiError(errors.New("generativelanguage.googleapis.com: RESOURCE_EXHAUSTED: out of quota"))
	assert.True(t, apperrors.IsType(exhausted, apperrors.ErrorTypeRateLimit))

	other := classifyGeminiError(errors.New("rpc error: code = Internal desc = boom"))
	assert.True(t, apperrors.IsType(other, apperrors.ErrorTypeProvider))
}

func TestFirstCandidateText(t *testing.T) {
	assert.Equal(t, "", firstCandidateText(nil))
	assert.Equal(t, "", firstCandidateText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: nil},
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("hello "), genai.Text("world")}}},
		},
	}
	assert.Equal(t, "hello world", firstCandidateText(resp))
}
