package aiprovider

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-scan-capture/internal/config"
	apperrors "go-scan-capture/internal/errors"
	"go-scan-capture/pkg/models"
)

// fakeProvider scripts a sequence of errors before succeeding with text.
type fakeProvider struct {
	name      Name
	available bool
	text      string
	errs      []error // consumed one per GenerateText call
	calls     int
	lastMsgs  []Message
	lastOpts  CallOptions

	imageData     [][]byte
	imageErr      error
	lastImageOpts CallOptions
}

func (f *fakeProvider) Name() Name { return f.name }

func (f *fakeProvider) Available() bool { return f.available }

func (f *fakeProvider) GenerateText(_ context.Context, msgs []Message, opts CallOptions) (string, error) {
	f.calls++
	f.lastMsgs = msgs
	f.lastOpts = opts
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return "", err
	}
	return f.text, nil
}

func (f *fakeProvider) StreamText(ctx context.Context, msgs []Message, opts CallOptions) (TextStream, error) {
	text, err := f.GenerateText(ctx, msgs, opts)
	if err != nil {
		return nil, err
	}
	return newSingleChunkStream(text), nil
}

func (f *fakeProvider) GenerateImage(_ context.Context, _ string, opts CallOptions) ([][]byte, error) {
	f.lastImageOpts = opts
	if f.imageErr != nil {
		return nil, f.imageErr
	}
	return f.imageData, nil
}

func newTestRouter(source config.Source, providers ...Provider) *Router {
	if source == nil {
		source = config.StaticSource{}
	}
	return NewRouterWithProviders(source, RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond}, providers...)
}

func TestResolve_AutoPrefersFirstRegistered(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: true}
	gemini := &fakeProvider{name: ProviderGemini, available: true}
	router := newTestRouter(nil, openai, gemini)

	p, err := router.Resolve(ProviderAuto)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())
}

func TestResolve_AutoSkipsUncredentialed(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: false}
	gemini := &fakeProvider{name: ProviderGemini, available: true}
	router := newTestRouter(nil, openai, gemini)

	p, err := router.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p.Name())
}

func TestResolve_ExplicitProviderHonored(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: true}
	gemini := &fakeProvider{name: ProviderGemini, available: true}
	router := newTestRouter(nil, openai, gemini)

	p, err := router.Resolve(ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p.Name())
}

func TestResolve_ExplicitWithoutCredentialsFallsBack(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: true}
	gemini := &fakeProvider{name: ProviderGemini, available: false}
	router := newTestRouter(nil, openai, gemini)

	p, err := router.Resolve(ProviderGemini)
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, p.Name())
}

func TestResolve_NoProviderConfigured(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: false}
	gemini := &fakeProvider{name: ProviderGemini, available: false}
	router := newTestRouter(nil, openai, gemini)

	_, err := router.Resolve(ProviderAuto)
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeConfiguration))
	// The error must name both credential variables
	assert.Contains(t, err.Error(), config.KeyOpenAIAPIKey)
	assert.Contains(t, err.Error(), config.KeyGeminiAPIKey)
}

func TestResolve_DefaultProviderFromConfig(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: true}
	gemini := &fakeProvider{name: ProviderGemini, available: true}
	source := config.StaticSource{config.KeyDefaultAIProvider: "gemini"}
	router := newTestRouter(source, openai, gemini)

	p, err := router.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, p.Name())
}

func TestGenerate_Success(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: true, text: "all clear"}
	router := newTestRouter(nil, openai)

	resp, err := router.Generate(context.Background(), models.GenerateRequest{
		Prompt:       "assess this scan",
		SystemPrompt: "you are a podiatry assistant",
	})
	require.NoError(t, err)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, "all clear", resp.Text)

	require.Len(t, openai.lastMsgs, 2)
	assert.Equal(t, RoleSystem, openai.lastMsgs[0].Role)
	assert.Equal(t, RoleUser, openai.lastMsgs[1].Role)
	assert.Equal(t, "assess this scan", openai.lastMsgs[1].Text)
}

func TestGenerate_ConversationHistory(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: true, text: "follow-up answer"}
	router := newTestRouter(nil, openai)

	resp, err := router.Generate(context.Background(), models.GenerateRequest{
		SystemPrompt: "you are a podiatry assistant",
		Messages: []models.ChatMessage{
			{Role: "user", Text: "what does the wear pattern suggest"},
			{Role: "assistant", Text: "lateral wear, possible supination"},
		},
		Prompt: "and which capture angle confirms that",
	})
	require.NoError(t, err)
	assert.Equal(t, "follow-up answer", resp.Text)

	require.Len(t, openai.lastMsgs, 4)
	assert.Equal(t, RoleSystem, openai.lastMsgs[0].Role)
	assert.Equal(t, RoleUser, openai.lastMsgs[1].Role)
	assert.Equal(t, RoleAssistant, openai.lastMsgs[2].Role)
	assert.Equal(t, "lateral wear, possible supination", openai.lastMsgs[2].Text)
	assert.Equal(t, RoleUser, openai.lastMsgs[3].Role)
	assert.Equal(t, "and which capture angle confirms that", openai.lastMsgs[3].Text)
}

func TestGenerate_MessagesWithoutPrompt(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: true, text: "ok"}
	router := newTestRouter(nil, openai)

	_, err := router.Generate(context.Background(), models.GenerateRequest{
		Messages: []models.ChatMessage{
			{Role: "user", Text: "is this angle usable"},
		},
		ImageData: []byte{1, 2, 3},
		ImageMIME: "image/png",
	})
	require.NoError(t, err)

	// The inline image rides on the newest user turn
	require.Len(t, openai.lastMsgs, 1)
	assert.Equal(t, []byte{1, 2, 3}, openai.lastMsgs[0].ImageData)
}

func TestGenerate_EmptyRequestRejected(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: true, text: "unused"}
	router := newTestRouter(nil, openai)

	_, err := router.Generate(context.Background(), models.GenerateRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	assert.Equal(t, 0, openai.calls)
}

func TestGenerate_UnknownChatRoleRejected(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: true, text: "unused"}
	router := newTestRouter(nil, openai)

	_, err := router.Generate(context.Background(), models.GenerateRequest{
		Messages: []models.ChatMessage{{Role: "tool", Text: "data"}},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
}

func TestGenerate_RetriesRateLimit(t *testing.T) {
	openai := &fakeProvider{
		name:      ProviderOpenAI,
		available: true,
		text:      "eventually",
		errs: []error{
			apperrors.NewRateLimitError("429", nil),
			apperrors.NewRateLimitError("429", nil),
		},
	}
	router := newTestRouter(nil, openai)

	resp, err := router.Generate(context.Background(), models.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "eventually", resp.Text)
	assert.Equal(t, 3, openai.calls)
}

func TestGenerate_FallsBackOnProviderError(t *testing.T) {
	openai := &fakeProvider{
		name:      ProviderOpenAI,
		available: true,
		errs:      []error{apperrors.NewProviderError("upstream down", nil)},
	}
	gemini := &fakeProvider{name: ProviderGemini, available: true, text: "from gemini"}
	router := newTestRouter(nil, openai, gemini)

	resp, err := router.Generate(context.Background(), models.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "gemini", resp.Provider)
	assert.Equal(t, "from gemini", resp.Text)
	assert.Equal(t, 1, openai.calls)
	assert.Equal(t, 1, gemini.calls)
}

func TestGenerate_NoFallbackForValidationErrors(t *testing.T) {
	openai := &fakeProvider{
		name:      ProviderOpenAI,
		available: true,
		errs:      []error{apperrors.NewValidationError("bad prompt", nil)},
	}
	gemini := &fakeProvider{name: ProviderGemini, available: true, text: "unused"}
	router := newTestRouter(nil, openai, gemini)

	_, err := router.Generate(context.Background(), models.GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, 0, gemini.calls)
}

func TestGenerate_JSONModeNormalizes(t *testing.T) {
	openai := &fakeProvider{
		name:      ProviderOpenAI,
		available: true,
		text:      "```json\n{\"passed\": true}\n```",
	}
	router := newTestRouter(nil, openai)

	resp, err := router.Generate(context.Background(), models.GenerateRequest{Prompt: "hi", JSONMode: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"passed": true}`, string(resp.JSON))
	assert.True(t, openai.lastOpts.JSONMode)
}

func TestGenerate_JSONModeParseFailure(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: true, text: "sorry, no can do"}
	router := newTestRouter(nil, openai)

	_, err := router.Generate(context.Background(), models.GenerateRequest{Prompt: "hi", JSONMode: true})
	require.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeParse))
}

func TestGenerateJSON(t *testing.T) {
	openai := &fakeProvider{
		name:      ProviderOpenAI,
		available: true,
		text:      `The result: {"passed": false, "reason": "blur"}`,
	}
	router := newTestRouter(nil, openai)

	var out struct {
		Passed bool   `json:"passed"`
		Reason string `json:"reason"`
	}
	resp, err := router.GenerateJSON(context.Background(), models.GenerateRequest{Prompt: "hi"}, &out)
	require.NoError(t, err)
	assert.False(t, out.Passed)
	assert.Equal(t, "blur", out.Reason)
	assert.True(t, json.Valid(resp.JSON))
}

func TestStream_SingleChunk(t *testing.T) {
	gemini := &fakeProvider{name: ProviderGemini, available: true, text: "streamed text"}
	router := newTestRouter(nil, gemini)

	stream, name, err := router.Stream(context.Background(), models.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, name)
	defer stream.Close()

	var parts []string
	for {
		chunk, recvErr := stream.Recv()
		if recvErr == io.EOF {
			break
		}
		require.NoError(t, recvErr)
		parts = append(parts, chunk.Text)
	}
	assert.Equal(t, "streamed text", strings.Join(parts, ""))
}

func TestStream_FallbackAtOpen(t *testing.T) {
	openai := &fakeProvider{
		name:      ProviderOpenAI,
		available: true,
		errs:      []error{apperrors.NewProviderError("upstream down", nil)},
	}
	gemini := &fakeProvider{name: ProviderGemini, available: true, text: "fallback stream"}
	router := newTestRouter(nil, openai, gemini)

	stream, name, err := router.Stream(context.Background(), models.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, ProviderGemini, name)
	stream.Close()
}

func TestGenerateImage_FallbackWhenUnsupported(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: true, imageData: [][]byte{{0x89, 'P', 'N', 'G'}}}
	gemini := &fakeProvider{
		name:      ProviderGemini,
		available: true,
		imageErr:  apperrors.NewProviderError("image generation is not supported", nil),
	}
	router := newTestRouter(nil, gemini, openai)

	images, name, err := router.GenerateImage(context.Background(), "a foot diagram", ProviderGemini, CallOptions{})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, name)
	require.Len(t, images, 1)
	assert.NotEmpty(t, images[0])
}

func TestGenerateImage_CountForwarded(t *testing.T) {
	openai := &fakeProvider{
		name:      ProviderOpenAI,
		available: true,
		imageData: [][]byte{[]byte("one"), []byte("two"), []byte("three")},
	}
	router := newTestRouter(nil, openai)

	images, _, err := router.GenerateImage(context.Background(), "wear patterns", ProviderOpenAI, CallOptions{ImageCount: 3})
	require.NoError(t, err)
	assert.Len(t, images, 3)
	assert.Equal(t, 3, openai.lastImageOpts.ImageCount)
}

func TestGenerate_ImagePayloadForwarded(t *testing.T) {
	openai := &fakeProvider{name: ProviderOpenAI, available: true, text: "seen"}
	router := newTestRouter(nil, openai)

	_, err := router.Generate(context.Background(), models.GenerateRequest{
		Prompt:    "what angle is this",
		ImageData: []byte{1, 2, 3},
		ImageMIME: "image/png",
	})
	require.NoError(t, err)

	require.Len(t, openai.lastMsgs, 1)
	assert.Equal(t, []byte{1, 2, 3}, openai.lastMsgs[0].ImageData)
	assert.Equal(t, "image/png", openai.lastMsgs[0].ImageMIME)
}

func TestSingleChunkStream(t *testing.T) {
	stream := newSingleChunkStream("hello")

	chunk, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "hello", chunk.Text)

	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)

	require.NoError(t, stream.Close())
	_, err = stream.Recv()
	assert.Equal(t, io.EOF, err)
}
