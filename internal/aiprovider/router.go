package aiprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go-scan-capture/internal/config"
	apperrors "go-scan-capture/internal/errors"
	"go-scan-capture/internal/logger"
	"go-scan-capture/pkg/models"
)

// Router picks a provider per call, retries rate-limited calls and falls back
// to the other provider on provider failures. A requested provider without
// credentials is swapped for the other one with a warning rather than failing
// the call outright.
type Router struct {
	providers map[Name]Provider
	// preference order for "auto" and for fallback
	order  []Name
	policy RetryPolicy
	source config.Source
}

func NewRouter(source config.Source, httpc *http.Client) *Router {
	return NewRouterWithProviders(source, DefaultRetryPolicy(),
		NewOpenAIProvider(source, httpc),
		NewGeminiProvider(source),
	)
}

// NewRouterWithProviders wires explicit providers, used by tests to inject
// fakes. Order determines the auto preference and fallback sequence.
func NewRouterWithProviders(source config.Source, policy RetryPolicy, providers ...Provider) *Router {
	r := &Router{
		providers: make(map[Name]Provider, len(providers)),
		policy:    policy,
		source:    source,
	}
	for _, p := range providers {
		r.providers[p.Name()] = p
		r.order = append(r.order, p.Name())
	}
	return r
}

// Resolve maps a requested provider name to a usable provider. An explicit
// request is honored when that provider has credentials; otherwise the other
// credentialed provider is substituted with a warning. With no usable
// provider at all, the error names both credential variables.
func (r *Router) Resolve(requested Name) (Provider, error) {
	if requested == "" || requested == ProviderAuto {
		requested = r.defaultProvider()
	}
	if requested != ProviderAuto {
		if p, ok := r.providers[requested]; ok && p.Available() {
			return p, nil
		}
		if fallback := r.firstAvailable(requested); fallback != nil {
			logger.WithProvider(string(requested)).
				WithField("fallback", fallback.Name()).
				Warn("requested AI provider has no credentials, using fallback")
			return fallback, nil
		}
		return nil, r.noProviderError()
	}
	if p := r.firstAvailable(""); p != nil {
		return p, nil
	}
	return nil, r.noProviderError()
}

func (r *Router) defaultProvider() Name {
	if v, ok := r.source.Get(config.KeyDefaultAIProvider); ok {
		switch Name(strings.ToLower(v)) {
		case ProviderOpenAI:
			return ProviderOpenAI
		case ProviderGemini:
			return ProviderGemini
		}
	}
	return ProviderAuto
}

func (r *Router) firstAvailable(skip Name) Provider {
	for _, name := range r.order {
		if name == skip {
			continue
		}
		if p := r.providers[name]; p != nil && p.Available() {
			return p
		}
	}
	return nil
}

func (r *Router) noProviderError() error {
	return apperrors.NewConfigurationError(
		fmt.Sprintf("no AI provider is configured: set %s or %s", config.KeyOpenAIAPIKey, config.KeyGeminiAPIKey), nil)
}

// Generate runs a text generation request against the resolved provider, with
// rate limit retries and a one-shot fallback to the other provider when the
// first fails with a provider error. Requests may carry a multi-turn
// conversation in Messages. JSON mode responses are normalized into the
// response's JSON field.
func (r *Router) Generate(ctx context.Context, req models.GenerateRequest) (models.GenerateResponse, error) {
	msgs, err := buildMessages(req)
	if err != nil {
		return models.GenerateResponse{}, err
	}
	opts := CallOptions{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		JSONMode:    req.JSONMode,
	}

	provider, err := r.Resolve(Name(req.Provider))
	if err != nil {
		return models.GenerateResponse{}, err
	}

	text, err := r.generateWithRetry(ctx, provider, msgs, opts)
	if err != nil && apperrors.IsType(err, apperrors.ErrorTypeProvider) {
		if fallback := r.firstAvailable(provider.Name()); fallback != nil {
			logger.WithProvider(string(provider.Name())).
				WithField("fallback", fallback.Name()).
				WithError(err).Warn("provider call failed, trying fallback")
			text, err = r.generateWithRetry(ctx, fallback, msgs, opts)
			provider = fallback
		}
	}
	if err != nil {
		return models.GenerateResponse{}, err
	}

	resp := models.GenerateResponse{Provider: string(provider.Name()), Text: text}
	if req.JSONMode {
		doc, err := ExtractJSON(text)
		if err != nil {
			return models.GenerateResponse{}, err
		}
		resp.JSON = doc
	}
	return resp, nil
}

// Stream opens a streaming text generation. Fallback happens at open time
// only: once chunks are flowing, a mid-stream failure surfaces to the caller.
func (r *Router) Stream(ctx context.Context, req models.GenerateRequest) (TextStream, Name, error) {
	msgs, err := buildMessages(req)
	if err != nil {
		return nil, "", err
	}
	opts := CallOptions{
		Model:       req.Model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		JSONMode:    req.JSONMode,
	}

	provider, err := r.Resolve(Name(req.Provider))
	if err != nil {
		return nil, "", err
	}

	var stream TextStream
	openErr := r.policy.Do(ctx, provider.Name(), func() error {
		var e error
		stream, e = provider.StreamText(ctx, msgs, opts)
		return e
	})
	if openErr != nil && apperrors.IsType(openErr, apperrors.ErrorTypeProvider) {
		if fallback := r.firstAvailable(provider.Name()); fallback != nil {
			logger.WithProvider(string(provider.Name())).
				WithField("fallback", fallback.Name()).
				WithError(openErr).Warn("stream open failed, trying fallback")
			provider = fallback
			openErr = r.policy.Do(ctx, provider.Name(), func() error {
				var e error
				stream, e = provider.StreamText(ctx, msgs, opts)
				return e
			})
		}
	}
	if openErr != nil {
		return nil, "", openErr
	}
	return stream, provider.Name(), nil
}

// GenerateImage routes image generation, falling back when the resolved
// provider does not offer it. It returns opts.ImageCount payloads.
func (r *Router) GenerateImage(ctx context.Context, prompt string, requested Name, opts CallOptions) ([][]byte, Name, error) {
	provider, err := r.Resolve(requested)
	if err != nil {
		return nil, "", err
	}
	var images [][]byte
	callErr := r.policy.Do(ctx, provider.Name(), func() error {
		var e error
		images, e = provider.GenerateImage(ctx, prompt, opts)
		return e
	})
	if callErr != nil && apperrors.IsType(callErr, apperrors.ErrorTypeProvider) {
		if fallback := r.firstAvailable(provider.Name()); fallback != nil {
			provider = fallback
			callErr = r.policy.Do(ctx, provider.Name(), func() error {
				var e error
				images, e = provider.GenerateImage(ctx, prompt, opts)
				return e
			})
		}
	}
	if callErr != nil {
		return nil, "", callErr
	}
	return images, provider.Name(), nil
}

// GenerateJSON runs a JSON-mode generation and unmarshals the normalized
// document into out.
func (r *Router) GenerateJSON(ctx context.Context, req models.GenerateRequest, out any) (models.GenerateResponse, error) {
	req.JSONMode = true
	resp, err := r.Generate(ctx, req)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(resp.JSON, out); err != nil {
		return resp, apperrors.NewParseError("AI response JSON does not match the expected shape", err)
	}
	return resp, nil
}

func (r *Router) generateWithRetry(ctx context.Context, p Provider, msgs []Message, opts CallOptions) (string, error) {
	var text string
	err := r.policy.Do(ctx, p.Name(), func() error {
		var e error
		text, e = p.GenerateText(ctx, msgs, opts)
		return e
	})
	return text, err
}

// buildMessages flattens a request into provider turns: system prompt first,
// then the conversation history, then the prompt as the newest user turn. An
// inline image rides on the newest user turn.
func buildMessages(req models.GenerateRequest) ([]Message, error) {
	var msgs []Message
	if req.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Text: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		role := Role(m.Role)
		switch role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return nil, apperrors.NewValidationError(fmt.Sprintf("unknown chat role %q", m.Role), nil)
		}
		msgs = append(msgs, Message{Role: role, Text: m.Text})
	}
	if req.Prompt == "" && len(req.Messages) == 0 {
		return nil, apperrors.NewValidationError("request needs a prompt or at least one message", nil)
	}
	if req.Prompt != "" {
		msgs = append(msgs, Message{
			Role:      RoleUser,
			Text:      req.Prompt,
			ImageData: req.ImageData,
			ImageMIME: req.ImageMIME,
		})
	} else if len(req.ImageData) > 0 {
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == RoleUser {
				msgs[i].ImageData = req.ImageData
				msgs[i].ImageMIME = req.ImageMIME
				break
			}
		}
	}
	return msgs, nil
}
