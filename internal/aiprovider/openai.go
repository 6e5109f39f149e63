package aiprovider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go-scan-capture/internal/config"
	apperrors "go-scan-capture/internal/errors"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultImageModel    = "gpt-image-1"
)

// OpenAIProvider talks to the OpenAI chat completions API, or any endpoint
// speaking the same protocol when OPENAI_BASE_URL points elsewhere. The API
// key is looked up on every call.
type OpenAIProvider struct {
	source config.Source
	httpc  *http.Client
}

func NewOpenAIProvider(source config.Source, httpc *http.Client) *OpenAIProvider {
	if httpc == nil {
		httpc = &http.Client{Timeout: 120 * time.Second}
	}
	return &OpenAIProvider{source: source, httpc: httpc}
}

func (p *OpenAIProvider) Name() Name { return ProviderOpenAI }

func (p *OpenAIProvider) Available() bool {
	_, ok := p.source.Get(config.KeyOpenAIAPIKey)
	return ok
}

func (p *OpenAIProvider) baseURL() string {
	if v, ok := p.source.Get(config.KeyOpenAIBaseURL); ok {
		return strings.TrimRight(v, "/")
	}
	return defaultOpenAIBaseURL
}

func (p *OpenAIProvider) model(opts CallOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	if v, ok := p.source.Get(config.KeyOpenAIModel); ok {
		return v
	}
	return defaultOpenAIModel
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type chatContentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *chatImageURL `json:"image_url,omitempty"`
}

type chatImageURL struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    *float32       `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	Stream         bool           `json:"stream,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

func (p *OpenAIProvider) GenerateText(ctx context.Context, msgs []Message, opts CallOptions) (string, error) {
	body, err := p.doChat(ctx, msgs, opts, false)
	if err != nil {
		return "", err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", apperrors.NewProviderError("openai: reading response body", err)
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", apperrors.NewProviderError("openai: malformed response", err)
	}
	if len(out.Choices) == 0 {
		return "", apperrors.NewProviderError("openai: empty response", nil)
	}
	return out.Choices[0].Message.Content, nil
}

func (p *OpenAIProvider) StreamText(ctx context.Context, msgs []Message, opts CallOptions) (TextStream, error) {
	body, err := p.doChat(ctx, msgs, opts, true)
	if err != nil {
		return nil, err
	}
	return &sseStream{body: body, scanner: bufio.NewScanner(body)}, nil
}

func (p *OpenAIProvider) doChat(ctx context.Context, msgs []Message, opts CallOptions, stream bool) (io.ReadCloser, error) {
	key, ok := p.source.Get(config.KeyOpenAIAPIKey)
	if !ok {
		return nil, apperrors.NewConfigurationError("openai: OPENAI_API_KEY is not set", nil)
	}

	req := chatRequest{
		Model:       p.model(opts),
		Messages:    toChatMessages(msgs),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      stream,
	}
	if opts.JSONMode {
		req.ResponseFormat = map[string]any{"type": "json_object"}
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.NewInternalError("openai: encoding request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewInternalError("openai: building request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := p.httpc.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewProviderError("openai: request failed", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := fmt.Sprintf("openai: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, apperrors.NewRateLimitError(detail, nil)
		}
		return nil, apperrors.NewProviderError(detail, nil)
	}
	return resp.Body, nil
}

func toChatMessages(msgs []Message) []chatMessage {
	out := make([]chatMessage, 0, len(msgs))
	for _, m := range msgs {
		cm := chatMessage{Role: string(m.Role)}
		if len(m.ImageData) == 0 {
			cm.Content = m.Text
		} else {
			dataURL := fmt.Sprintf("data:%s;base64,%s", m.ImageMIME, base64.StdEncoding.EncodeToString(m.ImageData))
			cm.Content = []chatContentPart{
				{Type: "text", Text: m.Text},
				{Type: "image_url", ImageURL: &chatImageURL{URL: dataURL}},
			}
		}
		out = append(out, cm)
	}
	return out
}

type imageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
}

type imageResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func (p *OpenAIProvider) GenerateImage(ctx context.Context, prompt string, opts CallOptions) ([][]byte, error) {
	key, ok := p.source.Get(config.KeyOpenAIAPIKey)
	if !ok {
		return nil, apperrors.NewConfigurationError("openai: OPENAI_API_KEY is not set", nil)
	}

	model := opts.Model
	if model == "" {
		model = defaultImageModel
	}
	count := opts.ImageCount
	if count < 1 {
		count = 1
	}
	payload, err := json.Marshal(imageRequest{Model: model, Prompt: prompt, N: count})
	if err != nil {
		return nil, apperrors.NewInternalError("openai: encoding image request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL()+"/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, apperrors.NewInternalError("openai: building image request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+key)

	resp, err := p.httpc.Do(httpReq)
	if err != nil {
		return nil, apperrors.NewProviderError("openai: image request failed", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewProviderError("openai: reading image response", err)
	}
	if resp.StatusCode != http.StatusOK {
		detail := fmt.Sprintf("openai: image status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw[:min(len(raw), 4096)])))
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, apperrors.NewRateLimitError(detail, nil)
		}
		return nil, apperrors.NewProviderError(detail, nil)
	}
	var out imageResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, apperrors.NewProviderError("openai: malformed image response", err)
	}
	if len(out.Data) == 0 {
		return nil, apperrors.NewProviderError("openai: empty image response", nil)
	}
	images := make([][]byte, 0, len(out.Data))
	for _, d := range out.Data {
		if d.B64JSON == "" {
			return nil, apperrors.NewProviderError("openai: empty image response", nil)
		}
		img, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, apperrors.NewProviderError("openai: decoding image payload", err)
		}
		images = append(images, img)
	}
	return images, nil
}

// sseStream decodes "data: {...}" server-sent event lines from a streaming
// chat completion.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	closed  bool
}

func (s *sseStream) Recv() (Chunk, error) {
	if s.closed {
		return Chunk{}, io.EOF
	}
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		if data == "[DONE]" {
			_ = s.Close()
			return Chunk{}, io.EOF
		}
		var event chatResponse
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			continue // skip malformed keep-alive payloads
		}
		if len(event.Choices) == 0 {
			continue
		}
		if text := event.Choices[0].Delta.Content; text != "" {
			return Chunk{Text: text}, nil
		}
	}
	if err := s.scanner.Err(); err != nil {
		_ = s.Close()
		return Chunk{}, apperrors.NewProviderError("openai: stream interrupted", err)
	}
	_ = s.Close()
	return Chunk{}, io.EOF
}

func (s *sseStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
