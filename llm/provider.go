package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/krisalay/ttl-cache/internal/observability"
)

// ErrNoChoices is returned when the provider answers 200 with no choices.
var ErrNoChoices = errors.New("llm: no choices in response")

// APIError is a non-200 answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: API returned status %d: %s", e.StatusCode, e.Body)
}

// Provider computes a completion. Implementations must not cache.
type Provider interface {
	Complete(ctx context.Context, req Request) (Completion, error)
}

// ProviderConfig holds the OpenAI-compatible endpoint settings.
type ProviderConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIProvider talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIProvider struct {
	cfg    ProviderConfig
	client *http.Client
}

// NewOpenAIProvider creates a provider. A zero timeout means 60 seconds.
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &OpenAIProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Model returns the model used when a request leaves it empty.
func (p *OpenAIProvider) Model() string {
	return p.cfg.Model
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete sends req and returns the first choice.
func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (completion Completion, err error) {
	if req.Model == "" {
		req.Model = p.cfg.Model
	}

	ctx, span := observability.StartClientSpan(ctx, "llm.provider",
		observability.AttrModel.String(req.Model),
	)
	defer func() {
		if err != nil {
			observability.SetSpanError(span, err)
		} else {
			observability.SetSpanOK(span)
		}
		span.End()
	}()

	body, err := json.Marshal(req)
	if err != nil {
		return Completion{}, fmt.Errorf("marshal request: %w", err)
	}

	url := p.cfg.BaseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Completion{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return Completion{}, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Completion{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Completion{}, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return Completion{}, fmt.Errorf("decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return Completion{}, ErrNoChoices
	}

	choice := chatResp.Choices[0]
	model := chatResp.Model
	if model == "" {
		model = req.Model
	}
	return Completion{
		Content:          choice.Message.Content,
		Model:            model,
		FinishReason:     choice.FinishReason,
		PromptTokens:     chatResp.Usage.PromptTokens,
		CompletionTokens: chatResp.Usage.CompletionTokens,
	}, nil
}
