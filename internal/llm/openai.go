package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Jurkyy/project-pilot/internal/credential"
)

// ErrEmptyCompletion is returned when the endpoint answers without choices
var ErrEmptyCompletion = errors.New("no choices in completion")

const (
	DefaultOpenAIModel = "gpt-4-turbo-preview"
	DefaultMaxTokens   = 4096
	DefaultTemperature = 0.7
)

// OpenAIConfig configures an OpenAI-compatible chat completion endpoint
type OpenAIConfig struct {
	BaseURL     string
	Model       string
	MaxTokens   int
	// Temperature zero means DefaultTemperature. The API omits a zero value.
	Temperature float32
	HTTPClient  *http.Client
}

// OpenAITransport implements Transport for OpenAI-compatible endpoints
type OpenAITransport struct {
	name string
	cfg  OpenAIConfig
}

// NewOpenAITransport creates a transport for the OpenAI API
func NewOpenAITransport(cfg OpenAIConfig) *OpenAITransport {
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}
	return newTransport("openai", cfg)
}

func newTransport(name string, cfg OpenAIConfig) *OpenAITransport {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}
	return &OpenAITransport{name: name, cfg: cfg}
}

// Name returns the provider name
func (t *OpenAITransport) Name() string {
	return t.name
}

// Model returns the configured model
func (t *OpenAITransport) Model() string {
	return t.cfg.Model
}

// Complete sends one chat completion request
func (t *OpenAITransport) Complete(ctx context.Context, key credential.Key, q Query) (Completion, error) {
	config := openai.DefaultConfig(key.Value())
	if t.cfg.BaseURL != "" {
		config.BaseURL = t.cfg.BaseURL
	}
	if t.cfg.HTTPClient != nil {
		config.HTTPClient = t.cfg.HTTPClient
	}
	client := openai.NewClientWithConfig(config)

	messages := make([]openai.ChatCompletionMessage, 0, len(q.Messages))
	for _, m := range q.Messages {
		role := openai.ChatMessageRoleUser
		if m.Role == RoleSystem {
			role = openai.ChatMessageRoleSystem
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.cfg.Model,
		Messages:    messages,
		Temperature: t.cfg.Temperature,
		MaxTokens:   t.cfg.MaxTokens,
	})
	if err != nil {
		return Completion{}, fmt.Errorf("failed to call %s API: %w", t.name, err)
	}

	if len(resp.Choices) == 0 {
		return Completion{}, fmt.Errorf("no response from %s API: %w", t.name, ErrEmptyCompletion)
	}

	choice := resp.Choices[0]
	return Completion{
		Text:         choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Model:        resp.Model,
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// Classify maps a transport error to a Status and whether another attempt may help
func Classify(err error) (Status, bool) {
	switch {
	case err == nil:
		return StatusSuccess, false
	case errors.Is(err, context.Canceled):
		return StatusTransportError, false
	case errors.Is(err, context.DeadlineExceeded):
		return StatusTimeout, true
	case errors.Is(err, ErrEmptyCompletion):
		return StatusTransportError, true
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return classifyHTTP(apiErr.HTTPStatusCode, isQuotaError(apiErr))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return classifyHTTP(reqErr.HTTPStatusCode, false)
	}

	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return StatusTimeout, true
		}
		return StatusTransportError, true
	}

	return StatusTransportError, false
}

func classifyHTTP(code int, quota bool) (Status, bool) {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return StatusInvalidCredential, false
	case code == http.StatusTooManyRequests:
		// an exhausted quota does not recover by waiting
		return StatusRateLimited, !quota
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return StatusTimeout, true
	case code >= 500, code == 0:
		return StatusTransportError, true
	default:
		return StatusTransportError, false
	}
}

func isQuotaError(e *openai.APIError) bool {
	if code, ok := e.Code.(string); ok && code == "insufficient_quota" {
		return true
	}
	return e.Type == "insufficient_quota" || strings.Contains(e.Message, "exceeded your current quota")
}
