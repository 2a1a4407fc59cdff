package summary

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
)

const (
	// DefaultEndpoint is the Cerebras OpenAI-compatible chat completions URL.
	DefaultEndpoint = "https://api.cerebras.ai/v1/chat/completions"
	// DefaultModel is the model used when none is configured.
	DefaultModel = "gpt-oss-120b"
	// DefaultTemperature is the sampling temperature for summaries.
	DefaultTemperature = 0.7
	// DefaultTimeout bounds a single generation request.
	DefaultTimeout = 30 * time.Second

	maxErrorBodyBytes = 2048
	schemaName        = "workshop_summary"
)

var (
	// ErrGeneratorDisabled is returned by DisabledGenerator.
	ErrGeneratorDisabled = errors.New("summary: generator disabled")
	// ErrUpstream is returned when the completions endpoint answers with a failure.
	ErrUpstream = errors.New("summary: upstream request failed")

	errMissingAPIKey = errors.New("summary: api key required")
)

// DisabledGenerator fails every request. It stands in when no API key is set.
type DisabledGenerator struct{}

// Generate implements Generator.
func (DisabledGenerator) Generate(context.Context, Export) (Insights, error) {
	return Insights{}, ErrGeneratorDisabled
}

// ChatCompletionsConfig configures a ChatCompletionsGenerator.
type ChatCompletionsConfig struct {
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// ChatCompletionsGenerator calls an OpenAI-compatible chat completions API
// with a JSON schema response format.
type ChatCompletionsGenerator struct {
	endpoint    string
	apiKey      string
	model       string
	temperature float64
	client      *http.Client
}

// NewChatCompletionsGenerator applies defaults to cfg and returns a generator.
func NewChatCompletionsGenerator(cfg ChatCompletionsConfig) (*ChatCompletionsGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errMissingAPIKey
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = DefaultTemperature
	}
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	return &ChatCompletionsGenerator{
		endpoint:    endpoint,
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: temperature,
		client:      client,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatJSONSchema struct {
	Name   string         `json:"name"`
	Strict bool           `json:"strict"`
	Schema map[string]any `json:"schema"`
}

type chatResponseFormat struct {
	Type       string         `json:"type"`
	JSONSchema chatJSONSchema `json:"json_schema"`
}

type chatRequest struct {
	Model          string             `json:"model"`
	Messages       []chatMessage      `json:"messages"`
	Temperature    float64            `json:"temperature"`
	ResponseFormat chatResponseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate implements Generator.
func (g *ChatCompletionsGenerator) Generate(ctx context.Context, export Export) (Insights, error) {
	prompt, err := BuildPrompt(export)
	if err != nil {
		return Insights{}, fmt.Errorf("build prompt: %w", err)
	}
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstructions},
			{Role: "user", Content: prompt},
		},
		Temperature: g.temperature,
		ResponseFormat: chatResponseFormat{
			Type:       "json_schema",
			JSONSchema: chatJSONSchema{Name: schemaName, Strict: true, Schema: insightsSchema()},
		},
	})
	if err != nil {
		return Insights{}, fmt.Errorf("encode request: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return Insights{}, fmt.Errorf("create request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+g.apiKey)

	response, err := g.client.Do(request)
	if err != nil {
		return Insights{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer response.Body.Close()

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		detail, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
		return Insights{}, fmt.Errorf("%w: status %d: %s", ErrUpstream, response.StatusCode, strings.TrimSpace(string(detail)))
	}

	var decoded chatResponse
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return Insights{}, fmt.Errorf("%w: decode response: %v", ErrInvalidSummary, err)
	}
	if len(decoded.Choices) == 0 {
		return Insights{}, fmt.Errorf("%w: no choices", ErrInvalidSummary)
	}

	var insights Insights
	content := strings.TrimSpace(decoded.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), &insights); err != nil {
		return Insights{}, fmt.Errorf("%w: decode content: %v", ErrInvalidSummary, err)
	}
	return insights, nil
}
