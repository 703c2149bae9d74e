package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/modforge/pkg/prompts"
)

const (
	anthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion = "2023-06-01"

	DefaultAnthropicMaxTokens = 4096
)

// AnthropicService implements LLMService for Anthropic Claude
type AnthropicService struct {
	apiKey           string
	modelName        string
	backendModelName string
	baseURL          string
	httpClient       *http.Client
	retrier          *Retrier
	logger           *slog.Logger
}

type AnthropicChatRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float64           `json:"temperature,omitempty"`
	Messages    []AnthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
}

type AnthropicMessage struct {
	Role    string                  `json:"role"`
	Content []AnthropicContentBlock `json:"content"`
}

type AnthropicContentBlock struct {
	Type   string                `json:"type"`
	Text   string                `json:"text,omitempty"`
	Source *AnthropicImageSource `json:"source,omitempty"`
}

type AnthropicImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type AnthropicChatResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []AnthropicContentBlock `json:"content"`
	Model      string                  `json:"model"`
	StopReason string                  `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewAnthropicService(apiKey string, modelName string, backendModelName string, retrier *Retrier, logger *slog.Logger) *AnthropicService {
	return &AnthropicService{
		apiKey:           apiKey,
		modelName:        modelName,
		backendModelName: backendModelName,
		baseURL:          anthropicBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		retrier: retrier,
		logger:  logger,
	}
}

func (a *AnthropicService) InitModel(ctx context.Context, modelName string) error {
	return nil
}

// modelFor picks the backend model for correction passes when one is set.
func (a *AnthropicService) modelFor(kind prompts.Kind) string {
	if kind == prompts.KindCorrect && a.backendModelName != "" {
		return a.backendModelName
	}
	return a.modelName
}

// contentBlocks converts prompt parts into Anthropic content blocks. Images
// go first, the way the messages API documents it. Audio is not accepted by
// the API and is only described in the text.
func (a *AnthropicService) contentBlocks(parts []prompts.Part) []AnthropicContentBlock {
	var images, texts []AnthropicContentBlock
	for _, p := range parts {
		switch {
		case p.Inline == nil:
			texts = append(texts, AnthropicContentBlock{Type: "text", Text: p.Text})
		case strings.HasPrefix(p.Inline.MimeType, "image/"):
			images = append(images, AnthropicContentBlock{
				Type: "image",
				Source: &AnthropicImageSource{
					Type:      "base64",
					MediaType: p.Inline.MimeType,
					Data:      base64.StdEncoding.EncodeToString(p.Inline.Data),
				},
			})
		default:
			a.logger.Debug("Dropping unsupported attachment", "mime_type", p.Inline.MimeType)
		}
	}
	return append(images, texts...)
}

func (a *AnthropicService) Generate(ctx context.Context, req *prompts.Request) (string, error) {
	model := a.modelFor(req.Kind)
	start := time.Now()
	out, err := a.retrier.Do(ctx, string(req.Kind), func(ctx context.Context) (string, error) {
		return a.chatCompletion(ctx, req, model)
	})
	if err != nil {
		return "", err
	}
	a.logger.Debug("Anthropic request complete", "kind", req.Kind, "model", model, "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// chatCompletion makes a single messages request with the specified model
func (a *AnthropicService) chatCompletion(ctx context.Context, req *prompts.Request, modelName string) (string, error) {
	temperature := req.Temperature
	anthropicReq := AnthropicChatRequest{
		Model:       modelName,
		MaxTokens:   DefaultAnthropicMaxTokens,
		Temperature: &temperature,
		System:      req.System,
		Messages: []AnthropicMessage{
			{Role: "user", Content: a.contentBlocks(req.Parts)},
		},
	}

	reqBody, err := json.Marshal(anthropicReq)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", a.baseURL+"/messages", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	httpReq.Header.Set("content-type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var anthropicResp AnthropicChatResponse
	if err := json.Unmarshal(body, &anthropicResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if anthropicResp.Error != nil {
		return "", fmt.Errorf("%w: API error: %s", ErrTransport, anthropicResp.Error.Message)
	}

	var responseText string
	for _, content := range anthropicResp.Content {
		if content.Type == "text" {
			responseText += content.Text
		}
	}

	if strings.TrimSpace(responseText) == "" {
		return "", ErrEmptyResponse
	}

	return responseText, nil
}
