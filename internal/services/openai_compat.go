package services

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/jwebster45206/modforge/pkg/prompts"
	"github.com/sashabaranov/go-openai"
)

const DefaultOpenAIMaxTokens = 4096

// OpenAICompatDefaults holds a provider's base URL and default models.
type OpenAICompatDefaults struct {
	BaseURL    string
	Model      string
	ImageModel string
}

// KnownProviders lists the OpenAI-compatible APIs modforge can talk to.
var KnownProviders = map[string]OpenAICompatDefaults{
	"openai": {BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini", ImageModel: "dall-e-3"},
	"venice": {BaseURL: "https://api.venice.ai/api/v1", Model: "llama-3.3-70b", ImageModel: "venice-sd35"},
	"ollama": {BaseURL: "http://localhost:11434/v1", Model: "llama3.1"},
}

// OpenAICompatConfig holds configuration for an OpenAI-compatible provider
type OpenAICompatConfig struct {
	ProviderName string
	APIKey       string
	BaseURL      string
	Model        string
	BackendModel string
	ImageModel   string
}

// OpenAICompatService implements LLMService and ImageService for any
// OpenAI-compatible API: OpenAI itself, Venice and Ollama.
type OpenAICompatService struct {
	client           *openai.Client
	httpClient       *http.Client
	providerName     string
	modelName        string
	backendModelName string
	imageModelName   string
	retrier          *Retrier
	logger           *slog.Logger
}

var (
	_ LLMService   = (*OpenAICompatService)(nil)
	_ ImageService = (*OpenAICompatService)(nil)
)

func NewOpenAICompatService(cfg OpenAICompatConfig, retrier *Retrier, logger *slog.Logger) (*OpenAICompatService, error) {
	defaults, known := KnownProviders[cfg.ProviderName]
	if !known && cfg.BaseURL == "" {
		return nil, fmt.Errorf("unknown provider %q and no base URL", cfg.ProviderName)
	}
	if cfg.APIKey == "" {
		if cfg.ProviderName != "ollama" {
			return nil, fmt.Errorf("API key is required for %s", cfg.ProviderName)
		}
		cfg.APIKey = "ollama"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = defaults.ImageModel
	}

	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	httpClient := &http.Client{Timeout: 120 * time.Second}
	config.HTTPClient = httpClient

	return &OpenAICompatService{
		client:           openai.NewClientWithConfig(config),
		httpClient:       httpClient,
		providerName:     cfg.ProviderName,
		modelName:        cfg.Model,
		backendModelName: cfg.BackendModel,
		imageModelName:   cfg.ImageModel,
		retrier:          retrier,
		logger:           logger,
	}, nil
}

// InitModel checks that the model is served. Only Ollama lists local models
// reliably; a missing model is logged, not fatal.
func (s *OpenAICompatService) InitModel(ctx context.Context, modelName string) error {
	if s.providerName != "ollama" {
		return nil
	}
	models, err := s.client.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to list %s models: %w", ErrTransport, s.providerName, err)
	}
	ids := make([]string, 0, len(models.Models))
	for _, m := range models.Models {
		ids = append(ids, m.ID)
	}
	if !slices.Contains(ids, modelName) {
		s.logger.Warn("Model not found on provider", "provider", s.providerName, "model", modelName, "available", ids)
	}
	return nil
}

func (s *OpenAICompatService) modelFor(kind prompts.Kind) string {
	if kind == prompts.KindCorrect && s.backendModelName != "" {
		return s.backendModelName
	}
	return s.modelName
}

func (s *OpenAICompatService) Generate(ctx context.Context, req *prompts.Request) (string, error) {
	chatReq, err := s.chatRequest(req)
	if err != nil {
		return "", err
	}
	start := time.Now()
	out, err := s.retrier.Do(ctx, string(req.Kind), func(ctx context.Context) (string, error) {
		resp, err := s.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return "", s.wrapError(err)
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return "", ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("Chat completion complete", "provider", s.providerName, "kind", req.Kind,
		"model", chatReq.Model, "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

func (s *OpenAICompatService) chatRequest(req *prompts.Request) (openai.ChatCompletionRequest, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}

	user := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	images := req.Attachments("image/")
	if len(images) == 0 {
		user.Content = req.Text()
	} else {
		user.MultiContent = []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: req.Text()}}
		for _, img := range images {
			user.MultiContent = append(user.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:" + img.MimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		}
	}
	messages = append(messages, user)

	chatReq := openai.ChatCompletionRequest{
		Model:       s.modelFor(req.Kind),
		Messages:    messages,
		MaxTokens:   DefaultOpenAIMaxTokens,
		Temperature: float32(req.Temperature),
	}
	if req.Schema != nil {
		schema, err := json.Marshal(req.Schema)
		if err != nil {
			return chatReq, fmt.Errorf("failed to marshal response schema: %w", err)
		}
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   req.SchemaName,
				Schema: json.RawMessage(schema),
				Strict: true,
			},
		}
	}
	return chatReq, nil
}

// GenerateImage requests one image and returns it as a data URL.
func (s *OpenAICompatService) GenerateImage(ctx context.Context, prompt string, aspectRatio string) (string, error) {
	if s.imageModelName == "" {
		return "", fmt.Errorf("%s has no image model configured", s.providerName)
	}
	return s.retrier.Do(ctx, "image", func(ctx context.Context) (string, error) {
		resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
			Prompt:         prompt,
			Model:          s.imageModelName,
			N:              1,
			Size:           imageSize(aspectRatio),
			ResponseFormat: openai.CreateImageResponseFormatB64JSON,
		})
		if err != nil {
			return "", s.wrapError(err)
		}
		if len(resp.Data) == 0 {
			return "", ErrEmptyResponse
		}
		img := resp.Data[0]
		switch {
		case img.B64JSON != "":
			return "data:image/png;base64," + img.B64JSON, nil
		case img.URL != "":
			return s.download(ctx, img.URL)
		}
		return "", ErrEmptyResponse
	})
}

// download fetches an image some providers return by URL instead of inline.
func (s *OpenAICompatService) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func (s *OpenAICompatService) wrapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &StatusError{StatusCode: reqErr.HTTPStatusCode, Body: reqErr.Error()}
	}
	return fmt.Errorf("%s API error: %w", s.providerName, err)
}

func imageSize(aspectRatio string) string {
	switch aspectRatio {
	case "16:9", "3:2":
		return openai.CreateImageSize1792x1024
	case "9:16", "2:3":
		return openai.CreateImageSize1024x1792
	}
	return openai.CreateImageSize1024x1024
}
