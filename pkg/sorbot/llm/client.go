// Package llm wraps the OpenAI API surface sorbot uses: chat completions,
// vision, Whisper transcription and DALL-E image generation. The bot core
// talks to this package through small interfaces so tests can swap in
// fakes.
package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// Message roles, aligned with the OpenAI chat API.
const (
	RoleSystem    = openai.ChatMessageRoleSystem
	RoleUser      = openai.ChatMessageRoleUser
	RoleAssistant = openai.ChatMessageRoleAssistant
)

// Message is one role-tagged entry of a model context.
type Message struct {
	Role    string
	Content string
}

// Config holds provider settings.
type Config struct {
	// APIKey authenticates against the provider.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the API endpoint (empty = api.openai.com).
	BaseURL string `yaml:"base_url"`

	// TranscriptionModel is the speech-to-text model (default whisper-1).
	TranscriptionModel string `yaml:"transcription_model"`

	// ImageModel is the image generation model (default dall-e-3).
	ImageModel string `yaml:"image_model"`
}

// Client implements the provider calls on top of go-openai.
type Client struct {
	api    *openai.Client
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a provider client.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = openai.Whisper1
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = openai.CreateImageModelDallE3
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:    openai.NewClientWithConfig(clientConfig),
		cfg:    cfg,
		http:   &http.Client{Timeout: 60 * time.Second},
		logger: logger.With("component", "llm"),
	}
}

// Complete runs a chat completion over the given context and returns the
// response text.
func (c *Client) Complete(ctx context.Context, model string, messages []Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(messages),
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// DescribeImage runs a vision completion: the leading messages carry the
// system prompt and name context, the final user message combines the
// question with the image as a base64 data URL.
func (c *Client) DescribeImage(ctx context.Context, model string, messages []Message, mime string, data []byte, question string) (string, error) {
	converted := convertMessages(messages)
	converted = append(converted, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: question,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: dataURL(mime, data),
				},
			},
		},
	})

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     model,
		Messages:  converted,
		MaxTokens: 500,
	})
	if err != nil {
		return "", fmt.Errorf("vision completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("vision completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Transcribe converts the audio file at path to text via Whisper.
func (c *Client) Transcribe(ctx context.Context, path string) (string, error) {
	resp, err := c.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.TranscriptionModel,
		FilePath: path,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	return resp.Text, nil
}

// GenerateImage creates an image for the prompt and fetches the result.
// Returns the image bytes and MIME type.
func (c *Client) GenerateImage(ctx context.Context, prompt string) ([]byte, string, error) {
	resp, err := c.api.CreateImage(ctx, openai.ImageRequest{
		Model:  c.cfg.ImageModel,
		Prompt: prompt,
		N:      1,
		Size:   openai.CreateImageSize1024x1024,
	})
	if err != nil {
		return nil, "", fmt.Errorf("image generation: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return nil, "", fmt.Errorf("image generation: no image returned")
	}

	data, err := c.fetchImage(ctx, resp.Data[0].URL)
	if err != nil {
		return nil, "", err
	}
	return data, "image/jpeg", nil
}

// fetchImage downloads a generated image by its (short-lived) URL.
func (c *Client) fetchImage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating image request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching image: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	return data, nil
}

// convertMessages maps sorbot messages to the OpenAI wire type.
func convertMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}
	return out
}

// dataURL encodes image bytes as a base64 data URL.
func dataURL(mime string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
