// Package tts provides text-to-speech synthesis for sorbot voice replies.
// Supports ElevenLabs (streamed, primary) and OpenAI TTS, plus an
// auto-fallback combinator.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Provider is the interface for TTS backends.
type Provider interface {
	// Synthesize converts text to audio.
	// Returns audio bytes, MIME type (e.g. "audio/mpeg"), and error.
	Synthesize(ctx context.Context, text, voice string) ([]byte, string, error)
}

// FragmentStream yields synthesized audio as a bounded sequence of binary
// fragments. Next returns io.EOF after the last fragment; any other error
// means the stream terminated early and the audio is unusable.
type FragmentStream struct {
	body io.ReadCloser
	buf  []byte
}

// Next returns the next audio fragment. The returned slice is only valid
// until the following call.
func (s *FragmentStream) Next() ([]byte, error) {
	n, err := s.body.Read(s.buf)
	if n > 0 {
		return s.buf[:n], nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

// Close releases the underlying connection.
func (s *FragmentStream) Close() error {
	return s.body.Close()
}

// Collect drains a fragment stream into one payload. Zero fragments is an
// explicit failure, never a silent empty result.
func Collect(s *FragmentStream) ([]byte, error) {
	defer s.Close()

	var (
		out       bytes.Buffer
		fragments int
	)
	for {
		chunk, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("tts: reading audio stream: %w", err)
		}
		out.Write(chunk)
		fragments++
	}

	if fragments == 0 || out.Len() == 0 {
		return nil, fmt.Errorf("tts: no audio data received")
	}
	return out.Bytes(), nil
}

// ============================================================
// ElevenLabs Provider (streamed multilingual voices)
// ============================================================

// ElevenLabsProvider implements TTS via the ElevenLabs streaming API.
type ElevenLabsProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
	logger  *slog.Logger
}

// NewElevenLabsProvider creates an ElevenLabs TTS provider.
func NewElevenLabsProvider(apiKey, baseURL, model string, logger *slog.Logger) *ElevenLabsProvider {
	if baseURL == "" {
		baseURL = "https://api.elevenlabs.io/v1"
	}
	if model == "" {
		model = "eleven_multilingual_v2"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ElevenLabsProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 120 * time.Second},
		logger:  logger.With("component", "elevenlabs"),
	}
}

// Stream starts a synthesis request and returns the fragment stream.
// The caller owns the stream and must Close it (Collect does both).
func (p *ElevenLabsProvider) Stream(ctx context.Context, text, voice string) (*FragmentStream, error) {
	payload := map[string]any{
		"text":     text,
		"model_id": p.model,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s/stream", p.baseURL, voice)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: API request failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("elevenlabs: API returned %d: %s", resp.StatusCode, string(errBody))
	}

	return &FragmentStream{body: resp.Body, buf: make([]byte, 32*1024)}, nil
}

// Synthesize converts text to audio, consuming the full fragment stream.
func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text, voice string) ([]byte, string, error) {
	stream, err := p.Stream(ctx, text, voice)
	if err != nil {
		return nil, "", err
	}

	audio, err := Collect(stream)
	if err != nil {
		return nil, "", err
	}

	p.logger.Debug("synthesis complete", "bytes", len(audio))
	return audio, "audio/mpeg", nil
}

// ============================================================
// OpenAI TTS Provider
// ============================================================

// OpenAIProvider implements TTS via the OpenAI TTS API.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

// NewOpenAIProvider creates an OpenAI TTS provider.
func NewOpenAIProvider(apiKey, baseURL, model string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if model == "" {
		model = "tts-1"
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		model:   model,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// Synthesize converts text to audio using the OpenAI TTS API.
// Returns audio in Opus format (suited for WhatsApp voice notes).
func (p *OpenAIProvider) Synthesize(ctx context.Context, text, voice string) ([]byte, string, error) {
	if voice == "" {
		voice = "nova"
	}

	// The TTS API has a 4096 character input limit.
	if len(text) > 4096 {
		text = text[:4093] + "..."
	}

	payload := map[string]any{
		"model":           p.model,
		"input":           text,
		"voice":           voice,
		"response_format": "opus",
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("tts: marshal request: %w", err)
	}

	url := p.baseURL + "/audio/speech"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("tts: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("tts: API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, "", fmt.Errorf("tts: API returned %d: %s", resp.StatusCode, string(errBody))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("tts: reading audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, "", fmt.Errorf("tts: empty audio response")
	}

	return audio, "audio/ogg", nil
}

// ============================================================
// Fallback Provider (tries primary, falls back to secondary)
// ============================================================

// FallbackProvider tries the primary provider and falls back to the
// secondary if the primary fails. Used for "auto" mode where ElevenLabs is
// preferred but OpenAI TTS covers outages.
type FallbackProvider struct {
	primary        Provider
	secondary      Provider
	primaryVoice   string
	secondaryVoice string
	logger         *slog.Logger
}

// NewFallbackProvider creates a provider that tries primary first, then secondary.
func NewFallbackProvider(primary, secondary Provider, primaryVoice, secondaryVoice string, logger *slog.Logger) *FallbackProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackProvider{
		primary:        primary,
		secondary:      secondary,
		primaryVoice:   primaryVoice,
		secondaryVoice: secondaryVoice,
		logger:         logger.With("component", "tts-fallback"),
	}
}

// Synthesize tries the primary provider, falling back to secondary on failure.
func (p *FallbackProvider) Synthesize(ctx context.Context, text, voice string) ([]byte, string, error) {
	primaryV := voice
	if primaryV == "" {
		primaryV = p.primaryVoice
	}
	audio, mime, err := p.primary.Synthesize(ctx, text, primaryV)
	if err == nil {
		return audio, mime, nil
	}

	p.logger.Warn("primary TTS failed, trying fallback", "error", err)

	secondaryV := p.secondaryVoice
	if secondaryV == "" {
		secondaryV = voice
	}
	return p.secondary.Synthesize(ctx, text, secondaryV)
}
