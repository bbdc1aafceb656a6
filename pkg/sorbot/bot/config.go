// Package bot implements the sorbot core: the command classifier, the
// availability gate, the dispatcher and the per-intent handlers. The
// packages around it (channels, llm, tts, history, promptcfg) are wired in
// through small interfaces so every piece is testable in isolation.
package bot

import (
	"github.com/akcware/sorbot/pkg/sorbot/channels/whatsapp"
	"github.com/akcware/sorbot/pkg/sorbot/llm"
	"github.com/akcware/sorbot/pkg/sorbot/logview"
	"github.com/akcware/sorbot/pkg/sorbot/scheduler"
)

// Config holds all bot configuration. The trigger tokens, model names and
// identities that used to vary between deployments are named options here
// so one binary covers every variant.
type Config struct {
	// Name is the bot name used in logs.
	Name string `yaml:"name"`

	// AdminJID is the identity allowed to run enable/disable commands.
	AdminJID string `yaml:"admin_jid"`

	// GreetingJID is the one identity whose plain greetings (no trigger
	// token) start a chat.
	GreetingJID string `yaml:"greeting_jid"`

	// Tokens configures the recognized trigger tokens.
	Tokens TokenConfig `yaml:"tokens"`

	// Models configures model selection.
	Models ModelConfig `yaml:"models"`

	// Voice configures speech synthesis.
	Voice VoiceConfig `yaml:"voice"`

	// LLM configures the model provider endpoint.
	LLM llm.Config `yaml:"llm"`

	// HistoryPath is the SQLite conversation database path.
	HistoryPath string `yaml:"history_path"`

	// PromptPath is the append-only system prompt file path.
	PromptPath string `yaml:"prompt_path"`

	// TempDir holds transient media files awaiting processing.
	TempDir string `yaml:"temp_dir"`

	// WhatsApp configures the transport.
	WhatsApp whatsapp.Config `yaml:"whatsapp"`

	// Scheduler configures reminder jobs.
	Scheduler scheduler.Config `yaml:"scheduler"`

	// LogView configures the log viewer HTTP server.
	LogView logview.Config `yaml:"logview"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// TokenConfig names the literal trigger tokens. Matching semantics are
// fixed (exact match for control tokens, substring for chat/transcribe,
// prefix for draw); only the spellings are configurable.
type TokenConfig struct {
	Status       string `yaml:"status"`
	Enable       string `yaml:"enable"`
	Disable      string `yaml:"disable"`
	VoiceStatus  string `yaml:"voice_status"`
	VoiceEnable  string `yaml:"voice_enable"`
	VoiceDisable string `yaml:"voice_disable"`
	Transcribe   string `yaml:"transcribe"`
	Chat         string `yaml:"chat"`
	Pro          string `yaml:"pro"`
	Draw         string `yaml:"draw"`
}

// ModelConfig selects the chat models.
type ModelConfig struct {
	// Default is used for regular chat and vision requests.
	Default string `yaml:"default"`

	// Elevated is used when the pro token is present; the system prompt
	// is omitted for elevated requests.
	Elevated string `yaml:"elevated"`
}

// VoiceConfig configures speech synthesis for voice replies.
type VoiceConfig struct {
	// Provider selects the TTS backend: "elevenlabs", "openai" or "auto"
	// (ElevenLabs with OpenAI fallback).
	Provider string `yaml:"provider"`

	// Voice is the primary provider voice identifier.
	Voice string `yaml:"voice"`

	// FallbackVoice is used by the secondary provider in auto mode.
	FallbackVoice string `yaml:"fallback_voice"`

	// ElevenLabsAPIKey authenticates against ElevenLabs.
	ElevenLabsAPIKey string `yaml:"elevenlabs_api_key"`

	// ElevenLabsModel is the synthesis model identifier.
	ElevenLabsModel string `yaml:"elevenlabs_model"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `yaml:"level"`

	// File is the log file mirrored for the log viewer (empty = stdout only).
	File string `yaml:"file"`
}

// DefaultConfig returns a Config with the stock tokens and models.
func DefaultConfig() Config {
	return Config{
		Name: "sorbot",
		Tokens: TokenConfig{
			Status:       "@status",
			Enable:       "@enable",
			Disable:      "@disable",
			VoiceStatus:  "@voicestatus",
			VoiceEnable:  "@enablevoice",
			VoiceDisable: "@disablevoice",
			Transcribe:   "@transcribe",
			Chat:         "@sor",
			Pro:          "@pro",
			Draw:         "@draw",
		},
		Models: ModelConfig{
			Default:  "gpt-4.1",
			Elevated: "o4-mini",
		},
		Voice: VoiceConfig{
			Provider:        "auto",
			Voice:           "sSi6CCzNGi3HIOpuj4Eo",
			FallbackVoice:   "nova",
			ElevenLabsModel: "eleven_multilingual_v2",
		},
		HistoryPath: "conversation.db",
		PromptPath:  "system-prompt.txt",
		TempDir:     "temp",
		WhatsApp:    whatsapp.DefaultConfig(),
		Scheduler:   scheduler.DefaultConfig(),
		LogView:     logview.DefaultConfig(),
		Logging: LoggingConfig{
			Level: "info",
			File:  "logs/app.log",
		},
	}
}
