package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/akcware/sorbot/pkg/sorbot/bot"
	"github.com/akcware/sorbot/pkg/sorbot/channels/whatsapp"
	"github.com/akcware/sorbot/pkg/sorbot/history"
	"github.com/akcware/sorbot/pkg/sorbot/llm"
	"github.com/akcware/sorbot/pkg/sorbot/logview"
	"github.com/akcware/sorbot/pkg/sorbot/promptcfg"
	"github.com/akcware/sorbot/pkg/sorbot/scheduler"
	"github.com/akcware/sorbot/pkg/sorbot/tts"

	"github.com/spf13/cobra"
)

// newServeCmd creates the `sorbot serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the WhatsApp assistant daemon",
		Long: `Start sorbot as a daemon: connect to WhatsApp, process incoming
messages and run the reminder schedule.

Examples:
  sorbot serve
  sorbot serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	// ── Logger ──
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logger, hub, logWriter, err := buildLogger(cfg, verbose)
	if err != nil {
		return err
	}
	if logWriter != nil {
		defer logWriter.Close()
	}

	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("no OpenAI API key configured; run `sorbot auth set %s`", bot.SecretOpenAIKey)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Storage and prompt ──
	store, err := history.Open(cfg.HistoryPath, logger)
	if err != nil {
		return fmt.Errorf("opening history store: %w", err)
	}
	defer store.Close()

	prompts := promptcfg.New(cfg.PromptPath)

	// ── Providers ──
	model := llm.New(cfg.LLM, logger)
	speech, err := buildSpeechProvider(cfg, logger)
	if err != nil {
		return err
	}

	// ── Transport ──
	channel := whatsapp.New(cfg.WhatsApp, logger)
	if err := channel.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to WhatsApp: %w", err)
	}
	defer channel.Disconnect()

	// ── Dispatcher ──
	gate := bot.NewGate(cfg.AdminJID)
	dispatcher := bot.NewDispatcher(cfg, channel, gate, store, prompts, model, speech, logger)
	go dispatcher.Run(ctx)

	// ── Scheduler ──
	sched := scheduler.New(cfg.Scheduler, channel, logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}
	defer sched.Stop()

	// ── Log viewer ──
	if cfg.LogView.Enabled && hub != nil {
		viewer := logview.NewServer(cfg.LogView, cfg.Logging.File, hub, logger)
		if err := viewer.Start(); err != nil {
			return fmt.Errorf("starting log viewer: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = viewer.Stop(shutdownCtx)
		}()
	}

	logger.Info("sorbot running, press Ctrl+C to stop",
		"name", cfg.Name,
		"chat_token", cfg.Tokens.Chat,
		"model", cfg.Models.Default)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping")
	return nil
}

// buildLogger assembles the slog logger. When a log file is configured the
// output is mirrored to it through the logview writer so the live viewer
// sees every line.
func buildLogger(cfg bot.Config, verbose bool) (*slog.Logger, *logview.Hub, *logview.Writer, error) {
	level := slog.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	out := io.Writer(os.Stdout)
	var (
		hub    *logview.Hub
		writer *logview.Writer
	)
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o755); err != nil {
			return nil, nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
		hub = logview.NewHub()
		var err error
		writer, err = logview.NewWriter(cfg.Logging.File, hub)
		if err != nil {
			return nil, nil, nil, err
		}
		out = io.MultiWriter(os.Stdout, writer)
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	return slog.New(handler), hub, writer, nil
}

// buildSpeechProvider selects the TTS backend from the voice config.
func buildSpeechProvider(cfg bot.Config, logger *slog.Logger) (tts.Provider, error) {
	elevenlabs := func() tts.Provider {
		return tts.NewElevenLabsProvider(cfg.Voice.ElevenLabsAPIKey, "", cfg.Voice.ElevenLabsModel, logger)
	}
	openaiTTS := func() tts.Provider {
		return tts.NewOpenAIProvider(cfg.LLM.APIKey, cfg.LLM.BaseURL, "")
	}

	switch cfg.Voice.Provider {
	case "elevenlabs":
		if cfg.Voice.ElevenLabsAPIKey == "" {
			return nil, fmt.Errorf("voice provider is elevenlabs but no API key is configured")
		}
		return elevenlabs(), nil
	case "openai":
		return openaiTTS(), nil
	case "auto", "":
		if cfg.Voice.ElevenLabsAPIKey == "" {
			return openaiTTS(), nil
		}
		return tts.NewFallbackProvider(elevenlabs(), openaiTTS(),
			cfg.Voice.Voice, cfg.Voice.FallbackVoice, logger), nil
	default:
		return nil, fmt.Errorf("unknown voice provider %q", cfg.Voice.Provider)
	}
}
