package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/akcware/sorbot/pkg/sorbot/channels"
)

// handleVoice runs the voice pipeline: download, transcribe, chat, speak.
// The reply is sent back as a push-to-talk voice note.
func (d *Dispatcher) handleVoice(ctx context.Context, msg *channels.IncomingMessage, displayName string) error {
	transcript, err := d.transcribeMedia(ctx, msg.Media)
	if err != nil {
		return err
	}

	reply, err := d.chat(ctx, transcript, msg.From, displayName)
	if err != nil {
		return err
	}

	audio, _, err := d.speech.Synthesize(ctx, reply, d.cfg.Voice.Voice)
	if err != nil {
		return fmt.Errorf("synthesizing reply: %w", err)
	}

	// The reply is always declared as an ogg voice note; WhatsApp clients
	// play it regardless of the synthesis container.
	return d.channel.SendMedia(ctx, msg.From, &channels.MediaMessage{
		Type:      channels.MessageVoice,
		Data:      audio,
		MimeType:  "audio/ogg",
		VoiceNote: true,
	})
}

// handleTranscribe transcribes the quoted voice message and replies with
// the text, quoting the requesting message. Works regardless of the bot
// gate: transcription is a utility, not a conversation.
func (d *Dispatcher) handleTranscribe(ctx context.Context, msg *channels.IncomingMessage) error {
	if msg.Quoted == nil || msg.Quoted.Media == nil {
		return channels.ErrNoMedia
	}

	transcript, err := d.transcribeMedia(ctx, msg.Quoted.Media)
	if err != nil {
		return err
	}

	return d.channel.Send(ctx, msg.From, &channels.OutgoingMessage{
		Content: "Transcription:\n" + transcript,
		ReplyTo: msg.ID,
	})
}

// transcribeMedia downloads a voice payload to a scratch file, runs
// speech-to-text and removes the file. The scratch name carries a
// nanosecond timestamp so concurrent downloads never collide.
func (d *Dispatcher) transcribeMedia(ctx context.Context, info *channels.MediaInfo) (string, error) {
	data, _, err := d.channel.DownloadMedia(ctx, info)
	if err != nil {
		return "", fmt.Errorf("downloading audio: %w", err)
	}

	if err := os.MkdirAll(d.cfg.TempDir, 0o755); err != nil {
		return "", fmt.Errorf("creating temp dir: %w", err)
	}
	path := filepath.Join(d.cfg.TempDir, fmt.Sprintf("audio_%d.ogg", time.Now().UnixNano()))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing scratch file: %w", err)
	}
	defer os.Remove(path)

	transcript, err := d.model.Transcribe(ctx, path)
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}
	return transcript, nil
}
