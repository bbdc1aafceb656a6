package bot

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/akcware/sorbot/pkg/sorbot/channels"
)

func voiceMessage(from string) *channels.IncomingMessage {
	return &channels.IncomingMessage{
		ID:   "VOICE1",
		From: from,
		Type: channels.MessageVoice,
		Media: &channels.MediaInfo{
			Type:     channels.MessageVoice,
			MimeType: "audio/ogg; codecs=opus",
		},
	}
}

func transcribeRequest(from string) *channels.IncomingMessage {
	return &channels.IncomingMessage{
		ID:      "REQ1",
		From:    from,
		Type:    channels.MessageText,
		Content: "@transcribe",
		Quoted: &channels.QuotedInfo{
			Type: channels.MessageVoice,
			Media: &channels.MediaInfo{
				Type:     channels.MessageVoice,
				MimeType: "audio/ogg; codecs=opus",
			},
		},
	}
}

func TestVoicePipeline(t *testing.T) {
	t.Run("voice note round trip replies with a voice note", func(t *testing.T) {
		h := newHarness(t)
		h.dispatcher.Handle(context.Background(), voiceMessage(testUser))

		h.channel.mu.Lock()
		defer h.channel.mu.Unlock()
		if len(h.channel.media) != 1 {
			t.Fatalf("expected one voice reply, got %d", len(h.channel.media))
		}
		reply := h.channel.media[0]
		if reply.Type != channels.MessageVoice || !reply.VoiceNote {
			t.Errorf("expected PTT voice note, got %+v", reply)
		}
		if reply.MimeType != "audio/ogg" {
			t.Errorf("expected ogg voice note mime type, got %q", reply.MimeType)
		}
	})

	t.Run("transcript flows through the chat pipeline", func(t *testing.T) {
		h := newHarness(t)
		h.model.transcribeFn = func(string) (string, error) { return "voice question", nil }

		h.dispatcher.Handle(context.Background(), voiceMessage(testUser))

		turns, _ := h.store.List(context.Background(), testUser)
		if len(turns) != 2 || turns[0].Content.Text != "voice question" {
			t.Fatalf("expected transcript stored as user turn, got %+v", turns)
		}
	})

	t.Run("transcription failure sends exactly one apology and cleans up", func(t *testing.T) {
		h := newHarness(t)
		h.model.transcribeFn = func(string) (string, error) {
			return "", fmt.Errorf("whisper unavailable")
		}

		h.dispatcher.Handle(context.Background(), voiceMessage(testUser))

		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != replyAudioFailed {
			t.Fatalf("expected exactly the audio apology, got %+v", sent)
		}

		entries, err := os.ReadDir(h.dispatcher.cfg.TempDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("expected scratch file removed, found %d entries", len(entries))
		}
	})

	t.Run("voice gate off drops the message silently", func(t *testing.T) {
		h := newHarness(t)
		h.gate.SetEnabled(GateVoice, false, testAdmin)

		h.dispatcher.Handle(context.Background(), voiceMessage(testUser))

		if sent := h.channel.sentMessages(); len(sent) != 0 {
			t.Fatalf("expected silence, got %+v", sent)
		}
		h.channel.mu.Lock()
		defer h.channel.mu.Unlock()
		if len(h.channel.media) != 0 {
			t.Error("expected no media reply")
		}
	})

	t.Run("own voice notes are skipped", func(t *testing.T) {
		h := newHarness(t)
		msg := voiceMessage(testUser)
		msg.FromMe = true

		h.dispatcher.Handle(context.Background(), msg)

		h.channel.mu.Lock()
		defer h.channel.mu.Unlock()
		if len(h.channel.media) != 0 {
			t.Error("expected no reply to own voice note")
		}
	})

	t.Run("synthesis failure sends the audio apology", func(t *testing.T) {
		h := newHarness(t)
		h.speech.err = fmt.Errorf("quota exceeded")

		h.dispatcher.Handle(context.Background(), voiceMessage(testUser))

		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != replyAudioFailed {
			t.Fatalf("expected audio apology, got %+v", sent)
		}
	})
}

func TestTranscribeCommand(t *testing.T) {
	t.Run("replies with the transcript, quoting the request", func(t *testing.T) {
		h := newHarness(t)
		h.model.transcribeFn = func(string) (string, error) { return "merhaba", nil }

		h.dispatcher.Handle(context.Background(), transcribeRequest(testUser))

		sent := h.channel.sentMessages()
		if len(sent) != 1 {
			t.Fatalf("expected one reply, got %+v", sent)
		}
		if sent[0].Content != "Transcription:\nmerhaba" {
			t.Errorf("unexpected transcript reply: %q", sent[0].Content)
		}
		if sent[0].ReplyTo != "REQ1" {
			t.Errorf("expected the reply to quote the request, got %q", sent[0].ReplyTo)
		}
	})

	t.Run("works while the bot is disabled", func(t *testing.T) {
		h := newHarness(t)
		h.gate.SetEnabled(GateBot, false, testAdmin)

		h.dispatcher.Handle(context.Background(), transcribeRequest(testUser))

		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != "Transcription:\ntranscribed text" {
			t.Fatalf("expected transcript despite disabled gate, got %+v", sent)
		}
	})

	t.Run("leaves no history behind", func(t *testing.T) {
		h := newHarness(t)
		h.dispatcher.Handle(context.Background(), transcribeRequest(testUser))

		if turns, _ := h.store.List(context.Background(), testUser); len(turns) != 0 {
			t.Errorf("expected no stored turns, got %d", len(turns))
		}
	})

	t.Run("failure sends the transcription apology", func(t *testing.T) {
		h := newHarness(t)
		h.channel.downloadErr = fmt.Errorf("media expired")

		h.dispatcher.Handle(context.Background(), transcribeRequest(testUser))

		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != replyTransFailed {
			t.Fatalf("expected transcription apology, got %+v", sent)
		}
	})
}
