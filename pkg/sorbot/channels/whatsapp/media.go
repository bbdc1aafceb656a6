package whatsapp

import (
	"context"
	"fmt"

	"github.com/akcware/sorbot/pkg/sorbot/channels"

	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"google.golang.org/protobuf/proto"
)

// buildTextMessage constructs a WhatsApp text message, as an extended text
// message with quote context when replying.
func buildTextMessage(content, replyTo string) *waE2E.Message {
	if replyTo == "" {
		return &waE2E.Message{Conversation: proto.String(content)}
	}
	return &waE2E.Message{
		ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text: proto.String(content),
			ContextInfo: &waE2E.ContextInfo{
				StanzaID: proto.String(replyTo),
			},
		},
	}
}

// SendMedia uploads and sends a media message (image or voice note).
func (w *WhatsApp) SendMedia(ctx context.Context, to string, media *channels.MediaMessage) error {
	if !w.connected.Load() {
		return channels.ErrChannelDisconnected
	}

	jid, err := parseJID(to)
	if err != nil {
		return fmt.Errorf("invalid JID %q: %w", to, err)
	}

	var waMsg *waE2E.Message
	switch media.Type {
	case channels.MessageImage:
		waMsg, err = w.buildImageMessage(ctx, media)
	case channels.MessageVoice, channels.MessageAudio:
		waMsg, err = w.buildAudioMessage(ctx, media)
	default:
		return fmt.Errorf("unsupported media type: %s", media.Type)
	}
	if err != nil {
		return fmt.Errorf("building media message: %w", err)
	}

	if _, err := w.client.SendMessage(ctx, jid, waMsg); err != nil {
		return fmt.Errorf("sending media: %w", err)
	}
	return nil
}

// buildImageMessage uploads the image bytes and wraps them in a message.
func (w *WhatsApp) buildImageMessage(ctx context.Context, media *channels.MediaMessage) (*waE2E.Message, error) {
	up, err := w.client.Upload(ctx, media.Data, whatsmeow.MediaImage)
	if err != nil {
		return nil, fmt.Errorf("uploading image: %w", err)
	}
	return &waE2E.Message{
		ImageMessage: &waE2E.ImageMessage{
			Mimetype:      proto.String(media.MimeType),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		},
	}, nil
}

// buildAudioMessage uploads the audio bytes and wraps them in a message.
// VoiceNote marks the payload as push-to-talk so clients render the voice
// note player instead of a file attachment.
func (w *WhatsApp) buildAudioMessage(ctx context.Context, media *channels.MediaMessage) (*waE2E.Message, error) {
	up, err := w.client.Upload(ctx, media.Data, whatsmeow.MediaAudio)
	if err != nil {
		return nil, fmt.Errorf("uploading audio: %w", err)
	}
	return &waE2E.Message{
		AudioMessage: &waE2E.AudioMessage{
			Mimetype:      proto.String(media.MimeType),
			PTT:           proto.Bool(media.VoiceNote),
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
		},
	}, nil
}

// DownloadMedia downloads and decrypts media referenced by an incoming
// message. Returns the raw bytes and MIME type.
func (w *WhatsApp) DownloadMedia(ctx context.Context, info *channels.MediaInfo) ([]byte, string, error) {
	if info == nil {
		return nil, "", channels.ErrNoMedia
	}
	if !w.connected.Load() {
		return nil, "", channels.ErrChannelDisconnected
	}

	mediaType := whatsmeow.MediaAudio
	if info.Type == channels.MessageImage {
		mediaType = whatsmeow.MediaImage
	}

	data, err := w.client.DownloadMediaWithPath(ctx, info.DirectPath,
		info.FileEncSHA256, info.FileSHA256, info.MediaKey,
		int(info.FileSize), mediaType, "")
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", channels.ErrMediaDownloadFailed, err)
	}
	return data, info.MimeType, nil
}
