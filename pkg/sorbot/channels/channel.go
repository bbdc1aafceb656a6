// Package channels defines the interface and types for sorbot message
// transports. The WhatsApp transport implements the Channel interface to
// receive and send messages in a unified way; the bot core only ever sees
// these types.
package channels

import (
	"context"
	"fmt"
	"time"
)

// MessageType identifies the kind of message content.
type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageAudio MessageType = "audio"
	MessageVoice MessageType = "voice" // push-to-talk voice note
	MessageOther MessageType = "other"
)

// Channel defines the interface every transport must implement.
type Channel interface {
	// Name returns the channel identifier (e.g. "whatsapp").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Send sends a text message to the specified recipient.
	Send(ctx context.Context, to string, msg *OutgoingMessage) error

	// SendMedia sends a media message (image or voice note).
	SendMedia(ctx context.Context, to string, media *MediaMessage) error

	// DownloadMedia downloads media referenced by an incoming message.
	// Returns the raw bytes and MIME type.
	DownloadMedia(ctx context.Context, info *MediaInfo) ([]byte, string, error)

	// ContactName resolves a human-readable name for a sender identity.
	// Returns empty string if unknown.
	ContactName(ctx context.Context, id string) string

	// Receive returns a Go channel that emits incoming messages.
	Receive() <-chan *IncomingMessage

	// IsConnected reports whether the channel is connected.
	IsConnected() bool
}

// IncomingMessage represents a message received from the transport.
type IncomingMessage struct {
	// ID is the unique message identifier in the source channel.
	ID string

	// From is the sender identity (conversant), e.g. a JID.
	From string

	// FromName is the sender display name pushed by the platform, if any.
	FromName string

	// FromMe indicates the message was sent by the bot's own account.
	FromMe bool

	// Type is the message content type.
	Type MessageType

	// Content is the text content (body or caption).
	Content string

	// Timestamp is when the message was sent.
	Timestamp time.Time

	// ReplyTo is the ID of the message being replied to, if quoting.
	ReplyTo string

	// Quoted describes the quoted message, if quoting.
	Quoted *QuotedInfo

	// Media contains media attachment details, if any.
	Media *MediaInfo
}

// QuotedInfo describes the message an incoming message quotes.
type QuotedInfo struct {
	Type  MessageType
	Text  string
	Media *MediaInfo
}

// OutgoingMessage represents a text message to be sent.
type OutgoingMessage struct {
	// Content is the text content of the message.
	Content string

	// ReplyTo is the ID of the message to reply to, if quoting.
	ReplyTo string
}

// MediaMessage represents a media payload to be sent.
type MediaMessage struct {
	// Type is the media type (image or voice).
	Type MessageType

	// Data is the raw media bytes.
	Data []byte

	// MimeType is the MIME type (e.g. "image/jpeg", "audio/ogg").
	MimeType string

	// Filename is an optional file name.
	Filename string

	// VoiceNote marks audio as a push-to-talk voice note.
	VoiceNote bool
}

// MediaInfo describes media attached to an incoming message. The fields
// mirror what WhatsApp needs to fetch and decrypt the payload.
type MediaInfo struct {
	Type          MessageType
	MimeType      string
	FileSize      uint64
	Duration      uint32
	URL           string
	DirectPath    string
	MediaKey      []byte
	FileSHA256    []byte
	FileEncSHA256 []byte
}

// IsVoice reports whether the media is a voice/audio payload.
func (m *MediaInfo) IsVoice() bool {
	return m != nil && (m.Type == MessageVoice || m.Type == MessageAudio)
}

// IsImage reports whether the media is an image payload.
func (m *MediaInfo) IsImage() bool {
	return m != nil && m.Type == MessageImage
}

// Errors.
var (
	ErrChannelDisconnected = fmt.Errorf("channel is not connected")
	ErrNoMedia             = fmt.Errorf("message has no media")
	ErrMediaDownloadFailed = fmt.Errorf("failed to download media")
)
