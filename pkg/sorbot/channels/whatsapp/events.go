package whatsapp

import (
	"fmt"
	"strings"
	"time"

	"github.com/akcware/sorbot/pkg/sorbot/channels"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// handleEvent is the main whatsmeow event dispatcher.
func (w *WhatsApp) handleEvent(rawEvt interface{}) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		w.handleMessageEvt(evt)

	case *events.Connected:
		w.connected.Store(true)
		w.reconnectAttempts.Store(0)
		w.logger.Info("whatsapp: connected", "jid", w.clientJID())

	case *events.Disconnected:
		wasConnected := w.connected.Load()
		w.connected.Store(false)
		w.logger.Warn("whatsapp: disconnected", "was_connected", wasConnected)
		if wasConnected && w.ctx.Err() == nil {
			go w.attemptReconnect()
		}

	case *events.StreamReplaced:
		w.connected.Store(false)
		w.logger.Error("whatsapp: stream replaced, another device connected")

	case *events.LoggedOut:
		w.connected.Store(false)
		w.logger.Error("whatsapp: logged out, session invalidated",
			"reason", evt.Reason.String())

	case *events.KeepAliveTimeout:
		w.logger.Warn("whatsapp: keep-alive timeout", "error_count", evt.ErrorCount)
		// Half-open connections look connected but are dead. Force a
		// reconnect after repeated failures.
		if evt.ErrorCount >= 3 && w.connected.Load() {
			w.connected.Store(false)
			go w.attemptReconnect()
		}

	case *events.ConnectFailure:
		w.connected.Store(false)
		w.logger.Error("whatsapp: connect failure",
			"reason", evt.Reason.String(), "message", evt.Message)
		if evt.PermanentDisconnectDescription() == "" && w.ctx.Err() == nil {
			go w.attemptReconnect()
		}

	case *events.PairSuccess:
		w.logger.Info("whatsapp: device paired", "jid", evt.ID.String())
	}
}

// handleMessageEvt converts an incoming WhatsApp message event into the
// unified IncomingMessage. Messages sent from the bot's own account are
// kept (FromMe is set) so self-sent commands work; status broadcasts and,
// unless configured, group chats are skipped.
func (w *WhatsApp) handleMessageEvt(evt *events.Message) {
	if evt.Info.Chat.Server == "broadcast" {
		return
	}
	if evt.Info.IsGroup && !w.cfg.RespondToGroups {
		return
	}

	// The chat JID identifies the conversant; for FromMe messages the
	// sender is the bot itself, but the conversation stays with the chat.
	chatJID := evt.Info.Chat
	resolvedChat := chatJID.String()
	if chatJID.Server == "lid" && w.client != nil && w.client.Store != nil {
		if altJID, err := w.client.Store.GetAltJID(w.ctx, chatJID); err == nil && !altJID.IsEmpty() {
			resolvedChat = altJID.String()
		}
	}

	msg := &channels.IncomingMessage{
		ID:        string(evt.Info.ID),
		From:      resolvedChat,
		FromName:  evt.Info.PushName,
		FromMe:    evt.Info.IsFromMe,
		Timestamp: evt.Info.Timestamp,
	}

	extractMessageContent(evt.Message, msg)
	extractQuotedMessage(evt.Message, msg)

	if w.cfg.AutoRead && !msg.FromMe {
		go func() {
			_ = w.markRead(msg.From, msg.ID)
		}()
	}

	w.emitMessage(msg)
}

// markRead marks a message as read.
func (w *WhatsApp) markRead(chatID, messageID string) error {
	if !w.connected.Load() {
		return nil
	}
	jid, err := parseJID(chatID)
	if err != nil {
		return err
	}
	return w.client.MarkRead(w.ctx, []types.MessageID{types.MessageID(messageID)},
		time.Now(), jid, jid)
}

// extractMessageContent extracts text/media content from a WhatsApp message.
func extractMessageContent(waMsg *waE2E.Message, msg *channels.IncomingMessage) {
	if waMsg == nil {
		msg.Type = channels.MessageOther
		return
	}

	if waMsg.Conversation != nil {
		msg.Type = channels.MessageText
		msg.Content = waMsg.GetConversation()
		return
	}

	if ext := waMsg.ExtendedTextMessage; ext != nil {
		msg.Type = channels.MessageText
		msg.Content = ext.GetText()
		return
	}

	if img := waMsg.ImageMessage; img != nil {
		msg.Type = channels.MessageImage
		msg.Content = img.GetCaption()
		msg.Media = imageMediaInfo(img)
		return
	}

	if audio := waMsg.AudioMessage; audio != nil {
		msg.Type = channels.MessageAudio
		if audio.GetPTT() {
			msg.Type = channels.MessageVoice
		}
		msg.Media = audioMediaInfo(audio)
		return
	}

	msg.Type = channels.MessageOther
}

// extractQuotedMessage extracts reply/quoted context from a message.
func extractQuotedMessage(waMsg *waE2E.Message, msg *channels.IncomingMessage) {
	if waMsg == nil {
		return
	}

	var ctxInfo *waE2E.ContextInfo
	switch {
	case waMsg.ExtendedTextMessage != nil:
		ctxInfo = waMsg.ExtendedTextMessage.GetContextInfo()
	case waMsg.ImageMessage != nil:
		ctxInfo = waMsg.ImageMessage.GetContextInfo()
	case waMsg.AudioMessage != nil:
		ctxInfo = waMsg.AudioMessage.GetContextInfo()
	}
	if ctxInfo == nil {
		return
	}

	if ctxInfo.StanzaID != nil {
		msg.ReplyTo = ctxInfo.GetStanzaID()
	}

	quoted := ctxInfo.QuotedMessage
	if quoted == nil {
		return
	}

	info := &channels.QuotedInfo{Type: channels.MessageText}
	switch {
	case quoted.Conversation != nil:
		info.Text = quoted.GetConversation()
	case quoted.ExtendedTextMessage != nil:
		info.Text = quoted.ExtendedTextMessage.GetText()
	case quoted.ImageMessage != nil:
		info.Type = channels.MessageImage
		info.Text = quoted.ImageMessage.GetCaption()
		info.Media = imageMediaInfo(quoted.ImageMessage)
	case quoted.AudioMessage != nil:
		info.Type = channels.MessageAudio
		if quoted.AudioMessage.GetPTT() {
			info.Type = channels.MessageVoice
		}
		info.Media = audioMediaInfo(quoted.AudioMessage)
	}
	msg.Quoted = info
}

func imageMediaInfo(img *waE2E.ImageMessage) *channels.MediaInfo {
	return &channels.MediaInfo{
		Type:          channels.MessageImage,
		MimeType:      img.GetMimetype(),
		FileSize:      img.GetFileLength(),
		URL:           img.GetURL(),
		DirectPath:    img.GetDirectPath(),
		MediaKey:      img.GetMediaKey(),
		FileSHA256:    img.GetFileSHA256(),
		FileEncSHA256: img.GetFileEncSHA256(),
	}
}

func audioMediaInfo(audio *waE2E.AudioMessage) *channels.MediaInfo {
	mtype := channels.MessageAudio
	if audio.GetPTT() {
		mtype = channels.MessageVoice
	}
	return &channels.MediaInfo{
		Type:          mtype,
		MimeType:      audio.GetMimetype(),
		FileSize:      audio.GetFileLength(),
		Duration:      audio.GetSeconds(),
		URL:           audio.GetURL(),
		DirectPath:    audio.GetDirectPath(),
		MediaKey:      audio.GetMediaKey(),
		FileSHA256:    audio.GetFileSHA256(),
		FileEncSHA256: audio.GetFileEncSHA256(),
	}
}

// parseJID converts a string JID to types.JID. Accepts a full JID like
// "5511999999999@s.whatsapp.net" or a bare phone number.
func parseJID(s string) (types.JID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return types.JID{}, fmt.Errorf("empty JID")
	}

	if strings.Contains(s, "@") {
		return types.ParseJID(s)
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if len(digits) < 10 {
		return types.JID{}, fmt.Errorf("phone number too short: %s", s)
	}

	return types.NewJID(digits, types.DefaultUserServer), nil
}
