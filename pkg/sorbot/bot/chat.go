package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/akcware/sorbot/pkg/sorbot/channels"
	"github.com/akcware/sorbot/pkg/sorbot/history"
	"github.com/akcware/sorbot/pkg/sorbot/llm"
)

// handleChat produces a text reply for a chat-intent message. When the
// inbound message quoted another one, the reply quotes the same message;
// if the quoted send fails, the reply is retried unquoted.
func (d *Dispatcher) handleChat(ctx context.Context, msg *channels.IncomingMessage, displayName string) error {
	reply, err := d.chat(ctx, msg.Content, msg.From, displayName)
	if err != nil {
		return err
	}

	out := &channels.OutgoingMessage{Content: reply, ReplyTo: msg.ReplyTo}
	if err := d.channel.Send(ctx, msg.From, out); err != nil && out.ReplyTo != "" {
		d.logger.Warn("quoted reply failed, retrying without quote", "error", err)
		return d.channel.Send(ctx, msg.From, &channels.OutgoingMessage{Content: reply})
	} else if err != nil {
		return fmt.Errorf("sending chat reply: %w", err)
	}
	return nil
}

// chat runs the model round-trip: replay history, call the provider,
// persist both turns on success. Nothing is persisted when the provider
// fails, so history never carries half a round-trip.
func (d *Dispatcher) chat(ctx context.Context, text, conversant, displayName string) (string, error) {
	turns, err := d.store.List(ctx, conversant)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}

	// The pro token selects the elevated model and omits the system
	// prompt from the context.
	isPro := strings.Contains(text, d.cfg.Tokens.Pro)
	model := d.cfg.Models.Default
	if isPro {
		model = d.cfg.Models.Elevated
	}

	var messages []llm.Message
	if !isPro {
		messages = append(messages, llm.Message{
			Role:    llm.RoleSystem,
			Content: d.prompts.Load(),
		})
	}
	for _, t := range turns {
		role := llm.RoleUser
		if t.Role == history.RoleAssistant {
			role = llm.RoleAssistant
		}
		messages = append(messages, llm.Message{Role: role, Content: t.Content.Text})
	}
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("%s: %s", displayName, text),
	})

	response, err := d.model.Complete(ctx, model, messages)
	if err != nil {
		return "", fmt.Errorf("model call: %w", err)
	}

	// Persist the original text, without the display-name prefix.
	if err := d.store.Append(ctx, conversant, history.RoleUser, text); err != nil {
		return "", fmt.Errorf("persisting user turn: %w", err)
	}
	if err := d.store.Append(ctx, conversant, history.RoleAssistant, response); err != nil {
		return "", fmt.Errorf("persisting assistant turn: %w", err)
	}

	return response, nil
}
