package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/akcware/sorbot/pkg/sorbot/channels"
	"github.com/akcware/sorbot/pkg/sorbot/llm"
)

// defaultImageQuestion is asked when the caption carries no question
// beyond the trigger tokens.
const defaultImageQuestion = "What's in this image? Please describe it concisely."

// handleImage answers a question about an attached image. Vision requests
// are stateless: history is neither read nor written.
func (d *Dispatcher) handleImage(ctx context.Context, msg *channels.IncomingMessage, displayName string) error {
	data, mime, err := d.channel.DownloadMedia(ctx, msg.Media)
	if err != nil {
		return fmt.Errorf("downloading image: %w", err)
	}

	isPro := strings.Contains(msg.Content, d.cfg.Tokens.Pro)
	model := d.cfg.Models.Default
	if isPro {
		model = d.cfg.Models.Elevated
	}

	question := msg.Content
	question = strings.ReplaceAll(question, d.cfg.Tokens.Chat, "")
	question = strings.ReplaceAll(question, d.cfg.Tokens.Pro, "")
	question = strings.TrimSpace(question)
	if question == "" {
		question = defaultImageQuestion
	}

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: d.prompts.Load()},
		{Role: llm.RoleUser, Content: fmt.Sprintf("My name is %s.", displayName)},
	}

	answer, err := d.model.DescribeImage(ctx, model, messages, mime, data, question)
	if err != nil {
		return fmt.Errorf("describing image: %w", err)
	}

	return d.channel.Send(ctx, msg.From, &channels.OutgoingMessage{Content: answer})
}

// handleGenerate creates an image from the prompt and sends it back.
func (d *Dispatcher) handleGenerate(ctx context.Context, msg *channels.IncomingMessage, prompt string) error {
	if strings.TrimSpace(prompt) == "" {
		return d.channel.Send(ctx, msg.From, &channels.OutgoingMessage{
			Content: "Please provide a prompt for the image.",
		})
	}

	data, mime, err := d.model.GenerateImage(ctx, prompt)
	if err != nil {
		return fmt.Errorf("generating image: %w", err)
	}

	return d.channel.SendMedia(ctx, msg.From, &channels.MediaMessage{
		Type:     channels.MessageImage,
		Data:     data,
		MimeType: mime,
		Filename: "generated-image.jpg",
	})
}
