package bot

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/akcware/sorbot/pkg/sorbot/channels"
	"github.com/akcware/sorbot/pkg/sorbot/history"
	"github.com/akcware/sorbot/pkg/sorbot/llm"
	"github.com/akcware/sorbot/pkg/sorbot/tts"

	"github.com/google/uuid"
)

// Fixed user-visible replies.
const (
	replyDisabled       = "Sorry, the bot is currently disabled."
	replyChatFailed     = "Sorry, something went wrong while handling your message."
	replyAudioFailed    = "Sorry, there was an error processing your audio message."
	replyImageFailed    = "Sorry, there was an error processing your image."
	replyDrawFailed     = "Sorry, there was an error generating the image."
	replyTransFailed    = "Sorry, there was an error transcribing the audio message."
	fallbackDisplayName = "there"
)

// ModelProvider is the language-model surface the dispatcher needs.
// *llm.Client implements it.
type ModelProvider interface {
	Complete(ctx context.Context, model string, messages []llm.Message) (string, error)
	DescribeImage(ctx context.Context, model string, messages []llm.Message, mime string, data []byte, question string) (string, error)
	Transcribe(ctx context.Context, path string) (string, error)
	GenerateImage(ctx context.Context, prompt string) ([]byte, string, error)
}

// HistoryStore is the conversation persistence surface. *history.Store
// implements it.
type HistoryStore interface {
	Append(ctx context.Context, conversant string, role history.Role, text string) error
	List(ctx context.Context, conversant string) ([]history.Turn, error)
}

// PromptSource supplies the active system prompt. *promptcfg.File
// implements it.
type PromptSource interface {
	Load() string
}

// Dispatcher routes each inbound message to exactly one handler, applying
// the availability gate and turning handler failures into apology replies.
type Dispatcher struct {
	cfg        Config
	channel    channels.Channel
	classifier *Classifier
	gate       *Gate
	store      HistoryStore
	prompts    PromptSource
	model      ModelProvider
	speech     tts.Provider
	logger     *slog.Logger

	// conversants serializes handling per conversant so two overlapping
	// messages from the same identity cannot read the same history
	// snapshot before either appends.
	conversantsMu sync.Mutex
	conversants   map[string]*sync.Mutex
}

// NewDispatcher wires the dispatcher.
func NewDispatcher(cfg Config, ch channels.Channel, gate *Gate, store HistoryStore, prompts PromptSource, model ModelProvider, speech tts.Provider, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		cfg:         cfg,
		channel:     ch,
		classifier:  NewClassifier(cfg.Tokens, cfg.GreetingJID),
		gate:        gate,
		store:       store,
		prompts:     prompts,
		model:       model,
		speech:      speech,
		logger:      logger.With("component", "dispatcher"),
		conversants: map[string]*sync.Mutex{},
	}
}

// Run consumes the channel's incoming messages until the context ends.
// Each message is handled on its own goroutine; per-conversant ordering is
// preserved by the conversant lock inside Handle.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-d.channel.Receive():
			if !ok {
				return
			}
			go d.Handle(ctx, msg)
		}
	}
}

// Handle processes one inbound message. It never panics outward: any
// handler failure becomes a best-effort apology reply plus a log entry.
func (d *Dispatcher) Handle(ctx context.Context, msg *channels.IncomingMessage) {
	run := uuid.NewString()[:8]
	log := d.logger.With("run", run, "from", msg.From)

	defer func() {
		if r := recover(); r != nil {
			log.Error("handler panic", "panic", r)
			d.reply(ctx, msg, replyChatFailed)
		}
	}()

	unlock := d.lockConversant(msg.From)
	defer unlock()

	in := d.classifier.Classify(msg)
	log.Info("message received", "intent", in.Kind.String())

	switch in.Kind {
	case IntentIgnore:
		return

	// Transcription of quoted audio is always available, independent of
	// the enable gate.
	case IntentTranscribe:
		if err := d.handleTranscribe(ctx, msg); err != nil {
			log.Error("transcription failed", "error", err)
			d.reply(ctx, msg, replyTransFailed)
		}
		return

	case IntentStatus, IntentEnable, IntentDisable,
		IntentVoiceStatus, IntentVoiceEnable, IntentVoiceDisable:
		d.handleControl(ctx, msg, in, log)
		return
	}

	// Remaining intents respect the overall gate (admin bypasses it).
	if !d.gate.Enabled(GateBot) && !d.gate.IsAdmin(msg.From) {
		if d.classifier.ChatTriggered(msg.Content) {
			log.Info("rejected message, bot is disabled")
			d.reply(ctx, msg, replyDisabled)
		}
		return
	}

	displayName := d.displayName(ctx, msg)
	log = log.With("name", displayName)

	var (
		err     error
		apology string
	)
	switch in.Kind {
	case IntentVoice:
		if msg.FromMe {
			return
		}
		if !d.gate.Enabled(GateVoice) {
			log.Info("rejected voice message, voice processing is disabled")
			return
		}
		apology = replyAudioFailed
		err = d.handleVoice(ctx, msg, displayName)

	case IntentImageUnderstand:
		apology = replyImageFailed
		err = d.handleImage(ctx, msg, displayName)

	case IntentImageGenerate:
		apology = replyDrawFailed
		err = d.handleGenerate(ctx, msg, in.Prompt)

	case IntentChat:
		apology = replyChatFailed
		err = d.handleChat(ctx, msg, displayName)
	}

	if err != nil {
		log.Error("handler failed", "intent", in.Kind.String(), "error", err)
		d.reply(ctx, msg, apology)
	}
}

// handleControl answers status queries and applies admin-gated toggles.
// A non-admin toggle attempt produces no state change and no reply; the
// silence is deliberate.
func (d *Dispatcher) handleControl(ctx context.Context, msg *channels.IncomingMessage, in Intent, log *slog.Logger) {
	switch in.Kind {
	case IntentStatus:
		d.reply(ctx, msg, "Bot status: "+onOff(d.gate.Enabled(GateBot)))

	case IntentVoiceStatus:
		d.reply(ctx, msg, "Voice processing is "+onOff(d.gate.Enabled(GateVoice)))

	case IntentEnable, IntentDisable:
		if !d.gate.IsAdmin(msg.From) {
			log.Info("ignored control command from non-admin")
			return
		}
		on := in.Kind == IntentEnable
		d.gate.SetEnabled(GateBot, on, msg.From)
		d.reply(ctx, msg, fmt.Sprintf("Bot is now %s", onOff(on)))

	case IntentVoiceEnable, IntentVoiceDisable:
		if !d.gate.IsAdmin(msg.From) {
			log.Info("ignored voice control command from non-admin")
			return
		}
		on := in.Kind == IntentVoiceEnable
		d.gate.SetEnabled(GateVoice, on, msg.From)
		d.reply(ctx, msg, fmt.Sprintf("Voice processing is now %s", onOff(on)))
	}
}

// reply sends a best-effort text reply to the message's sender. Send
// failures are logged, never propagated: the reply path must not take the
// process down.
func (d *Dispatcher) reply(ctx context.Context, msg *channels.IncomingMessage, text string) {
	out := &channels.OutgoingMessage{Content: text}
	if err := d.channel.Send(ctx, msg.From, out); err != nil {
		d.logger.Error("sending reply failed", "to", msg.From, "error", err)
	}
}

// displayName resolves a human-readable sender name, used only for model
// context, never for identity decisions.
func (d *Dispatcher) displayName(ctx context.Context, msg *channels.IncomingMessage) string {
	if name := d.channel.ContactName(ctx, msg.From); name != "" {
		return name
	}
	if msg.FromName != "" {
		return msg.FromName
	}
	return fallbackDisplayName
}

// lockConversant acquires the per-conversant mutex, creating it on first
// use. The map only grows; one mutex per conversant is cheap.
func (d *Dispatcher) lockConversant(conversant string) func() {
	d.conversantsMu.Lock()
	mu, ok := d.conversants[conversant]
	if !ok {
		mu = &sync.Mutex{}
		d.conversants[conversant] = mu
	}
	d.conversantsMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func onOff(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}
