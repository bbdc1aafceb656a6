package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/akcware/sorbot/pkg/sorbot/channels"
	"github.com/akcware/sorbot/pkg/sorbot/history"
	"github.com/akcware/sorbot/pkg/sorbot/llm"
)

const (
	testAdmin = "905550000001@s.whatsapp.net"
	testUser  = "905550000002@s.whatsapp.net"
)

// ---------- Fakes ----------

type fakeChannel struct {
	mu       sync.Mutex
	sent     []sentMessage
	media    []*channels.MediaMessage
	incoming chan *channels.IncomingMessage

	contactName string
	downloadErr error
	sendErr     error
	data        []byte
	mime        string
}

type sentMessage struct {
	To      string
	Content string
	ReplyTo string
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		incoming: make(chan *channels.IncomingMessage, 8),
		data:     []byte("media-bytes"),
		mime:     "audio/ogg; codecs=opus",
	}
}

func (f *fakeChannel) Name() string                       { return "fake" }
func (f *fakeChannel) Connect(context.Context) error      { return nil }
func (f *fakeChannel) Disconnect() error                  { return nil }
func (f *fakeChannel) IsConnected() bool                  { return true }
func (f *fakeChannel) Receive() <-chan *channels.IncomingMessage { return f.incoming }

func (f *fakeChannel) Send(_ context.Context, to string, msg *channels.OutgoingMessage) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{To: to, Content: msg.Content, ReplyTo: msg.ReplyTo})
	return nil
}

func (f *fakeChannel) SendMedia(_ context.Context, _ string, media *channels.MediaMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media = append(f.media, media)
	return nil
}

func (f *fakeChannel) DownloadMedia(_ context.Context, info *channels.MediaInfo) ([]byte, string, error) {
	if f.downloadErr != nil {
		return nil, "", f.downloadErr
	}
	if info == nil {
		return nil, "", channels.ErrNoMedia
	}
	return f.data, f.mime, nil
}

func (f *fakeChannel) ContactName(context.Context, string) string { return f.contactName }

func (f *fakeChannel) sentMessages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.sent...)
}

type fakeStore struct {
	mu    sync.Mutex
	turns map[string][]history.Turn
	next  int64

	appendErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{turns: map[string][]history.Turn{}}
}

func (s *fakeStore) Append(_ context.Context, conversant string, role history.Role, text string) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.turns[conversant] = append(s.turns[conversant], history.Turn{
		ID:         s.next,
		Conversant: conversant,
		Role:       role,
		Content:    history.Content{Text: text},
	})
	return nil
}

func (s *fakeStore) List(_ context.Context, conversant string) ([]history.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]history.Turn(nil), s.turns[conversant]...), nil
}

type fakeModel struct {
	mu            sync.Mutex
	completeCalls [][]llm.Message
	lastModel     string

	completeFn   func(model string, messages []llm.Message) (string, error)
	transcribeFn func(path string) (string, error)
	describeFn   func(question string) (string, error)
	generateFn   func(prompt string) ([]byte, string, error)
}

func (m *fakeModel) Complete(_ context.Context, model string, messages []llm.Message) (string, error) {
	m.mu.Lock()
	m.completeCalls = append(m.completeCalls, messages)
	m.lastModel = model
	m.mu.Unlock()
	if m.completeFn != nil {
		return m.completeFn(model, messages)
	}
	return "model reply", nil
}

func (m *fakeModel) DescribeImage(_ context.Context, _ string, _ []llm.Message, _ string, _ []byte, question string) (string, error) {
	if m.describeFn != nil {
		return m.describeFn(question)
	}
	return "a description", nil
}

func (m *fakeModel) Transcribe(_ context.Context, path string) (string, error) {
	if m.transcribeFn != nil {
		return m.transcribeFn(path)
	}
	return "transcribed text", nil
}

func (m *fakeModel) GenerateImage(_ context.Context, prompt string) ([]byte, string, error) {
	if m.generateFn != nil {
		return m.generateFn(prompt)
	}
	return []byte("image-bytes"), "image/jpeg", nil
}

type fakeSpeech struct {
	err error
}

func (s *fakeSpeech) Synthesize(context.Context, string, string) ([]byte, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return []byte("audio-bytes"), "audio/mpeg", nil
}

type fixedPrompt string

func (p fixedPrompt) Load() string { return string(p) }

// ---------- Harness ----------

type harness struct {
	dispatcher *Dispatcher
	channel    *fakeChannel
	store      *fakeStore
	model      *fakeModel
	speech     *fakeSpeech
	gate       *Gate
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	cfg := DefaultConfig()
	cfg.AdminJID = testAdmin
	cfg.TempDir = t.TempDir()

	ch := newFakeChannel()
	store := newFakeStore()
	model := &fakeModel{}
	speech := &fakeSpeech{}
	gate := NewGate(cfg.AdminJID)
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	d := NewDispatcher(cfg, ch, gate, store, fixedPrompt("be helpful"), model, speech, logger)
	return &harness{dispatcher: d, channel: ch, store: store, model: model, speech: speech, gate: gate}
}

func textMessage(from, body string) *channels.IncomingMessage {
	return &channels.IncomingMessage{
		ID:      "MSG1",
		From:    from,
		Type:    channels.MessageText,
		Content: body,
	}
}

// ---------- Control commands ----------

func TestControlCommands(t *testing.T) {
	t.Run("status is readable by anyone", func(t *testing.T) {
		h := newHarness(t)
		h.dispatcher.Handle(context.Background(), textMessage(testUser, "@status"))

		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != "Bot status: enabled" {
			t.Fatalf("expected status reply, got %+v", sent)
		}
	})

	t.Run("status with extra text is not a command", func(t *testing.T) {
		h := newHarness(t)
		h.dispatcher.Handle(context.Background(), textMessage(testUser, "@status please"))

		if sent := h.channel.sentMessages(); len(sent) != 0 {
			t.Fatalf("expected silence for non-exact token, got %+v", sent)
		}
	})

	t.Run("admin disables the bot", func(t *testing.T) {
		h := newHarness(t)
		h.dispatcher.Handle(context.Background(), textMessage(testAdmin, "@disable"))

		if h.gate.Enabled(GateBot) {
			t.Error("expected bot to be disabled")
		}
		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != "Bot is now disabled" {
			t.Fatalf("expected disable confirmation, got %+v", sent)
		}
	})

	t.Run("non-admin toggle is silently ignored", func(t *testing.T) {
		h := newHarness(t)
		h.dispatcher.Handle(context.Background(), textMessage(testUser, "@disable"))

		if !h.gate.Enabled(GateBot) {
			t.Error("expected bot to stay enabled")
		}
		if sent := h.channel.sentMessages(); len(sent) != 0 {
			t.Fatalf("expected no reply to non-admin toggle, got %+v", sent)
		}
	})

	t.Run("voice status reflects toggles", func(t *testing.T) {
		h := newHarness(t)
		h.dispatcher.Handle(context.Background(), textMessage(testAdmin, "@disablevoice"))
		h.dispatcher.Handle(context.Background(), textMessage(testUser, "@voicestatus"))

		sent := h.channel.sentMessages()
		if len(sent) != 2 {
			t.Fatalf("expected two replies, got %+v", sent)
		}
		if sent[1].Content != "Voice processing is disabled" {
			t.Errorf("expected disabled voice status, got %q", sent[1].Content)
		}
	})
}

// ---------- Gate behavior ----------

func TestDisabledGate(t *testing.T) {
	t.Run("triggered chat gets the disabled notice", func(t *testing.T) {
		h := newHarness(t)
		h.gate.SetEnabled(GateBot, false, testAdmin)

		h.dispatcher.Handle(context.Background(), textMessage(testUser, "@sor hello"))

		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != replyDisabled {
			t.Fatalf("expected exactly the disabled notice, got %+v", sent)
		}
		if len(h.model.completeCalls) != 0 {
			t.Error("expected no model call while disabled")
		}
		if turns, _ := h.store.List(context.Background(), testUser); len(turns) != 0 {
			t.Errorf("expected no stored turns, got %d", len(turns))
		}
	})

	t.Run("untriggered message stays silent while disabled", func(t *testing.T) {
		h := newHarness(t)
		h.gate.SetEnabled(GateBot, false, testAdmin)

		h.dispatcher.Handle(context.Background(), textMessage(testUser, "just chatting"))

		if sent := h.channel.sentMessages(); len(sent) != 0 {
			t.Fatalf("expected silence, got %+v", sent)
		}
	})

	t.Run("admin bypasses the disabled gate", func(t *testing.T) {
		h := newHarness(t)
		h.gate.SetEnabled(GateBot, false, testAdmin)

		h.dispatcher.Handle(context.Background(), textMessage(testAdmin, "@sor hello"))

		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != "model reply" {
			t.Fatalf("expected a model reply for the admin, got %+v", sent)
		}
	})
}

// ---------- Chat ----------

func TestChat(t *testing.T) {
	t.Run("round trip persists both turns", func(t *testing.T) {
		h := newHarness(t)
		h.dispatcher.Handle(context.Background(), textMessage(testUser, "@sor hello"))

		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != "model reply" {
			t.Fatalf("expected model reply, got %+v", sent)
		}

		turns, _ := h.store.List(context.Background(), testUser)
		if len(turns) != 2 {
			t.Fatalf("expected 2 stored turns, got %d", len(turns))
		}
		if turns[0].Role != history.RoleUser || turns[0].Content.Text != "@sor hello" {
			t.Errorf("expected raw user text stored, got %+v", turns[0])
		}
		if turns[1].Role != history.RoleAssistant || turns[1].Content.Text != "model reply" {
			t.Errorf("expected assistant reply stored, got %+v", turns[1])
		}
	})

	t.Run("system prompt and display name in model context", func(t *testing.T) {
		h := newHarness(t)
		h.channel.contactName = "Ayse"
		h.dispatcher.Handle(context.Background(), textMessage(testUser, "@sor hello"))

		if len(h.model.completeCalls) != 1 {
			t.Fatalf("expected one model call, got %d", len(h.model.completeCalls))
		}
		messages := h.model.completeCalls[0]
		if messages[0].Role != llm.RoleSystem || messages[0].Content != "be helpful" {
			t.Errorf("expected system prompt first, got %+v", messages[0])
		}
		last := messages[len(messages)-1]
		if last.Content != "Ayse: @sor hello" {
			t.Errorf("expected display-name prefix, got %q", last.Content)
		}
	})

	t.Run("pro token selects elevated model and omits system prompt", func(t *testing.T) {
		h := newHarness(t)
		h.dispatcher.Handle(context.Background(), textMessage(testUser, "@sor @pro hard question"))

		if h.model.lastModel != h.dispatcher.cfg.Models.Elevated {
			t.Errorf("expected elevated model, got %q", h.model.lastModel)
		}
		for _, m := range h.model.completeCalls[0] {
			if m.Role == llm.RoleSystem {
				t.Error("expected no system message for pro request")
			}
		}
	})

	t.Run("model failure sends apology and persists nothing", func(t *testing.T) {
		h := newHarness(t)
		h.model.completeFn = func(string, []llm.Message) (string, error) {
			return "", fmt.Errorf("upstream unavailable")
		}
		h.dispatcher.Handle(context.Background(), textMessage(testUser, "@sor hello"))

		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != replyChatFailed {
			t.Fatalf("expected exactly one apology, got %+v", sent)
		}
		if turns, _ := h.store.List(context.Background(), testUser); len(turns) != 0 {
			t.Errorf("expected no stored turns after failure, got %d", len(turns))
		}
	})

	t.Run("history is replayed in order", func(t *testing.T) {
		h := newHarness(t)
		_ = h.store.Append(context.Background(), testUser, history.RoleUser, "earlier question")
		_ = h.store.Append(context.Background(), testUser, history.RoleAssistant, "earlier answer")

		h.dispatcher.Handle(context.Background(), textMessage(testUser, "@sor next"))

		messages := h.model.completeCalls[0]
		// system + 2 history + current user turn
		if len(messages) != 4 {
			t.Fatalf("expected 4 messages, got %d", len(messages))
		}
		if messages[1].Content != "earlier question" || messages[2].Content != "earlier answer" {
			t.Errorf("expected history replay, got %+v", messages[1:3])
		}
	})

	t.Run("untriggered message from unknown sender is ignored", func(t *testing.T) {
		h := newHarness(t)
		h.dispatcher.Handle(context.Background(), textMessage(testUser, "hello there"))

		if sent := h.channel.sentMessages(); len(sent) != 0 {
			t.Fatalf("expected silence, got %+v", sent)
		}
		if len(h.model.completeCalls) != 0 {
			t.Error("expected no model call")
		}
	})

	t.Run("greeting from allow-listed sender starts a chat", func(t *testing.T) {
		h := newHarness(t)
		h.dispatcher.cfg.GreetingJID = testUser
		h.dispatcher.classifier = NewClassifier(h.dispatcher.cfg.Tokens, testUser)

		h.dispatcher.Handle(context.Background(), textMessage(testUser, "Günaydın!"))

		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != "model reply" {
			t.Fatalf("expected chat reply to greeting, got %+v", sent)
		}
	})
}

// ---------- Panic recovery ----------

func TestHandleRecoversFromPanic(t *testing.T) {
	h := newHarness(t)
	h.model.completeFn = func(string, []llm.Message) (string, error) {
		panic("boom")
	}

	h.dispatcher.Handle(context.Background(), textMessage(testUser, "@sor hello"))

	sent := h.channel.sentMessages()
	if len(sent) != 1 || sent[0].Content != replyChatFailed {
		t.Fatalf("expected apology after panic, got %+v", sent)
	}
}

// ---------- Image ----------

func TestImageHandling(t *testing.T) {
	imageMessage := func(from, caption string) *channels.IncomingMessage {
		return &channels.IncomingMessage{
			ID:      "IMG1",
			From:    from,
			Type:    channels.MessageImage,
			Content: caption,
			Media:   &channels.MediaInfo{Type: channels.MessageImage, MimeType: "image/jpeg"},
		}
	}

	t.Run("caption question reaches the model", func(t *testing.T) {
		h := newHarness(t)
		var gotQuestion string
		h.model.describeFn = func(question string) (string, error) {
			gotQuestion = question
			return "a cat", nil
		}

		h.dispatcher.Handle(context.Background(), imageMessage(testUser, "@sor what breed is this?"))

		if gotQuestion != "what breed is this?" {
			t.Errorf("expected stripped question, got %q", gotQuestion)
		}
		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != "a cat" {
			t.Fatalf("expected description reply, got %+v", sent)
		}
	})

	t.Run("bare trigger caption falls back to the default question", func(t *testing.T) {
		h := newHarness(t)
		var gotQuestion string
		h.model.describeFn = func(question string) (string, error) {
			gotQuestion = question
			return "a description", nil
		}

		h.dispatcher.Handle(context.Background(), imageMessage(testUser, "@sor"))

		if gotQuestion != defaultImageQuestion {
			t.Errorf("expected default question, got %q", gotQuestion)
		}
	})

	t.Run("image without trigger is ignored", func(t *testing.T) {
		h := newHarness(t)
		h.dispatcher.Handle(context.Background(), imageMessage(testUser, "nice view"))

		if sent := h.channel.sentMessages(); len(sent) != 0 {
			t.Fatalf("expected silence, got %+v", sent)
		}
	})

	t.Run("download failure sends the image apology", func(t *testing.T) {
		h := newHarness(t)
		h.channel.downloadErr = fmt.Errorf("network down")

		h.dispatcher.Handle(context.Background(), imageMessage(testUser, "@sor what is this"))

		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != replyImageFailed {
			t.Fatalf("expected image apology, got %+v", sent)
		}
	})
}

// ---------- Image generation ----------

func TestImageGeneration(t *testing.T) {
	t.Run("prompt is forwarded and image sent", func(t *testing.T) {
		h := newHarness(t)
		var gotPrompt string
		h.model.generateFn = func(prompt string) ([]byte, string, error) {
			gotPrompt = prompt
			return []byte("img"), "image/jpeg", nil
		}

		h.dispatcher.Handle(context.Background(), textMessage(testUser, "@draw a lighthouse at dusk"))

		if gotPrompt != "a lighthouse at dusk" {
			t.Errorf("expected trimmed prompt, got %q", gotPrompt)
		}
		h.channel.mu.Lock()
		defer h.channel.mu.Unlock()
		if len(h.channel.media) != 1 {
			t.Fatalf("expected one media send, got %d", len(h.channel.media))
		}
		if h.channel.media[0].Type != channels.MessageImage {
			t.Errorf("expected image media, got %s", h.channel.media[0].Type)
		}
	})

	t.Run("generation failure sends the draw apology", func(t *testing.T) {
		h := newHarness(t)
		h.model.generateFn = func(string) ([]byte, string, error) {
			return nil, "", fmt.Errorf("content policy")
		}

		h.dispatcher.Handle(context.Background(), textMessage(testUser, "@draw something"))

		sent := h.channel.sentMessages()
		if len(sent) != 1 || sent[0].Content != replyDrawFailed {
			t.Fatalf("expected draw apology, got %+v", sent)
		}
	})

	t.Run("empty prompt asks for one", func(t *testing.T) {
		h := newHarness(t)
		h.dispatcher.Handle(context.Background(), textMessage(testUser, "@draw"))

		sent := h.channel.sentMessages()
		if len(sent) != 1 || !strings.Contains(sent[0].Content, "prompt") {
			t.Fatalf("expected prompt request, got %+v", sent)
		}
	})
}
