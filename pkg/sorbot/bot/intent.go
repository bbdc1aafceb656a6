package bot

import (
	"strings"
	"unicode"

	"github.com/akcware/sorbot/pkg/sorbot/channels"

	"golang.org/x/text/unicode/norm"
)

// IntentKind is the classified purpose of one inbound message.
type IntentKind int

const (
	IntentIgnore IntentKind = iota
	IntentStatus
	IntentEnable
	IntentDisable
	IntentVoiceStatus
	IntentVoiceEnable
	IntentVoiceDisable
	IntentTranscribe
	IntentVoice
	IntentImageUnderstand
	IntentImageGenerate
	IntentChat
)

// String returns the intent name for logs.
func (k IntentKind) String() string {
	switch k {
	case IntentStatus:
		return "status"
	case IntentEnable:
		return "enable"
	case IntentDisable:
		return "disable"
	case IntentVoiceStatus:
		return "voicestatus"
	case IntentVoiceEnable:
		return "enablevoice"
	case IntentVoiceDisable:
		return "disablevoice"
	case IntentTranscribe:
		return "transcribe"
	case IntentVoice:
		return "voice"
	case IntentImageUnderstand:
		return "image"
	case IntentImageGenerate:
		return "imagegen"
	case IntentChat:
		return "chat"
	default:
		return "ignore"
	}
}

// Intent is the classification result. Prompt carries the stripped
// generation prompt for IntentImageGenerate.
type Intent struct {
	Kind   IntentKind
	Prompt string
}

// greetingFragments are matched case- and diacritic-insensitively against
// the message body. Folding reduces all spellings to the plain-ascii
// variants, so one fragment covers gunaydin/günaydın/GÜNAYDIN etc.
var greetingFragments = []string{
	"gunayd",    // gunaydin, günaydın
	"iyi gece",  // iyi geceler
	"iyi gunduz",
	"iyi gunler",
}

// Classifier maps a raw inbound message to exactly one Intent. Pure and
// total: every message yields exactly one variant, defaulting to ignore.
type Classifier struct {
	tokens      TokenConfig
	greetingJID string
}

// NewClassifier creates a classifier over the configured tokens.
func NewClassifier(tokens TokenConfig, greetingJID string) *Classifier {
	return &Classifier{tokens: tokens, greetingJID: greetingJID}
}

// Classify resolves the message to a single intent. Rules run in strict
// priority order; the first match wins even when several patterns co-occur
// in one body.
func (c *Classifier) Classify(msg *channels.IncomingMessage) Intent {
	body := msg.Content

	// 1. Quoted voice message + transcribe token.
	if msg.Quoted != nil && strings.Contains(body, c.tokens.Transcribe) &&
		msg.Quoted.Media.IsVoice() {
		return Intent{Kind: IntentTranscribe}
	}

	// 2. Control tokens: exact body match only.
	switch body {
	case c.tokens.Status:
		return Intent{Kind: IntentStatus}
	case c.tokens.Enable:
		return Intent{Kind: IntentEnable}
	case c.tokens.Disable:
		return Intent{Kind: IntentDisable}
	}

	// 3. Voice-control tokens: exact body match only.
	switch body {
	case c.tokens.VoiceStatus:
		return Intent{Kind: IntentVoiceStatus}
	case c.tokens.VoiceEnable:
		return Intent{Kind: IntentVoiceEnable}
	case c.tokens.VoiceDisable:
		return Intent{Kind: IntentVoiceDisable}
	}

	// 4. Voice note.
	if msg.Media.IsVoice() {
		return Intent{Kind: IntentVoice}
	}

	// 5. Image with a question.
	if msg.Media.IsImage() && strings.Contains(body, c.tokens.Chat) {
		return Intent{Kind: IntentImageUnderstand}
	}

	// 6. Image generation: prefix match, remainder is the prompt.
	if strings.HasPrefix(body, c.tokens.Draw) {
		prompt := strings.TrimSpace(body[len(c.tokens.Draw):])
		return Intent{Kind: IntentImageGenerate, Prompt: prompt}
	}

	// 7. Chat: trigger token anywhere, or a greeting from the one
	// allow-listed identity.
	if c.ChatTriggered(body) ||
		(containsGreeting(body) && msg.From == c.greetingJID && c.greetingJID != "") {
		return Intent{Kind: IntentChat}
	}

	return Intent{Kind: IntentIgnore}
}

// ChatTriggered reports whether the body carries the chat trigger token.
// The dispatcher also uses this to decide whether a disabled bot should
// answer with the disabled notice or stay silent.
func (c *Classifier) ChatTriggered(body string) bool {
	return strings.Contains(body, c.tokens.Chat)
}

// containsGreeting matches the body against the greeting fragments,
// ignoring case and diacritics.
func containsGreeting(body string) bool {
	folded := foldDiacritics(strings.ToLower(body))
	for _, g := range greetingFragments {
		if strings.Contains(folded, g) {
			return true
		}
	}
	return false
}

// foldDiacritics decomposes the string (NFD) and strips combining marks,
// mapping e.g. "günaydın" to "gunaydın". Dotless ı is a base letter, not
// a mark, so it is mapped to i explicitly.
func foldDiacritics(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		if r == 'ı' {
			r = 'i'
		}
		b.WriteRune(r)
	}
	return b.String()
}
