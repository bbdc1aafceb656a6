package bot

import "sync"

// GateKind identifies an independently toggled subsystem.
type GateKind int

const (
	// GateBot gates the whole bot.
	GateBot GateKind = iota

	// GateVoice gates voice message processing.
	GateVoice
)

// Gate holds the process-wide availability flags. Both default to enabled
// and reset on restart; mutation is restricted to the admin identity and
// fails silently for anyone else. The gate is passed into the Dispatcher
// rather than living in package state so tests can inject their own.
type Gate struct {
	mu    sync.Mutex
	admin string
	bot   bool
	voice bool
}

// NewGate creates a Gate with both subsystems enabled.
func NewGate(adminJID string) *Gate {
	return &Gate{admin: adminJID, bot: true, voice: true}
}

// IsAdmin reports whether the identity is the admin.
func (g *Gate) IsAdmin(id string) bool {
	return id != "" && id == g.admin
}

// Enabled reports whether the subsystem is enabled. Readable by anyone.
func (g *Gate) Enabled(kind GateKind) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if kind == GateVoice {
		return g.voice
	}
	return g.bot
}

// SetEnabled toggles a subsystem. Non-admin requesters cause no state
// change and no error: whether the command would have worked is not
// observable from outside.
func (g *Gate) SetEnabled(kind GateKind, on bool, requester string) {
	if !g.IsAdmin(requester) {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if kind == GateVoice {
		g.voice = on
		return
	}
	g.bot = on
}
