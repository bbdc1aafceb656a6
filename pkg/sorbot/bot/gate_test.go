package bot

import "testing"

func TestGate(t *testing.T) {
	t.Run("both subsystems start enabled", func(t *testing.T) {
		g := NewGate(testAdmin)
		if !g.Enabled(GateBot) || !g.Enabled(GateVoice) {
			t.Error("expected both gates enabled at start")
		}
	})

	t.Run("admin toggles apply", func(t *testing.T) {
		g := NewGate(testAdmin)
		g.SetEnabled(GateBot, false, testAdmin)
		if g.Enabled(GateBot) {
			t.Error("expected bot gate disabled")
		}
		if !g.Enabled(GateVoice) {
			t.Error("expected voice gate untouched")
		}

		g.SetEnabled(GateVoice, false, testAdmin)
		g.SetEnabled(GateBot, true, testAdmin)
		if !g.Enabled(GateBot) || g.Enabled(GateVoice) {
			t.Error("expected independent gate states")
		}
	})

	t.Run("non-admin toggles are no-ops", func(t *testing.T) {
		g := NewGate(testAdmin)
		g.SetEnabled(GateBot, false, testUser)
		g.SetEnabled(GateVoice, false, "")
		if !g.Enabled(GateBot) || !g.Enabled(GateVoice) {
			t.Error("expected non-admin toggles to change nothing")
		}
	})

	t.Run("IsAdmin requires a non-empty exact match", func(t *testing.T) {
		g := NewGate(testAdmin)
		if !g.IsAdmin(testAdmin) {
			t.Error("expected admin to match")
		}
		if g.IsAdmin(testUser) {
			t.Error("expected other identity to not match")
		}
		if g.IsAdmin("") {
			t.Error("expected empty identity to never match")
		}
	})

	t.Run("empty admin config means nobody is admin", func(t *testing.T) {
		g := NewGate("")
		if g.IsAdmin("") || g.IsAdmin(testUser) {
			t.Error("expected no admin when unconfigured")
		}
	})
}
