package promptcfg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoad(t *testing.T) {
	t.Run("missing file yields empty prompt", func(t *testing.T) {
		f := New(filepath.Join(t.TempDir(), "system-prompt.txt"))
		if got := f.Load(); got != "" {
			t.Errorf("expected empty prompt, got %q", got)
		}
	})

	t.Run("file without markers is returned whole", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "system-prompt.txt")
		if err := os.WriteFile(path, []byte("  just a raw prompt\n"), 0o644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
		if got := New(path).Load(); got != "just a raw prompt" {
			t.Errorf("unexpected prompt: %q", got)
		}
	})
}

func TestSaveThenLoad(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "system-prompt.txt"))

	if err := f.Save("X"); err != nil {
		t.Fatalf("saving X: %v", err)
	}
	if err := f.Save("Y"); err != nil {
		t.Fatalf("saving Y: %v", err)
	}

	t.Run("load returns the latest version", func(t *testing.T) {
		if got := f.Load(); got != "Y" {
			t.Errorf("expected %q, got %q", "Y", got)
		}
	})

	t.Run("prior versions stay in the file", func(t *testing.T) {
		data, err := os.ReadFile(f.Path())
		if err != nil {
			t.Fatalf("reading file: %v", err)
		}
		content := string(data)
		if !strings.Contains(content, "X") || !strings.Contains(content, "Y") {
			t.Errorf("expected both versions in file, got:\n%s", content)
		}
		if strings.Count(content, footerMarker) != 2 {
			t.Errorf("expected 2 sections, got %d", strings.Count(content, footerMarker))
		}
	})
}

func TestSaveMultiline(t *testing.T) {
	f := New(filepath.Join(t.TempDir(), "system-prompt.txt"))

	prompt := "You are a helpful assistant.\nAnswer in Turkish."
	if err := f.Save(prompt); err != nil {
		t.Fatalf("saving: %v", err)
	}
	if got := f.Load(); got != prompt {
		t.Errorf("round-trip mismatch:\nwant %q\ngot  %q", prompt, got)
	}
}
