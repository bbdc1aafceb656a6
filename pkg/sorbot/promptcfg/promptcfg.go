// Package promptcfg manages the system prompt file. The file is
// append-only: every save adds a new timestamped section and the active
// prompt is always the most recently appended one. Older sections stay in
// the file as an audit trail.
package promptcfg

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	headerMarker = "=== System Prompt"
	footerMarker = "=== End of Prompt ==="
)

// File is a handle to the on-disk prompt resource.
type File struct {
	path string
}

// New returns a handle for the prompt file at path. The file is created
// lazily on the first Save.
func New(path string) *File {
	return &File{path: path}
}

// Path returns the underlying file path.
func (f *File) Path() string { return f.path }

// Load returns the most recently appended prompt body, trimmed. A missing
// or unreadable file yields an empty prompt; a file without section
// markers is returned whole so hand-written prompt files keep working.
func (f *File) Load() string {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return ""
	}
	content := string(data)

	sections := strings.Split(content, headerMarker)
	if len(sections) < 2 {
		return strings.TrimSpace(content)
	}
	last := sections[len(sections)-1]

	// Drop the timestamp line, keep everything up to the footer.
	if idx := strings.Index(last, "\n"); idx >= 0 {
		last = last[idx+1:]
	}
	body := strings.SplitN(last, footerMarker, 2)[0]

	body = strings.TrimSpace(body)
	if body == "" {
		return strings.TrimSpace(content)
	}
	return body
}

// Save appends a new timestamped prompt section. Prior sections are never
// touched.
func (f *File) Save(prompt string) error {
	section := fmt.Sprintf("\n\n%s (%s) ===\n%s\n%s\n",
		headerMarker, time.Now().Format(time.RFC3339), prompt, footerMarker)

	fh, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening prompt file: %w", err)
	}
	defer fh.Close()

	if _, err := fh.WriteString(section); err != nil {
		return fmt.Errorf("appending prompt: %w", err)
	}
	return nil
}
