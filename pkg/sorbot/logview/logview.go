// Package logview serves the application log over HTTP: the full file, a
// live Server-Sent Events stream, and a small viewer page. Log lines reach
// the stream through a Writer placed in the slog output path.
package logview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// Config holds log viewer configuration.
type Config struct {
	// Enabled starts the HTTP server.
	Enabled bool `yaml:"enabled"`

	// Addr is the listen address.
	Addr string `yaml:"addr"`

	// TailLines is how many trailing lines a new live viewer receives.
	TailLines int `yaml:"tail_lines"`
}

// DefaultConfig returns a Config with sensible defaults. The viewer is
// off unless enabled explicitly.
func DefaultConfig() Config {
	return Config{
		Enabled:   false,
		Addr:      ":3000",
		TailLines: 100,
	}
}

// ---------- Hub ----------

// Hub fans log lines out to live SSE subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: map[chan string]struct{}{}}
}

// Subscribe registers a live subscriber. The returned cancel function
// removes it and closes the channel.
func (h *Hub) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 64)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Publish delivers a line to all subscribers. Slow subscribers are
// skipped, not waited for.
func (h *Hub) Publish(line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- line:
		default:
		}
	}
}

// ---------- Writer ----------

// Writer is an io.Writer that appends to the log file and publishes each
// complete line to the hub. Place it in the slog handler's output path.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	hub  *Hub
	buf  bytes.Buffer
}

// NewWriter opens (or creates) the log file in append mode.
func NewWriter(path string, hub *Hub) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return &Writer{file: f, hub: hub}, nil
}

// Write appends to the file and publishes completed lines.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}

	w.buf.Write(p[:n])
	for {
		line, rest, found := bytes.Cut(w.buf.Bytes(), []byte("\n"))
		if !found {
			break
		}
		w.hub.Publish(string(line))
		remaining := make([]byte, len(rest))
		copy(remaining, rest)
		w.buf.Reset()
		w.buf.Write(remaining)
	}
	return n, nil
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ---------- Server ----------

// Server is the log viewer HTTP server.
type Server struct {
	cfg     Config
	logPath string
	hub     *Hub
	logger  *slog.Logger
	srv     *http.Server
}

// NewServer creates the viewer over the given log file and hub.
func NewServer(cfg Config, logPath string, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TailLines <= 0 {
		cfg.TailLines = 100
	}
	return &Server{
		cfg:     cfg,
		logPath: logPath,
		hub:     hub,
		logger:  logger.With("component", "logview"),
	}
}

// Start runs the HTTP server in the background.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/logs", s.handleLogs)
	mux.HandleFunc("/logs/live", s.handleLive)

	s.srv = &http.Server{Addr: s.cfg.Addr, Handler: mux}

	go func() {
		s.logger.Info("log viewer listening", "addr", s.cfg.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("log viewer server failed", "error", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

// handleIndex serves the viewer page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, viewerHTML)
}

// handleLogs streams the whole log file as plain text.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	f, err := os.Open(s.logPath)
	if err != nil {
		http.Error(w, "Log file not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.Copy(w, f)
}

// handleLive streams log lines as SSE events. The first event carries the
// trailing lines of the file so a viewer starts with context.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeSSE(w, flusher, tailLines(s.logPath, s.cfg.TailLines))

	lines, cancel := s.hub.Subscribe()
	defer cancel()

	heartbeat := time.NewTicker(30 * time.Second)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			writeSSE(w, flusher, line)
		case <-heartbeat.C:
			// Comment line keeps proxies from closing the stream.
			_, _ = fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		}
	}
}

// writeSSE writes one SSE data event carrying a log payload.
func writeSSE(w http.ResponseWriter, flusher http.Flusher, log string) {
	payload, _ := json.Marshal(map[string]string{"log": log})
	_, _ = fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// tailLines returns the last n lines of the file, empty string on error.
func tailLines(path string, n int) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	lines := strings.Split(string(data), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

const viewerHTML = `<!DOCTYPE html>
<html>
<head>
<title>Live Logs</title>
<style>
body { background: #1e1e1e; color: #ddd; font-family: monospace; padding: 20px; }
#logs { white-space: pre-wrap; }
</style>
</head>
<body>
<div id="logs"></div>
<script>
const logsDiv = document.getElementById('logs');
const eventSource = new EventSource('/logs/live');
eventSource.onmessage = (event) => {
  const data = JSON.parse(event.data);
  logsDiv.textContent += data.log + '\n';
  window.scrollTo(0, document.body.scrollHeight);
};
eventSource.onerror = () => {
  console.error('SSE error, reconnecting...');
};
</script>
</body>
</html>
`
