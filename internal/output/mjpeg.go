package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bryanchriswhite/FlexiView/internal/logger"
)

const defaultQuality = 80

// MJPEGOutput streams frames as Motion JPEG over HTTP and keeps the latest
// encoded frame for single-image requests.
type MJPEGOutput struct {
	config  Config
	running bool
	mu      sync.RWMutex

	// Latest encoded frame
	frameMu    sync.RWMutex
	lastJPEG   []byte
	lastUpdate time.Time

	// Connected clients
	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}

	// Stats
	frameCount atomic.Uint64
	startTime  time.Time
}

// MJPEGStats is reported by the stats handler.
type MJPEGStats struct {
	Running    bool      `json:"running"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	TargetFPS  int       `json:"target_fps"`
	ActualFPS  float64   `json:"actual_fps"`
	Frames     uint64    `json:"frames"`
	Clients    int       `json:"clients"`
	LastUpdate time.Time `json:"last_update"`
}

// NewMJPEGOutput creates a new MJPEG stream output
func NewMJPEGOutput(config Config) *MJPEGOutput {
	if config.Quality <= 0 || config.Quality > 100 {
		config.Quality = defaultQuality
	}
	return &MJPEGOutput{
		config:  config,
		clients: make(map[chan []byte]struct{}),
	}
}

// Start initializes the MJPEG output
// Note: The HTTP handler is registered separately via GetHTTPHandler()
func (m *MJPEGOutput) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("MJPEG output already running")
	}

	m.running = true
	m.startTime = time.Now()
	m.frameCount.Store(0)

	logger.WithComponent("preview").Info().
		Int("width", m.config.Width).
		Int("height", m.config.Height).
		Int("fps", m.config.FPS).
		Msg("MJPEG output started")
	return nil
}

// Stop cleanly shuts down the output
func (m *MJPEGOutput) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.running = false

	// Close all client connections
	m.clientsMu.Lock()
	for ch := range m.clients {
		close(ch)
	}
	m.clients = make(map[chan []byte]struct{})
	m.clientsMu.Unlock()

	logger.WithComponent("preview").Info().
		Uint64("frames", m.frameCount.Load()).
		Msg("MJPEG output stopped")
	return nil
}

// WriteFrame encodes frame once and fans it out to all clients
func (m *MJPEGOutput) WriteFrame(frame *image.RGBA) error {
	if !m.IsRunning() {
		return fmt.Errorf("MJPEG output not running")
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, frame, &jpeg.Options{Quality: m.config.Quality}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	jpegData := buf.Bytes()

	m.frameMu.Lock()
	m.lastJPEG = jpegData
	m.lastUpdate = time.Now()
	m.frameMu.Unlock()

	m.frameCount.Add(1)

	// Broadcast to all clients
	m.clientsMu.RLock()
	for ch := range m.clients {
		select {
		case ch <- jpegData:
		default:
			// Client is slow, skip this frame
		}
	}
	m.clientsMu.RUnlock()

	return nil
}

// Name returns the output type name
func (m *MJPEGOutput) Name() string {
	return "MJPEG HTTP Stream"
}

// IsRunning returns true if the output is active
func (m *MJPEGOutput) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Snapshot returns the most recent JPEG, if any frame was written.
func (m *MJPEGOutput) Snapshot() ([]byte, bool) {
	m.frameMu.RLock()
	defer m.frameMu.RUnlock()
	return m.lastJPEG, m.lastJPEG != nil
}

func (m *MJPEGOutput) Clients() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

func (m *MJPEGOutput) Stats() MJPEGStats {
	m.mu.RLock()
	running, start := m.running, m.startTime
	m.mu.RUnlock()
	m.frameMu.RLock()
	last := m.lastUpdate
	m.frameMu.RUnlock()

	frames := m.frameCount.Load()
	var fps float64
	if running && !start.IsZero() {
		if elapsed := time.Since(start).Seconds(); elapsed > 0 {
			fps = float64(frames) / elapsed
		}
	}
	return MJPEGStats{
		Running:    running,
		Width:      m.config.Width,
		Height:     m.config.Height,
		TargetFPS:  m.config.FPS,
		ActualFPS:  fps,
		Frames:     frames,
		Clients:    m.Clients(),
		LastUpdate: last,
	}
}

// GetHTTPHandler returns an http.Handler for the MJPEG stream
func (m *MJPEGOutput) GetHTTPHandler() http.HandlerFunc {
	log := logger.WithComponent("preview")
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		w.Header().Set("Connection", "close")

		frameChan := make(chan []byte, 2) // Buffer 2 frames

		m.clientsMu.Lock()
		m.clients[frameChan] = struct{}{}
		clientCount := len(m.clients)
		m.clientsMu.Unlock()

		log.Info().Int("clients", clientCount).Msg("Preview client connected")

		defer func() {
			m.clientsMu.Lock()
			delete(m.clients, frameChan)
			clientCount := len(m.clients)
			m.clientsMu.Unlock()
			log.Info().Int("clients", clientCount).Msg("Preview client disconnected")
		}()

		// Prime new clients with the latest frame.
		if snap, ok := m.Snapshot(); ok {
			if writePart(w, snap) != nil {
				return
			}
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case jpegData, ok := <-frameChan:
				if !ok {
					return
				}
				if writePart(w, jpegData) != nil {
					return
				}
			}
		}
	}
}

func writePart(w http.ResponseWriter, jpegData []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpegData)); err != nil {
		return err
	}
	if _, err := w.Write(jpegData); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

// GetSnapshotHandler serves the latest frame as a single JPEG.
func (m *MJPEGOutput) GetSnapshotHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, ok := m.Snapshot()
		if !ok {
			http.Error(w, "no preview frame yet", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Write(snap)
	}
}

// GetStatsHandler returns stream statistics as JSON.
func (m *MJPEGOutput) GetStatsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.Stats())
	}
}

// GetViewerHandler returns a bare page showing the stream full-window.
func (m *MJPEGOutput) GetViewerHandler(streamPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>FlexiView Preview</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body { background: #000; display: flex; justify-content: center; align-items: center; min-height: 100vh; }
        img { width: 100vw; height: 100vh; object-fit: contain; display: block; }
    </style>
</head>
<body>
    <img src="%s" alt="FlexiView Preview">
</body>
</html>`, streamPath)
	}
}
