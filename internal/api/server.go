package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/FlexiView/internal/app"
	"github.com/bryanchriswhite/FlexiView/internal/infrared"
	"github.com/bryanchriswhite/FlexiView/internal/logger"
	"github.com/bryanchriswhite/FlexiView/internal/output"
	"github.com/bryanchriswhite/FlexiView/internal/params"
	"github.com/bryanchriswhite/FlexiView/internal/player"
	"github.com/bryanchriswhite/FlexiView/internal/preset"
	"github.com/bryanchriswhite/FlexiView/internal/source"
)

// Version is reported by /api/health.
const Version = "0.1.0"

// DefaultStatusInterval paces the websocket status stream.
const DefaultStatusInterval = 500 * time.Millisecond

// Options configures the HTTP facade.
type Options struct {
	App *app.App
	// Presets backs the /api/config* routes; nil disables them.
	Presets *preset.Store
	// MediaDir holds uploaded images and videos.
	MediaDir string
	// Preview serves the MJPEG preview feed; nil disables /api/preview.
	Preview        *output.MJPEGOutput
	StatusInterval time.Duration
}

// Server represents the HTTP API server
type Server struct {
	router   *mux.Router
	app      *app.App
	presets  *preset.Store
	mediaDir string
	preview  *output.MJPEGOutput
	interval time.Duration
	upgrader websocket.Upgrader
	log      zerolog.Logger

	httpServer *http.Server
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	if opts.StatusInterval <= 0 {
		opts.StatusInterval = DefaultStatusInterval
	}
	s := &Server{
		router:   mux.NewRouter(),
		app:      opts.App,
		presets:  opts.Presets,
		mediaDir: opts.MediaDir,
		preview:  opts.Preview,
		interval: opts.StatusInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		log: *logger.WithComponent("api"),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Status
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/status/stream", s.handleStatusStream)
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Display parameters and guide
	api.HandleFunc("/display", s.handleGetDisplay).Methods("GET")
	api.HandleFunc("/display", s.handleUpdateDisplay).Methods("POST")
	api.HandleFunc("/display/reset", s.handleResetDisplay).Methods("POST")
	api.HandleFunc("/guide", s.handleGetGuide).Methods("GET")
	api.HandleFunc("/guide", s.handleUpdateGuide).Methods("POST")
	api.HandleFunc("/monitors", s.handleMonitors).Methods("GET")

	// Playback
	api.HandleFunc("/play", s.handlePlay).Methods("POST")
	api.HandleFunc("/play_camera", s.handlePlayCamera).Methods("POST")
	api.HandleFunc("/play_ir", s.handlePlayInfrared).Methods("POST")
	api.HandleFunc("/ir_config", s.handleInfraredConfig).Methods("POST")
	api.HandleFunc("/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/resume", s.handleResume).Methods("POST")
	api.HandleFunc("/stop", s.handleStop).Methods("POST")
	api.HandleFunc("/seek", s.handleSeek).Methods("POST")
	api.HandleFunc("/clear", s.handleClear).Methods("POST")
	api.HandleFunc("/loop", s.handleLoop).Methods("POST")

	// Enumeration and media
	api.HandleFunc("/files", s.handleListFiles).Methods("GET")
	api.HandleFunc("/upload", s.handleUpload).Methods("POST")
	api.HandleFunc("/cameras", s.handleCameras).Methods("GET")
	api.HandleFunc("/ir_cameras", s.handleInfraredCameras).Methods("GET")

	// Presets
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/config", s.handleSaveQuickConfig).Methods("POST")
	api.HandleFunc("/load_config", s.handleLoadQuickConfig).Methods("POST")
	api.HandleFunc("/configs", s.handleListConfigs).Methods("GET")
	api.HandleFunc("/configs/save", s.handleSaveConfig).Methods("POST")
	api.HandleFunc("/configs/load", s.handleLoadConfig).Methods("POST")
	api.HandleFunc("/configs/upload", s.handleUploadConfig).Methods("POST")
	api.HandleFunc("/configs/download/{name}", s.handleDownloadConfig).Methods("GET")
	api.HandleFunc("/configs/{name}", s.handleDeleteConfig).Methods("DELETE")

	// Preview
	api.HandleFunc("/preview/mode", s.handleGetPreviewMode).Methods("GET")
	api.HandleFunc("/preview/mode", s.handlePreviewMode).Methods("POST")
	if s.preview != nil {
		api.HandleFunc("/preview", s.preview.GetHTTPHandler()).Methods("GET")
		api.HandleFunc("/preview.jpg", s.preview.GetSnapshotHandler()).Methods("GET")
		api.HandleFunc("/preview/stats", s.preview.GetStatsHandler()).Methods("GET")
		s.router.HandleFunc("/", s.preview.GetViewerHandler("/api/preview")).Methods("GET")
	}
}

// Handler returns the router wrapped with CORS headers.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// Start serves until Shutdown is called.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info().Str("addr", addr).Msgf("Starting server on http://localhost%s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("Request failed")
	} else {
		s.log.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func message(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, preset.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound
	case errors.Is(err, player.ErrNoSource), errors.Is(err, app.ErrNoInfrared),
		errors.Is(err, infrared.ErrDeviceContention):
		return http.StatusConflict
	case errors.Is(err, errBadRequest),
		errors.Is(err, preset.ErrInvalidName), errors.Is(err, preset.ErrConfig),
		errors.Is(err, params.ErrInvalidScale), errors.Is(err, params.ErrInvalidRotation),
		errors.Is(err, source.ErrUnsupportedFormat), errors.Is(err, source.ErrSeekUnsupported),
		errors.Is(err, source.ErrOpen), errors.Is(err, app.ErrInvalidPreview),
		errors.Is(err, infrared.ErrUnsupported), errors.Is(err, infrared.ErrNoDevices):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Status())
}

// handleStatusStream pushes the status over a websocket until the client goes away.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("WebSocket upgrade error")
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := conn.WriteJSON(s.app.Status()); err != nil {
			s.log.Debug().Err(err).Msg("WebSocket write error")
			return
		}
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}
