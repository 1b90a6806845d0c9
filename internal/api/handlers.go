package api

import (
	"fmt"
	"net/http"

	"github.com/bryanchriswhite/FlexiView/internal/infrared"
	"github.com/bryanchriswhite/FlexiView/internal/params"
	"github.com/bryanchriswhite/FlexiView/internal/player"
	"github.com/bryanchriswhite/FlexiView/internal/preset"
)

// Display parameters

func (s *Server) handleGetDisplay(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Status().Display)
}

// handleUpdateDisplay accepts any subset of the parameter record, plus
// "enabled". Fields are decoded tolerantly; skipped ones are reported back.
func (s *Server) handleUpdateDisplay(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p, warnings, err := preset.Decode(body)
	if err != nil {
		s.writeError(w, err)
		return
	}
	p.Guide = nil
	if err := s.app.ApplyPreset(p); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Display updated",
		"warnings": nonNil(warnings),
	})
}

func (s *Server) handleResetDisplay(w http.ResponseWriter, r *http.Request) {
	s.app.ResetTransform()
	message(w, "Display reset")
}

type guideRequest struct {
	Enabled *bool `json:"enabled"`
	X       *int  `json:"x"`
	Y       *int  `json:"y"`
	Width   *int  `json:"width"`
	Height  *int  `json:"height"`
}

func (s *Server) handleGetGuide(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Guide())
}

func (s *Server) handleUpdateGuide(w http.ResponseWriter, r *http.Request) {
	var req guideRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	g := s.app.UpdateGuide(func(g *params.GuideRectangle) {
		if req.Enabled != nil {
			g.Enabled = *req.Enabled
		}
		if req.X != nil {
			g.X = *req.X
		}
		if req.Y != nil {
			g.Y = *req.Y
		}
		if req.Width != nil {
			g.Width = *req.Width
		}
		if req.Height != nil {
			g.Height = *req.Height
		}
	})
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleMonitors(w http.ResponseWriter, r *http.Request) {
	monitors, err := s.app.Monitors()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"monitors": monitors})
}

// Playback

type playRequest struct {
	Filename string `json:"filename"`
	Loop     *bool  `json:"loop"`
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	var req playRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	path, err := s.mediaPath(req.Filename)
	if err != nil {
		s.writeError(w, err)
		return
	}
	loop := true
	if req.Loop != nil {
		loop = *req.Loop
	}
	if err := s.app.LoadFile(path, loop); err != nil {
		s.writeError(w, err)
		return
	}
	message(w, fmt.Sprintf("Playing %s", req.Filename))
}

func (s *Server) handlePlayCamera(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CameraID int `json:"camera_id"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.app.LoadCamera(req.CameraID); err != nil {
		s.writeError(w, err)
		return
	}
	message(w, fmt.Sprintf("Playing camera %d", req.CameraID))
}

type infraredRequest struct {
	CameraIndex  int    `json:"camera_index"`
	Exclusive    *bool  `json:"exclusive"`
	FilterMode   string `json:"filter_mode"`
	MappingMode  string `json:"mapping_mode"`
	CycleFilter  bool   `json:"cycle_filter"`
	CycleMapping bool   `json:"cycle_mapping"`
}

func (req infraredRequest) modes() (infrared.FrameFilter, infrared.ColorMapping, error) {
	var (
		f   infrared.FrameFilter
		m   infrared.ColorMapping
		err error
	)
	if req.FilterMode != "" {
		if f, err = infrared.ParseFilter(req.FilterMode); err != nil {
			return f, m, fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	if req.MappingMode != "" {
		if m, err = infrared.ParseMapping(req.MappingMode); err != nil {
			return f, m, fmt.Errorf("%w: %v", errBadRequest, err)
		}
	}
	return f, m, nil
}

func (s *Server) handlePlayInfrared(w http.ResponseWriter, r *http.Request) {
	if !s.app.InfraredAvailable() {
		s.writeError(w, infrared.ErrUnsupported)
		return
	}
	var req infraredRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	f, m, err := req.modes()
	if err != nil {
		s.writeError(w, err)
		return
	}
	opts := player.InfraredOptions{
		Index:     req.CameraIndex,
		Exclusive: req.Exclusive == nil || *req.Exclusive,
		Filter:    f,
		Mapping:   m,
	}
	if err := s.app.LoadInfrared(r.Context(), opts); err != nil {
		s.writeError(w, err)
		return
	}
	message(w, fmt.Sprintf("Playing infrared camera %d", req.CameraIndex))
}

func (s *Server) handleInfraredConfig(w http.ResponseWriter, r *http.Request) {
	var req infraredRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	f, m, err := req.modes()
	if err != nil {
		s.writeError(w, err)
		return
	}
	ir, ok := s.app.Session().Infrared()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]string{"message": "IR controller not active"})
		return
	}
	switch {
	case req.CycleFilter:
		ir.CycleFilter()
	case req.FilterMode != "":
		ir.SetFilter(f)
	}
	switch {
	case req.CycleMapping:
		ir.CycleMapping()
	case req.MappingMode != "":
		ir.SetMapping(m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "IR config updated", "state": ir.State()})
}

// handlePause toggles between playing and paused.
func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	s.app.TogglePause()
	st := s.app.Status().Session
	writeJSON(w, http.StatusOK, map[string]any{"message": "Toggled pause", "paused": st.Paused})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	s.app.Resume()
	message(w, "Resumed")
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.app.Stop()
	message(w, "Stopped")
}

func (s *Server) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FrameIndex int `json:"frame_index"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.app.Seek(req.FrameIndex); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Seeked", "current_frame": s.app.Status().Session.CurrentFrame})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.app.Clear()
	message(w, "Display cleared")
}

func (s *Server) handleLoop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Loop bool `json:"loop"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.app.SetLoop(req.Loop)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Loop updated", "loop": req.Loop})
}

// Enumeration

func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	type camera struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	cameras := []camera{}
	for _, id := range s.app.Cameras() {
		cameras = append(cameras, camera{ID: id, Name: fmt.Sprintf("Camera %d", id)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"cameras": cameras})
}

func (s *Server) handleInfraredCameras(w http.ResponseWriter, r *http.Request) {
	if !s.app.InfraredAvailable() {
		writeJSON(w, http.StatusOK, map[string]any{"available": false, "cameras": []infrared.DeviceInfo{}})
		return
	}
	devices, err := s.app.InfraredDevices(r.Context())
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to enumerate IR cameras")
		devices = nil
	}
	writeJSON(w, http.StatusOK, map[string]any{"available": true, "cameras": nonNil(devices)})
}

// Preview

type previewModeResponse struct {
	Processed bool `json:"processed"`
	Width     int  `json:"width"`
	Height    int  `json:"height"`
}

func (s *Server) handleGetPreviewMode(w http.ResponseWriter, r *http.Request) {
	st := s.app.Status().Preview
	writeJSON(w, http.StatusOK, previewModeResponse{Processed: st.Processed, Width: st.Width, Height: st.Height})
}

func (s *Server) handlePreviewMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Processed *bool `json:"processed"`
		Width     *int  `json:"width"`
		Height    *int  `json:"height"`
	}
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Width != nil || req.Height != nil {
		size := s.app.Preview().Size()
		if req.Width != nil {
			size.X = *req.Width
		}
		if req.Height != nil {
			size.Y = *req.Height
		}
		if err := s.app.SetPreviewSize(size.X, size.Y); err != nil {
			s.writeError(w, err)
			return
		}
	}
	if req.Processed != nil {
		s.app.SetPreviewProcessed(*req.Processed)
	}
	s.handleGetPreviewMode(w, r)
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
