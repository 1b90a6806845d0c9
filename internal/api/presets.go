package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/bryanchriswhite/FlexiView/internal/preset"
)

// QuickPreset is the file behind /api/config and /api/load_config.
const QuickPreset = "flexi_view_config.json"

var errNoPresets = fmt.Errorf("%w: preset storage disabled", errBadRequest)

type presetFileRequest struct {
	Filename string          `json:"filename"`
	Config   json.RawMessage `json:"config"`
}

// handleGetConfig returns the live parameters as a preset record.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.app.CurrentPreset())
}

// handleSaveQuickConfig saves the posted record, or the live parameters when
// the body is empty.
func (s *Server) handleSaveQuickConfig(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.savePreset(w, QuickPreset, body)
}

func (s *Server) handleLoadQuickConfig(w http.ResponseWriter, r *http.Request) {
	s.loadPreset(w, QuickPreset)
}

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	if s.presets == nil {
		s.writeError(w, errNoPresets)
		return
	}
	infos, err := s.presets.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	files := make([]string, 0, len(infos))
	for _, info := range infos {
		files = append(files, info.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files, "presets": infos})
}

func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var req presetFileRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.savePreset(w, req.Filename, req.Config)
}

func (s *Server) handleLoadConfig(w http.ResponseWriter, r *http.Request) {
	var req presetFileRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	s.loadPreset(w, req.Filename)
}

func (s *Server) savePreset(w http.ResponseWriter, name string, doc []byte) {
	if s.presets == nil {
		s.writeError(w, errNoPresets)
		return
	}

	p := s.app.CurrentPreset()
	var warnings []string
	if len(doc) > 0 && string(doc) != "null" {
		var err error
		if p, warnings, err = preset.Decode(doc); err != nil {
			s.writeError(w, err)
			return
		}
	}

	saved, err := s.presets.Save(name, p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Config saved",
		"filename": saved,
		"warnings": nonNil(warnings),
	})
}

func (s *Server) loadPreset(w http.ResponseWriter, name string) {
	if s.presets == nil {
		s.writeError(w, errNoPresets)
		return
	}
	p, warnings, err := s.presets.Load(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.app.ApplyPreset(p); err != nil {
		warnings = append(warnings, err.Error())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Config loaded",
		"warnings": nonNil(warnings),
	})
}

func (s *Server) handleUploadConfig(w http.ResponseWriter, r *http.Request) {
	if s.presets == nil {
		s.writeError(w, errNoPresets)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	saved, warnings, err := s.presets.Upload(header.Filename, data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":  "Config uploaded",
		"filename": saved,
		"warnings": nonNil(warnings),
	})
}

func (s *Server) handleDownloadConfig(w http.ResponseWriter, r *http.Request) {
	if s.presets == nil {
		s.writeError(w, errNoPresets)
		return
	}
	name, err := preset.SanitizeName(mux.Vars(r)["name"])
	if err != nil {
		s.writeError(w, err)
		return
	}
	data, err := s.presets.Read(name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	contentType := "application/yaml"
	if preset.FormatFor(name) == preset.FormatJSON {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	if s.presets == nil {
		s.writeError(w, errNoPresets)
		return
	}
	if err := s.presets.Delete(mux.Vars(r)["name"]); err != nil {
		s.writeError(w, err)
		return
	}
	message(w, "Config deleted")
}
