package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/bryanchriswhite/FlexiView/internal/source"
)

// MaxUploadSize bounds media and preset uploads.
const MaxUploadSize = 1 << 30

func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, MaxUploadSize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return data, nil
}

// mediaPath resolves an uploaded file name inside the media directory.
func (s *Server) mediaPath(name string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("%w: invalid file name %q", errBadRequest, name)
	}
	path := filepath.Join(s.mediaDir, base)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("file not found: %s: %w", base, os.ErrNotExist)
		}
		return "", err
	}
	return path, nil
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.mediaDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.writeError(w, err)
		return
	}
	files := []string{}
	for _, e := range entries {
		if e.Type().IsRegular() && source.IsMediaFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// handleUpload stores the multipart "file" field in the media directory.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !source.IsMediaFile(name) {
		s.writeError(w, fmt.Errorf("%s: %w", name, source.ErrUnsupportedFormat))
		return
	}
	if err := os.MkdirAll(s.mediaDir, 0755); err != nil {
		s.writeError(w, err)
		return
	}

	out, err := os.Create(filepath.Join(s.mediaDir, name))
	if err != nil {
		s.writeError(w, err)
		return
	}
	n, err := io.Copy(out, file)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.log.Info().Str("file", name).Int64("bytes", n).Msg("Media uploaded")
	writeJSON(w, http.StatusOK, map[string]string{"filename": name, "message": "Upload successful"})
}
