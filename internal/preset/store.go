package preset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/FlexiView/internal/logger"
)

// DefaultExt is appended to names without a recognized extension.
const DefaultExt = ".yaml"

var (
	ErrInvalidName = errors.New("invalid preset name")
	ErrNotFound    = errors.New("preset not found")
)

var extensions = map[string]bool{".yaml": true, ".yml": true, ".json": true}

// Info describes a stored preset file.
type Info struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// Store keeps presets as files in a single directory.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore opens dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create preset directory: %w", err)
	}
	return &Store{dir: dir, log: *logger.WithComponent("preset")}, nil
}

func (s *Store) Dir() string { return s.dir }

// SanitizeName reduces name to a safe file name inside the store: directory
// components are dropped, characters outside [A-Za-z0-9._-] become '_' and
// DefaultExt is added when the extension is not .yaml, .yml or .json.
func SanitizeName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" || base == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	clean := strings.TrimLeft(b.String(), ".")
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if !extensions[strings.ToLower(filepath.Ext(clean))] {
		clean += DefaultExt
	}
	return clean, nil
}

func (s *Store) path(name string) (string, string, error) {
	clean, err := SanitizeName(name)
	if err != nil {
		return "", "", err
	}
	return clean, filepath.Join(s.dir, clean), nil
}

// List returns the stored presets sorted by name.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset directory: %w", err)
	}

	infos := []Info{}
	for _, e := range entries {
		if e.IsDir() || !extensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{Name: e.Name(), Size: fi.Size(), Modified: fi.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Load reads and decodes a stored preset. Skipped fields are logged and returned.
func (s *Store) Load(name string) (Preset, []string, error) {
	data, err := s.Read(name)
	if err != nil {
		return Preset{}, nil, err
	}
	p, warnings, err := Decode(data)
	if err != nil {
		return Preset{}, nil, fmt.Errorf("preset %s: %w", name, err)
	}
	for _, w := range warnings {
		s.log.Warn().Str("preset", name).Msg(w)
	}
	return p, warnings, nil
}

// Read returns the raw bytes of a stored preset.
func (s *Store) Read(name string) ([]byte, error) {
	clean, path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return nil, fmt.Errorf("failed to read preset %s: %w", clean, err)
	}
	return data, nil
}

// Save encodes p into name, choosing the format from the extension. It
// returns the sanitized name actually written.
func (s *Store) Save(name string, p Preset) (string, error) {
	clean, path, err := s.path(name)
	if err != nil {
		return "", err
	}
	data, err := Encode(p, FormatFor(clean))
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write preset %s: %w", clean, err)
	}
	s.log.Info().Str("preset", clean).Msg("Preset saved")
	return clean, nil
}

// Upload stores a document as-is after checking that it decodes.
func (s *Store) Upload(name string, data []byte) (string, []string, error) {
	clean, path, err := s.path(name)
	if err != nil {
		return "", nil, err
	}
	_, warnings, err := Decode(data)
	if err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", nil, fmt.Errorf("failed to write preset %s: %w", clean, err)
	}
	s.log.Info().Str("preset", clean).Int("warnings", len(warnings)).Msg("Preset uploaded")
	return clean, warnings, nil
}

// Delete removes a stored preset.
func (s *Store) Delete(name string) error {
	clean, path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, clean)
		}
		return fmt.Errorf("failed to delete preset %s: %w", clean, err)
	}
	s.log.Info().Str("preset", clean).Msg("Preset deleted")
	return nil
}
