package save

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const (
	overlayConfigDir    = "chatoverlay"
	preferencesFileName = "preferences.yaml"
	fontSizeKey         = "chatFontSize"

	DefaultFontSize = 14
)

// DefaultConfigDir is the per user directory preferences are stored in.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, overlayConfigDir)
}

// PreferenceStore persists UI preferences as plain string values in a yaml file,
// the overlay equivalent of the browsers local storage.
type PreferenceStore struct {
	fs     afero.Fs
	path   string
	logger zerolog.Logger
}

func NewPreferenceStore(logger zerolog.Logger, fs afero.Fs, dir string) *PreferenceStore {
	return &PreferenceStore{
		fs:     fs,
		path:   filepath.Join(dir, preferencesFileName),
		logger: logger.With().Str("component", "preferences").Logger(),
	}
}

// LoadFontSize returns the stored font size in pixels, or DefaultFontSize if none is stored
// or the stored value is not a number.
func (p *PreferenceStore) LoadFontSize() int {
	values, err := p.load()
	if err != nil {
		p.logger.Warn().Err(err).Str("path", p.path).Msg("could not read preferences, using defaults")
		return DefaultFontSize
	}

	raw, ok := values[fontSizeKey]
	if !ok {
		return DefaultFontSize
	}

	size, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		p.logger.Warn().Str("value", raw).Msg("stored font size is not a number, using default")
		return DefaultFontSize
	}

	return size
}

func (p *PreferenceStore) SaveFontSize(size int) error {
	values, err := p.load()
	if err != nil {
		// unreadable file gets replaced
		values = map[string]string{}
	}

	values[fontSizeKey] = strconv.Itoa(size)

	return p.store(values)
}

func (p *PreferenceStore) load() (map[string]string, error) {
	data, err := afero.ReadFile(p.fs, p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, err
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, err
	}

	if values == nil {
		values = map[string]string{}
	}

	return values, nil
}

func (p *PreferenceStore) store(values map[string]string) error {
	if err := p.fs.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return err
	}

	data, err := yaml.Marshal(values)
	if err != nil {
		return err
	}

	return afero.WriteFile(p.fs, p.path, data, 0o600)
}
