package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Settings is the user-configurable state: API keys, preferred provider and
// generation defaults. It is loaded once at startup and saved only from the
// settings-save action; nothing reads or writes the backing file from other
// call sites.
type Settings struct {
	GeminiAPIKey     string   `json:"geminiApiKey"`
	ModelScopeAPIKey string   `json:"modelscopeApiKey"`
	Provider         Provider `json:"provider"`
	AspectRatio      string   `json:"aspectRatio"`
	Quality          string   `json:"quality"`

	path string
}

func defaultSettings(path string) *Settings {
	return &Settings{
		Provider:    ProviderGemini,
		AspectRatio: "1:1",
		Quality:     "1K",
		path:        path,
	}
}

// LoadSettings reads settings from path. A missing file yields defaults, not
// an error; a present-but-corrupt file is an error so a bad save is noticed
// rather than silently reset.
func LoadSettings(path string) (*Settings, error) {
	settings := defaultSettings(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return nil, fmt.Errorf("settings: read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("settings: parse %s: %w", path, err)
	}
	settings.path = path
	return settings, nil
}

// Save writes the settings back to the file they were loaded from. Keys are
// secrets, so the file is not group/world readable.
func (s *Settings) Save() error {
	if s.path == "" {
		return errors.New("settings: no backing file configured")
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("settings: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("settings: ensure directory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("settings: write %s: %w", s.path, err)
	}
	return nil
}
