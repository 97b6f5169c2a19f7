package trainer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestName — файл-паспорт артефакта внутри output_dir.
const ManifestName = "goose-artifact.json"

// Manifest связывает сохранённый артефакт с тем, как он получен.
// Smoke-тест читает его, чтобы узнать имя модели для генерации.
type Manifest struct {
	Backend    string    `json:"backend"`
	BaseModel  string    `json:"base_model"`
	ModelRef   string    `json:"model_ref"`
	OutputDir  string    `json:"output_dir"`
	Examples   int       `json:"examples"`
	TotalSteps int       `json:"total_steps"`
	Precision  Precision `json:"precision"`
	GGUFPath   string    `json:"gguf_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// WriteManifest записывает манифест в dir.
func WriteManifest(dir string, m Manifest) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest читает манифест из dir.
func ReadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no trained artifact in %s (missing %s)", dir, ManifestName)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &m, nil
}
