package pipeline

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seenimoa/panelstudy/internal/infra"
)

// Stage statuses recorded in the manifest.
const (
	StatusRan      = "ran"
	StatusSkipped  = "skipped"
	StatusDisabled = "disabled"
	StatusFailed   = "failed"
)

// Manifest records one pipeline run.
type Manifest struct {
	RunID      string        `yaml:"run_id"`
	StartedAt  time.Time     `yaml:"started_at"`
	FinishedAt time.Time     `yaml:"finished_at"`
	From       string        `yaml:"from"`
	To         string        `yaml:"to"`
	Stages     []StageResult `yaml:"stages"`
}

// StageResult is the outcome of one stage.
type StageResult struct {
	Name       string      `yaml:"name"`
	Status     string      `yaml:"status"`
	Output     string      `yaml:"output"`
	Rows       int         `yaml:"rows,omitempty"`
	DurationMS int64       `yaml:"duration_ms,omitempty"`
	Fetch      *FetchStats `yaml:"fetch,omitempty"`
	Error      string      `yaml:"error,omitempty"`
}

// Result returns the entry for a stage, or false.
func (m *Manifest) Result(name string) (StageResult, bool) {
	for _, s := range m.Stages {
		if s.Name == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// Save writes the manifest as YAML.
func (m *Manifest) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return infra.WriteFileAtomic(path, data)
}

// LoadManifest reads a manifest written by Save.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %s: %w", path, err)
	}
	return &m, nil
}
