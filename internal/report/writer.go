package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// New creates an empty report with defaults.
func New(sourceDir string, settings Settings) *Report {
	return &Report{
		Version:     SupportedReportVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		SourceDir:   sourceDir,
		Settings:    settings,
		Files:       make(map[string]Entry),
	}
}

// ComputeStats recalculates aggregate statistics from entries.
func (r *Report) ComputeStats() {
	var s Stats
	s.TotalFiles = len(r.Files)
	for _, e := range r.Files {
		s.TotalInputBytes += e.Input.Size
		if e.Input.Truncated {
			s.Truncated++
		}
		if e.Output == nil {
			s.Failed++
			continue
		}
		s.Repaired++
		s.TotalOutputBytes += e.Output.Size
	}
	r.Stats = s
}

// WriteJSON serializes the report to a JSON file with stable ordering.
func WriteJSON(r *Report, path string) error {
	r.ComputeStats()

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// ReadJSON loads a report and rejects unknown schema versions.
func ReadJSON(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	if r.Version != SupportedReportVersion {
		return nil, fmt.Errorf("unsupported report version: %d", r.Version)
	}
	return &r, nil
}

// BaseDir is the directory output paths are relative to: the output
// directory, or the source directory for in-place runs.
func (r *Report) BaseDir() string {
	if r.OutputDir != "" {
		return r.OutputDir
	}
	return r.SourceDir
}

// Outputs maps the absolute path of every written output to the key of
// the entry that produced it.
func (r *Report) Outputs() map[string]string {
	m := make(map[string]string, len(r.Files))
	for key, e := range r.Files {
		if e.Output == nil {
			continue
		}
		p := filepath.FromSlash(e.Output.Path)
		if !filepath.IsAbs(p) {
			p = filepath.Join(r.BaseDir(), p)
		}
		m[filepath.Clean(p)] = key
	}
	return m
}
