package report

import (
	"os"
	"path/filepath"
	"testing"
)

func sampleReport() *Report {
	r := New("/photos", Settings{Profile: "classic", Quality: 90, Subsampling: "444"})
	r.BuildInfo = &BuildInfo{Workers: 4, Duration: 12}
	r.Files["a.png"] = Entry{
		Input:  InputInfo{Path: "a.png", Format: "png", Size: 1000, Truncated: true},
		Output: &OutputInfo{Path: "a.jpg", Width: 10, Height: 10, Size: 400, Hash: "abcd1234abcd1234"},
	}
	r.Files["b.png"] = Entry{
		Input: InputInfo{Path: "b.png", Format: "png", Size: 50},
		Stage: "decode",
		Error: "pngread: invalid format: missing IHDR",
	}
	return r
}

func TestComputeStats(t *testing.T) {
	r := sampleReport()
	r.ComputeStats()

	want := Stats{
		TotalFiles:       2,
		Repaired:         1,
		Truncated:        1,
		Failed:           1,
		TotalInputBytes:  1050,
		TotalOutputBytes: 400,
	}
	if r.Stats != want {
		t.Errorf("stats: got %+v, want %+v", r.Stats, want)
	}
}

func TestWriteReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	if err := WriteJSON(sampleReport(), path); err != nil {
		t.Fatalf("write: %v", err)
	}

	r, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if r.Settings.Quality != 90 || r.Settings.Subsampling != "444" {
		t.Errorf("settings: got %+v", r.Settings)
	}
	if r.BuildInfo == nil || r.BuildInfo.Workers != 4 {
		t.Error("build_info not preserved")
	}
	a, ok := r.Files["a.png"]
	if !ok || a.Output == nil || a.Output.Hash != "abcd1234abcd1234" {
		t.Fatalf("entry a.png: got %+v", a)
	}
	if b := r.Files["b.png"]; b.Output != nil || b.Stage != "decode" {
		t.Errorf("entry b.png: got %+v", b)
	}
	if r.Stats.Repaired != 1 || r.Stats.Failed != 1 {
		t.Errorf("stats not written: %+v", r.Stats)
	}
}

func TestReadJSON_Rejects(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	os.WriteFile(bad, []byte("{not json"), 0o644)
	if _, err := ReadJSON(bad); err == nil {
		t.Error("expected parse error")
	}

	future := filepath.Join(dir, "future.json")
	os.WriteFile(future, []byte(`{"version": 7, "files": {}}`), 0o644)
	if _, err := ReadJSON(future); err == nil {
		t.Error("expected version error")
	}

	if _, err := ReadJSON(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected read error")
	}
}

func TestReadJSON_IgnoresUnknownFields(t *testing.T) {
	raw := `{
		"version": 1,
		"generated_at": "2026-01-01T00:00:00Z",
		"source_dir": "/in",
		"future_field": "ignored",
		"settings": { "profile": "web", "quality": 82, "subsampling": "420", "new_knob": true },
		"files": {},
		"stats": { "total_files": 0, "repaired": 0, "truncated": 0, "failed": 0, "total_input_bytes": 0, "total_output_bytes": 0 }
	}`
	path := filepath.Join(t.TempDir(), "r.json")
	os.WriteFile(path, []byte(raw), 0o644)

	r, err := ReadJSON(path)
	if err != nil {
		t.Fatalf("read with unknown fields: %v", err)
	}
	if r.Settings.Profile != "web" {
		t.Errorf("profile: got %q", r.Settings.Profile)
	}
}
