package hasher

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func TestContentHash_Length(t *testing.T) {
	data := []byte("pngrepair")
	if got := ContentHash(data, 0); len(got) != 16 {
		t.Errorf("full hash length: got %d", len(got))
	}
	if got := ContentHash(data, 8); len(got) != 8 {
		t.Errorf("truncated hash length: got %d", len(got))
	}
	if got := ContentHash(data, 64); len(got) != 16 {
		t.Errorf("oversized hexLen: got %d", len(got))
	}
}

func TestContentHash_KnownValue(t *testing.T) {
	// xxhash64 of the empty input.
	if got := ContentHash(nil, 0); got != "ef46db3751d8e999" {
		t.Errorf("empty hash: got %s", got)
	}
}

func TestContentHashReader_MatchesBytes(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 10000)
	want := ContentHash(data, 16)
	got, err := ContentHashReader(bytes.NewReader(data), 16)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("reader hash %s != bytes hash %s", got, want)
	}
}

func TestFileHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob.bin")
	data := []byte("some jpeg bytes")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := FileHash(path, 16)
	if err != nil {
		t.Fatal(err)
	}
	if got != ContentHash(data, 16) {
		t.Errorf("file hash mismatch: %s", got)
	}
	if _, err := FileHash(filepath.Join(t.TempDir(), "missing"), 16); err == nil {
		t.Error("expected error for missing file")
	}
}
