package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AnyUserName/pngrepair/internal/convert"
	"github.com/AnyUserName/pngrepair/internal/report"
)

// processResult holds the result of repairing a single source image.
type processResult struct {
	key   string
	entry report.Entry
	err   error
}

// processImage converts one source to outPath and fills its report entry.
func processImage(src Source, outPath string, cfg Config) processResult {
	result := processResult{
		key: src.RelPath,
		entry: report.Entry{
			Input: report.InputInfo{
				Path:   src.RelPath,
				Format: src.Format,
				Size:   src.Size,
			},
		},
	}

	if dir := filepath.Dir(outPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			result.fail(string(convert.StageWrite), fmt.Errorf("create %s: %w", dir, err))
			return result
		}
	}

	res, err := convert.File(src.AbsPath, outPath, cfg.Options)
	if err != nil {
		stage := ""
		var se *convert.StageError
		if errors.As(err, &se) {
			stage = string(se.Stage)
		}
		result.fail(stage, fmt.Errorf("%s: %w", src.RelPath, err))
		return result
	}

	result.entry.Input.Format = res.Format
	result.entry.Input.HasAlpha = res.HadAlpha
	result.entry.Input.Truncated = res.Truncated
	result.entry.Input.CRCErrors = res.CRCErrors
	result.entry.Output = &report.OutputInfo{
		Path:   cfg.relOutput(outPath),
		Width:  res.Width,
		Height: res.Height,
		Size:   res.OutputSize,
		Hash:   res.Hash,
	}

	if cfg.Replace && !samePath(src.AbsPath, outPath) {
		if err := os.Remove(src.AbsPath); err != nil {
			// The JPEG exists, so the file still counts as repaired.
			cfg.logf("warn: remove %s: %v", src.RelPath, err)
		} else {
			result.entry.Input.Removed = true
		}
	}

	return result
}

func (r *processResult) fail(stage string, err error) {
	r.err = err
	r.entry.Stage = stage
	r.entry.Error = err.Error()
}

// samePath reports whether a and b name the same file.
func samePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ai, errA := os.Stat(a)
	bi, errB := os.Stat(b)
	return errA == nil && errB == nil && os.SameFile(ai, bi)
}
