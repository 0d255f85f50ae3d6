package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/AnyUserName/pngrepair/internal/hasher"
	"github.com/AnyUserName/pngrepair/internal/report"
	"github.com/spf13/cobra"
)

func newValidateCmd(_ *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <report_path>",
		Short: "Validate a repair report and check the repaired files on disk",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), args[0])
		},
	}
}

func runValidate(w io.Writer, reportPath string) error {
	r, err := report.ReadJSON(reportPath)
	if err != nil {
		return err
	}

	errs := validateReport(r, reportBaseDir(r, reportPath))

	if len(errs) == 0 {
		fmt.Fprintln(w, "  ✓ Report is valid")
		fmt.Fprintf(w, "  ✓ %d files, %d repaired, all outputs present\n", r.Stats.TotalFiles, r.Stats.Repaired)
		return nil
	}

	fmt.Fprintf(w, "  ✗ Report has %d error(s):\n", len(errs))
	for _, e := range errs {
		fmt.Fprintf(w, "    • %s\n", e)
	}
	return fmt.Errorf("validation failed with %d errors", len(errs))
}

// reportBaseDir is the directory output paths in r are relative to.
func reportBaseDir(r *report.Report, reportPath string) string {
	if dir := r.BaseDir(); dir != "" {
		return dir
	}
	return filepath.Dir(reportPath)
}

func validateReport(r *report.Report, baseDir string) []string {
	var errs []string

	if r.Settings.Quality < 1 || r.Settings.Quality > 100 {
		errs = append(errs, fmt.Sprintf("settings: invalid quality %d", r.Settings.Quality))
	}

	seenPaths := map[string]string{}
	for key, e := range r.Files {
		if e.Input.Path == "" {
			errs = append(errs, fmt.Sprintf("file %q: missing input path", key))
		}

		if e.Output == nil {
			if e.Error == "" {
				errs = append(errs, fmt.Sprintf("file %q: no output and no error recorded", key))
			}
			continue
		}
		out := e.Output

		if out.Width <= 0 || out.Height <= 0 {
			errs = append(errs, fmt.Sprintf("file %q: invalid dimensions %dx%d", key, out.Width, out.Height))
		}
		if out.Hash == "" {
			errs = append(errs, fmt.Sprintf("file %q: missing hash", key))
		}
		if out.Path == "" {
			errs = append(errs, fmt.Sprintf("file %q: missing output path", key))
			continue
		}

		// Check duplicate paths.
		if other, dup := seenPaths[out.Path]; dup {
			errs = append(errs, fmt.Sprintf("file %q: output %q also claimed by %q", key, out.Path, other))
		}
		seenPaths[out.Path] = key

		// Check file exists and matches.
		fullPath := filepath.Join(baseDir, filepath.FromSlash(out.Path))
		info, err := os.Stat(fullPath)
		if err != nil {
			errs = append(errs, fmt.Sprintf("file %q: output not found: %s", key, out.Path))
			continue
		}
		if out.Size > 0 && info.Size() != out.Size {
			errs = append(errs, fmt.Sprintf("file %q: size mismatch: report=%d, disk=%d", key, out.Size, info.Size()))
		}
		if out.Hash != "" {
			h, err := hasher.FileHash(fullPath, len(out.Hash))
			if err != nil {
				errs = append(errs, fmt.Sprintf("file %q: hash %s: %v", key, out.Path, err))
			} else if h != out.Hash {
				errs = append(errs, fmt.Sprintf("file %q: hash mismatch: report=%s, disk=%s", key, out.Hash, h))
			}
		}
	}

	// Verify stats consistency.
	recomputed := *r
	recomputed.ComputeStats()
	if recomputed.Stats != r.Stats {
		errs = append(errs, fmt.Sprintf("stats mismatch: report=%+v, recomputed=%+v", r.Stats, recomputed.Stats))
	}

	return errs
}
