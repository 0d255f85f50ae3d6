package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/AnyUserName/pngrepair/internal/pipeline"
	"github.com/AnyUserName/pngrepair/internal/report"
	"github.com/spf13/cobra"
)

type repairOptions struct {
	outDir     string
	workers    int
	replace    bool
	reportPath string
	noReport   bool
}

func newRepairCmd(o *options) *cobra.Command {
	ro := &repairOptions{}
	c := &cobra.Command{
		Use:   "repair <input_dir>",
		Short: "Repair every image in a directory tree and write a report",
		Long: `Scans input directory for images (png, jpg, jpeg, gif, bmp, tiff, webp),
converts each one to <name>.jpg with the same settings as the single-file
mode and writes a JSON report of what was repaired.

Hidden directories are skipped. Without --out every JPEG is written next
to its source. JPEGs listed in the report of an earlier run, and unchanged
since, are not converted again, so repeating a run is safe.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(cmd.OutOrStdout(), o, ro, args[0])
		},
	}
	c.Flags().StringVarP(&ro.outDir, "out", "o", "", "output directory (default: next to each source)")
	c.Flags().IntVarP(&ro.workers, "workers", "w", 0, "parallel workers (0 = NumCPU)")
	c.Flags().BoolVar(&ro.replace, "replace", false, "delete each source once its JPEG has been written")
	c.Flags().StringVar(&ro.reportPath, "report", "", "report path (default: <out or input_dir>/"+report.DefaultFileName+")")
	c.Flags().BoolVar(&ro.noReport, "no-report", false, "do not write a report")
	return c
}

func runRepair(stdout io.Writer, o *options, ro *repairOptions, inputDir string) error {
	start := time.Now()

	opts, prof, err := o.convertOptions()
	if err != nil {
		return err
	}
	if ro.workers < 0 {
		return &usageError{msg: fmt.Sprintf("workers must be >= 0, got %d", ro.workers)}
	}

	// Resolve absolute paths.
	absInput, err := filepath.Abs(inputDir)
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}
	info, err := os.Stat(absInput)
	if err != nil {
		return fmt.Errorf("stat %s: %w", inputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", inputDir)
	}

	var absOutput string
	if ro.outDir != "" {
		absOutput, err = filepath.Abs(ro.outDir)
		if err != nil {
			return fmt.Errorf("resolve output path: %w", err)
		}
		if err := os.MkdirAll(absOutput, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	o.logVerbose("input:   %s", absInput)
	if absOutput != "" {
		o.logVerbose("output:  %s", absOutput)
	}
	o.logVerbose("preset:  %s (quality=%d)", prof.Name, opts.Quality)

	reportPath := ro.reportPath
	if reportPath == "" {
		base := absOutput
		if base == "" {
			base = absInput
		}
		reportPath = filepath.Join(base, report.DefaultFileName)
	}

	// A report from an earlier run lets its outputs be recognized and
	// left alone instead of being treated as new sources.
	var prev *report.Report
	if _, err := os.Stat(reportPath); err == nil {
		prev, err = report.ReadJSON(reportPath)
		if err != nil {
			o.logVerbose("ignoring previous report: %v", err)
			prev = nil
		}
	}

	p := pipeline.New(pipeline.Config{
		InputDir:  absInput,
		OutputDir: absOutput,
		Profile:   prof,
		Options:   opts,
		Workers:   ro.workers,
		Replace:   ro.replace,
		Previous:  prev,
		Verbose:   o.verbose,
		Log:       o.stderr,
	})

	r, err := p.Run()
	if err != nil {
		return fmt.Errorf("repair: %w", err)
	}

	if ro.noReport {
		reportPath = ""
	} else if err := report.WriteJSON(r, reportPath); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	printRepairReport(stdout, r, time.Since(start), reportPath)

	if r.Stats.Failed > 0 {
		return fmt.Errorf("%d of %d files could not be repaired", r.Stats.Failed, r.Stats.TotalFiles)
	}
	return nil
}

func printRepairReport(w io.Writer, r *report.Report, elapsed time.Duration, reportPath string) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║              pngrepair run complete              ║")
	fmt.Fprintln(w, "╚══════════════════════════════════════════════════╝")
	fmt.Fprintln(w)

	s := r.Stats
	fmt.Fprintf(w, "  Files:       %d\n", s.TotalFiles)
	fmt.Fprintf(w, "  Repaired:    %d\n", s.Repaired)
	if s.Truncated > 0 {
		fmt.Fprintf(w, "  Truncated:   %d (recovered partially)\n", s.Truncated)
	}
	if s.Failed > 0 {
		fmt.Fprintf(w, "  Failed:      %d\n", s.Failed)
	}
	fmt.Fprintf(w, "  Input size:  %s\n", formatBytes(s.TotalInputBytes))
	fmt.Fprintf(w, "  Output size: %s\n", formatBytes(s.TotalOutputBytes))
	fmt.Fprintf(w, "  Settings:    %s, quality %d, %s\n",
		r.Settings.Profile, r.Settings.Quality, r.Settings.Subsampling)
	fmt.Fprintf(w, "  Time:        %s\n", elapsed.Round(time.Millisecond))
	if r.BuildInfo != nil {
		fmt.Fprintf(w, "  Workers:     %d\n", r.BuildInfo.Workers)
	}
	fmt.Fprintln(w)

	if s.Failed > 0 {
		var keys []string
		for key, e := range r.Files {
			if e.Output == nil {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		n := len(keys)
		if n > 10 {
			n = 10
		}
		fmt.Fprintf(w, "  Failures (%d shown):\n", n)
		for _, key := range keys[:n] {
			e := r.Files[key]
			fmt.Fprintf(w, "    %-40s %s: %s\n", truncKey(key, 40), e.Stage, e.Error)
		}
		fmt.Fprintln(w)
	}

	if reportPath != "" {
		fmt.Fprintf(w, "  Report:      %s\n", reportPath)
		fmt.Fprintln(w)
	}
}
