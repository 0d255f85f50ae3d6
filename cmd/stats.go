package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/AnyUserName/pngrepair/internal/report"
	"github.com/spf13/cobra"
)

func newStatsCmd(_ *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <dir_or_report>",
		Short: "Display statistics for a repair report",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(cmd.OutOrStdout(), args[0])
		},
	}
}

func runStats(w io.Writer, path string) error {
	// If path is a directory, look for the report inside.
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		path = filepath.Join(path, report.DefaultFileName)
	}

	r, err := report.ReadJSON(path)
	if err != nil {
		return err
	}

	printStats(w, r)
	return nil
}

func printStats(w io.Writer, r *report.Report) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Report version:   %d\n", r.Version)
	fmt.Fprintf(w, "  Generated:        %s\n", r.GeneratedAt)
	fmt.Fprintf(w, "  Source:           %s\n", r.SourceDir)
	if r.OutputDir != "" {
		fmt.Fprintf(w, "  Output:           %s\n", r.OutputDir)
	}
	fmt.Fprintf(w, "  Preset:           %s (quality %d, %s)\n",
		r.Settings.Profile, r.Settings.Quality, r.Settings.Subsampling)
	if r.BuildInfo != nil {
		fmt.Fprintf(w, "  Workers:          %d\n", r.BuildInfo.Workers)
		fmt.Fprintf(w, "  Duration:         %d ms\n", r.BuildInfo.Duration)
	}
	fmt.Fprintln(w)

	s := r.Stats
	ratio := float64(0)
	if s.TotalInputBytes > 0 {
		ratio = float64(s.TotalOutputBytes) / float64(s.TotalInputBytes) * 100
	}
	fmt.Fprintf(w, "  Files:            %d\n", s.TotalFiles)
	fmt.Fprintf(w, "  Repaired:         %d\n", s.Repaired)
	fmt.Fprintf(w, "  Truncated:        %d\n", s.Truncated)
	fmt.Fprintf(w, "  Failed:           %d\n", s.Failed)
	fmt.Fprintf(w, "  Input size:       %s\n", formatBytes(s.TotalInputBytes))
	fmt.Fprintf(w, "  Output size:      %s\n", formatBytes(s.TotalOutputBytes))
	fmt.Fprintf(w, "  Ratio:            %.1f%% of original\n", ratio)
	fmt.Fprintln(w)

	// Largest outputs.
	type outSize struct {
		key  string
		size int64
	}
	var items []outSize
	for key, e := range r.Files {
		if e.Output != nil {
			items = append(items, outSize{key, e.Output.Size})
		}
	}
	if len(items) == 0 {
		return
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].size != items[j].size {
			return items[i].size > items[j].size
		}
		return items[i].key < items[j].key
	})
	n := len(items)
	if n > 10 {
		n = 10
	}
	fmt.Fprintf(w, "  Top %d largest outputs:\n", n)
	for _, it := range items[:n] {
		e := r.Files[it.key]
		flag := ""
		if e.Input.Truncated {
			flag = "  [truncated]"
		}
		fmt.Fprintf(w, "    %-40s %8s  %dx%d%s\n",
			truncKey(it.key, 40), formatBytes(it.size), e.Output.Width, e.Output.Height, flag)
	}
	fmt.Fprintln(w)
}
