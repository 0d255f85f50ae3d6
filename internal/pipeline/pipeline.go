package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/AnyUserName/pngrepair/internal/convert"
	"github.com/AnyUserName/pngrepair/internal/encoder"
	"github.com/AnyUserName/pngrepair/internal/hasher"
	"github.com/AnyUserName/pngrepair/internal/profile"
	"github.com/AnyUserName/pngrepair/internal/report"
)

// logMu serializes verbose lines written by concurrent workers.
var logMu sync.Mutex

// Config holds all parameters for a repair run.
type Config struct {
	InputDir  string
	OutputDir string // empty: write each JPEG next to its source
	Profile   profile.Profile
	Options   convert.Options
	Workers   int
	Replace   bool // remove sources after a successful repair
	// Previous is the report of an earlier run into the same directory.
	// Its outputs that are still unchanged on disk are not repaired again.
	Previous *report.Report
	Verbose  bool
	Log      io.Writer // verbose output; defaults to os.Stderr
}

func (c Config) logf(format string, args ...any) {
	if !c.Verbose {
		return
	}
	w := c.Log
	if w == nil {
		w = os.Stderr
	}
	logMu.Lock()
	defer logMu.Unlock()
	fmt.Fprintf(w, "[pngrepair] "+format+"\n", args...)
}

// baseDir is the directory report output paths are relative to.
func (c Config) baseDir() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return c.InputDir
}

func (c Config) relOutput(path string) string {
	rel, err := filepath.Rel(c.baseDir(), path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// Pipeline orchestrates batch repair.
type Pipeline struct {
	cfg Config
}

// New creates a configured pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Pipeline{cfg: cfg}
}

// Run converts every image under the input directory and returns the
// report. Per-file failures are recorded in the report, not returned.
func (p *Pipeline) Run() (*report.Report, error) {
	start := time.Now()

	// Step 1: Scan for images.
	sources, err := ScanImages(p.cfg.InputDir)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no images found in %s", p.cfg.InputDir)
	}
	p.cfg.logf("found %d images", len(sources))

	sources, carried := p.skipPrevious(sources)
	outputs := p.outputPaths(sources)

	// Step 2: Process images in parallel.
	results := make([]processResult, len(sources))
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.cfg.Workers)

	for i, src := range sources {
		wg.Add(1)
		go func(idx int, s Source) {
			defer wg.Done()
			sem <- struct{}{}        // acquire
			defer func() { <-sem }() // release

			p.cfg.logf("processing: %s", s.RelPath)
			results[idx] = processImage(s, outputs[idx], p.cfg)

			if r := results[idx]; r.err == nil {
				note := ""
				if r.entry.Input.Truncated {
					note = " (truncated input)"
				}
				p.cfg.logf("done: %s -> %s%s", s.RelPath, r.entry.Output.Path, note)
			}
		}(i, src)
	}
	wg.Wait()

	// Step 3: Collect results into the report.
	r := report.New(p.cfg.InputDir, report.Settings{
		Profile:     p.cfg.Profile.Name,
		Quality:     effectiveQuality(p.cfg.Options.Quality),
		Subsampling: encoder.SubsamplingName(p.cfg.Options.Subsampling),
		Strict:      p.cfg.Options.Strict,
		Background:  backgroundHex(p.cfg.Options),
	})
	r.OutputDir = p.cfg.OutputDir

	for _, res := range results {
		if res.err != nil {
			p.cfg.logf("error: %v", res.err)
		}
		r.Files[res.key] = res.entry
	}
	for key, e := range carried {
		if _, ok := r.Files[key]; !ok {
			r.Files[key] = e
		}
	}

	r.BuildInfo = &report.BuildInfo{
		Workers:  p.cfg.Workers,
		Duration: time.Since(start).Milliseconds(),
	}
	r.ComputeStats()
	return r, nil
}

// skipPrevious drops sources that are unchanged outputs of the previous
// run and returns the previous entries that produced them.
func (p *Pipeline) skipPrevious(sources []Source) ([]Source, map[string]report.Entry) {
	prev := p.cfg.Previous
	if prev == nil || filepath.Clean(prev.BaseDir()) != filepath.Clean(p.cfg.baseDir()) {
		return sources, nil
	}

	byPath := prev.Outputs()
	carried := make(map[string]report.Entry)
	kept := make([]Source, 0, len(sources))
	for _, s := range sources {
		key, ok := byPath[filepath.Clean(s.AbsPath)]
		if ok {
			e := prev.Files[key]
			h, err := hasher.FileHash(s.AbsPath, len(e.Output.Hash))
			if err == nil && h == e.Output.Hash {
				p.cfg.logf("skip: %s (output of %s)", s.RelPath, key)
				carried[key] = e
				continue
			}
		}
		kept = append(kept, s)
	}
	return kept, carried
}

// outputPaths assigns each source its output path. Sources that would
// collide (a.png and a.gif) get the format folded into the name.
func (p *Pipeline) outputPaths(sources []Source) []string {
	ext := "." + p.cfg.Options.OutputEncoder().Extension()
	paths := make([]string, len(sources))
	seen := make(map[string]bool, len(sources))

	for i, s := range sources {
		var out string
		if p.cfg.OutputDir == "" {
			out = convert.OutputPathFor(s.AbsPath, ext[1:])
		} else {
			out = filepath.Join(p.cfg.OutputDir, filepath.FromSlash(s.Key)+ext)
		}
		if seen[out] {
			out = strings.TrimSuffix(out, ext) + "." + s.Format + ext
		}
		seen[out] = true
		paths[i] = out
	}
	return paths
}

func effectiveQuality(q int) int {
	if q <= 0 || q > 100 {
		return encoder.DefaultQuality
	}
	return q
}

func backgroundHex(o convert.Options) string {
	if o.Background == nil {
		return ""
	}
	c := o.Background
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
