package report

// Report is the JSON record of a repair run.
type Report struct {
	Version     int              `json:"version"`
	GeneratedAt string           `json:"generated_at"`
	SourceDir   string           `json:"source_dir"`
	OutputDir   string           `json:"output_dir,omitempty"` // empty: outputs sit next to sources
	Settings    Settings         `json:"settings"`
	BuildInfo   *BuildInfo       `json:"build_info,omitempty"`
	Files       map[string]Entry `json:"files"`
	Stats       Stats            `json:"stats"`
}

// Settings records the encoding parameters used for every file.
type Settings struct {
	Profile     string `json:"profile"`
	Quality     int    `json:"quality"`
	Subsampling string `json:"subsampling"` // "444", "422", "420"
	Strict      bool   `json:"strict,omitempty"`
	Background  string `json:"background,omitempty"`
}

// BuildInfo captures run-time parameters for diagnostics.
type BuildInfo struct {
	Workers  int   `json:"workers"`
	Duration int64 `json:"duration_ms"`
}

// Entry describes one source file. Output is nil when conversion failed.
type Entry struct {
	Input  InputInfo   `json:"input"`
	Output *OutputInfo `json:"output,omitempty"`
	// Stage and Error are set on failure.
	Stage string `json:"stage,omitempty"`
	Error string `json:"error,omitempty"`
}

// InputInfo holds metadata about the source image.
type InputInfo struct {
	Path      string `json:"path"`
	Format    string `json:"format"`
	Size      int64  `json:"size"`
	HasAlpha  bool   `json:"has_alpha,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	CRCErrors int    `json:"crc_errors,omitempty"`
	Removed   bool   `json:"removed,omitempty"` // deleted after repair (--replace)
}

// OutputInfo is the written JPEG.
type OutputInfo struct {
	Path   string `json:"path"` // relative to the report's directory when possible
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
	Hash   string `json:"hash"` // first 16 hex chars of xxhash64
}

// Stats aggregates run metrics.
type Stats struct {
	TotalFiles       int   `json:"total_files"`
	Repaired         int   `json:"repaired"`
	Truncated        int   `json:"truncated"`
	Failed           int   `json:"failed"`
	TotalInputBytes  int64 `json:"total_input_bytes"`
	TotalOutputBytes int64 `json:"total_output_bytes"`
}

// SupportedReportVersion is the current schema version.
const SupportedReportVersion = 1

// DefaultFileName is the report written into the output directory.
const DefaultFileName = "pngrepair.report.json"
