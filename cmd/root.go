package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/AnyUserName/pngrepair/internal/convert"
	"github.com/AnyUserName/pngrepair/internal/encoder"
	"github.com/AnyUserName/pngrepair/internal/profile"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// Process exit statuses.
const (
	ExitOK      = 0
	ExitUsage   = 1 // missing or malformed arguments
	ExitFailure = 2 // any decode, convert, encode or write failure
)

// usageError marks errors that mean the command line itself was wrong.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// usageArgs turns positional-argument validation failures into usage errors.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return &usageError{msg: err.Error()}
		}
		return nil
	}
}

// options holds the persistent flags shared by every command.
type options struct {
	verbose     bool
	preset      string
	quality     int
	subsampling string
	background  string
	strict      bool

	stderr io.Writer
}

// logVerbose prints a message only when --verbose is set.
func (o *options) logVerbose(format string, args ...any) {
	if o.verbose {
		fmt.Fprintf(o.stderr, "[pngrepair] "+format+"\n", args...)
	}
}

// convertOptions resolves the flags into converter options.
func (o *options) convertOptions() (convert.Options, profile.Profile, error) {
	if !profile.Known(o.preset) {
		return convert.Options{}, profile.Profile{}, &usageError{
			msg: fmt.Sprintf("unknown preset %q (available: %s)", o.preset, strings.Join(profile.Names(), ", ")),
		}
	}
	prof := profile.Get(o.preset)

	if o.quality != 0 {
		if o.quality < 1 || o.quality > 100 {
			return convert.Options{}, prof, &usageError{msg: fmt.Sprintf("quality %d out of range 1-100", o.quality)}
		}
		prof.Quality = o.quality
	}
	if o.subsampling != "" {
		ratio, err := encoder.ParseSubsampling(o.subsampling)
		if err != nil {
			return convert.Options{}, prof, &usageError{msg: err.Error()}
		}
		prof.Subsampling = ratio
	}

	opts := convert.Options{
		Quality:     prof.Quality,
		Subsampling: prof.Subsampling,
		Strict:      o.strict,
	}
	if o.background != "" {
		c, err := convert.ParseColor(o.background)
		if err != nil {
			return convert.Options{}, prof, &usageError{msg: err.Error()}
		}
		opts.Background = &c
	}
	return opts, prof, nil
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	o := &options{stderr: stderr}

	root := &cobra.Command{
		Use:   "pngrepair <input_file> [<output_file>]",
		Short: "Recover damaged PNG images by re-encoding them as JPEG",
		Long: `pngrepair decodes an image, tolerating truncated PNG streams and broken
chunk checksums, flattens it to RGB and writes a JPEG (quality 90, 4:4:4
chroma by default).

The output defaults to the input path with a .jpg extension. An input file
named like a subcommand (repair, validate, stats, help, completion) is
converted with "pngrepair -- <name>" or "pngrepair ./<name>".

Exit status: 0 on success, 1 on usage errors, 2 when the image could not
be read, converted or written.`,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		Version:       version,
		Args:          usageArgs(cobra.RangeArgs(1, 2)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(o, args)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")
	pf.StringVarP(&o.preset, "preset", "p", profile.DefaultName, "encoding preset ("+strings.Join(profile.Names(), ", ")+")")
	pf.IntVarP(&o.quality, "quality", "q", 0, "JPEG quality 1-100 (0 = preset default)")
	pf.StringVar(&o.subsampling, "subsampling", "", "chroma subsampling 444, 422 or 420 (default: preset)")
	pf.StringVar(&o.background, "background", "", "flatten transparency onto this color (#rrggbb) instead of dropping alpha")
	pf.BoolVar(&o.strict, "strict", false, "fail on truncated or checksum-damaged PNG input")

	root.SetVersionTemplate(fmt.Sprintf(
		"pngrepair %s (%s/%s, %s)\n",
		version, runtime.GOOS, runtime.GOARCH, runtime.Version(),
	))

	root.AddCommand(
		newRepairCmd(o),
		newValidateCmd(o),
		newStatsCmd(o),
	)
	return root
}

func runConvert(o *options, args []string) error {
	opts, prof, err := o.convertOptions()
	if err != nil {
		return err
	}

	in := args[0]
	out := ""
	if len(args) > 1 {
		out = args[1]
	}

	o.logVerbose("input:   %s", in)
	o.logVerbose("preset:  %s (quality=%d, subsampling=%s)",
		prof.Name, opts.Quality, encoder.SubsamplingName(opts.Subsampling))

	res, err := convert.File(in, out, opts)
	if err != nil {
		return err
	}

	if res.Truncated {
		o.logVerbose("input was truncated; unreadable rows are left black")
	}
	if res.CRCErrors > 0 {
		o.logVerbose("ignored %d chunk checksum error(s)", res.CRCErrors)
	}
	o.logVerbose("wrote %s (%s %dx%d, %s)", res.Output, res.OutputFormat, res.Width, res.Height, formatBytes(res.OutputSize))
	return nil
}

// run executes the CLI and returns the process exit status. Usage errors
// go to stderr; processing errors are printed to stdout.
func run(args []string, stdout, stderr io.Writer) int {
	if args == nil {
		args = []string{}
	}
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	cmd, err := root.ExecuteC()
	if err == nil {
		return ExitOK
	}
	if cmd == nil {
		cmd = root
	}

	var ue *usageError
	if errors.As(err, &ue) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintf(stderr, "Usage: %s\n", cmd.UseLine())
		return ExitUsage
	}
	fmt.Fprintln(stdout, err)
	return ExitFailure
}

// Execute runs the CLI with the process arguments and returns the exit status.
func Execute() int {
	return run(os.Args[1:], os.Stdout, os.Stderr)
}
