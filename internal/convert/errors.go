package convert

import "fmt"

// Stage names the step of a conversion that failed.
type Stage string

const (
	StageDecode  Stage = "decode"
	StageConvert Stage = "convert"
	StageEncode  Stage = "encode"
	StageWrite   Stage = "write"
)

// StageError is returned by File. Every stage maps to the same exit
// status; Stage is kept for diagnostics and reports.
type StageError struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
