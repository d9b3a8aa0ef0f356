package hls

import "fmt"

// Stage names the part of the pipeline that failed.
type Stage string

const (
	StageResolution Stage = "resolution"
	StageKey        Stage = "key"
	StageTransfer   Stage = "transfer"
	StageDecryption Stage = "decryption"
	StageSink       Stage = "sink"
)

type PipelineError struct {
	Stage Stage
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}
