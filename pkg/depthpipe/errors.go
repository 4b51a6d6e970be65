package depthpipe

import "errors"

var (
	ErrNotSupported = errors.New("stream not supported by this pipeline")
	ErrDisabled     = errors.New("stream is disabled")
	ErrNotReady     = errors.New("paired output not produced yet")
	ErrUnknownModel = errors.New("unknown calibration model, falling back to pinhole")
	ErrCalibLocked  = errors.New("calibration reload inhibited: defaults are in use")
	ErrNoSuchStage  = errors.New("no such stage")
	ErrStageRunning = errors.New("stage has an in-flight compute")
)
