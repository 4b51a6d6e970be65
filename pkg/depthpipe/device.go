package depthpipe

import "github.com/nf0007217/depthpipe/pkg/calib"

// Device is the external frame source collaborator (§6). Its concrete
// implementation, lifetime and wire decoding are out of scope (§1); the
// core only consumes this interface. See pkg/devicesim for a synthetic
// implementation used by tests and the bundled CLI.
type Device interface {
	Supports(s Stream) bool
	SetStreamCallback(s Stream, fn func(StreamData), replace bool) bool
	GetStreamData(s Stream) StreamData
	GetStreamDatas(s Stream) []StreamData
	Start(source Stream) error
	Stop(source Stream) error
	WaitForStreams()
}

// Calibration is the external calibration-source collaborator (§6).
type Calibration interface {
	GetIntrinsics(s Stream) calib.Intrinsics
	GetExtrinsics(from, to Stream) calib.Extrinsics
}
