package depthpipe

import "gocv.io/x/gocv"

// Side tags which half of a paired payload a matrix belongs to, so the
// registry can extract the right half when a caller reads a single stream
// (e.g. LEFT_RECTIFIED) out of a stage that internally computes a pair.
type Side int

const (
	SideNone Side = iota
	SideLeft
	SideRight
)

// Half is one triple of a StageInput/StageOutput: a matrix, the frame-id it
// was derived from, and optional metadata.
type Half struct {
	Mat     gocv.Mat
	FrameID uint16
	Meta    *Metadata
}

// StageData is either a single Half (Paired == false, only Left is set) or
// a paired Half (Paired == true, Left+Right both set with equal FrameID).
// StageInput and StageOutput are both this shape; every stage declares at
// construction which arity it uses for each side (§3).
type StageData struct {
	Paired bool
	Left   Half
	Right  Half
}

type (
	StageInput  = StageData
	StageOutput = StageData
)

// NewSingle builds a single-payload StageData.
func NewSingle(mat gocv.Mat, frameID uint16, meta *Metadata) StageData {
	return StageData{Left: Half{Mat: mat, FrameID: frameID, Meta: meta}}
}

// NewPaired builds a paired StageData. Panics in debug builds would be
// inappropriate here (§7 contains failures to the input); callers that
// can't guarantee equal frame-ids should not call this directly — see
// Latch, which is the only paired-input producer in the graph.
func NewPaired(left, right Half) StageData {
	return StageData{Paired: true, Left: left, Right: right}
}

// ID returns the frame-id carried by either the single half or,
// for a paired payload, the (equal) frame-id of both halves.
func (d StageData) ID() uint16 {
	return d.Left.FrameID
}
