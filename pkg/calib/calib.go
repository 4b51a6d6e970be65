// Package calib holds the calibration value types shared by the pipeline
// core and the stage kernels, kept separate so neither needs to import the
// other (the core depends on kernel signatures; kernels depend on calib
// values, not on the core).
package calib

// Model selects which rectify/points/depth kernels are instantiated and
// determines the DAG shape downstream of disparity (§4.3, §4.7).
type Model int

const (
	Pinhole Model = iota
	KannalaBrandt
)

func (m Model) String() string {
	switch m {
	case Pinhole:
		return "pinhole"
	case KannalaBrandt:
		return "kannala_brandt"
	default:
		return "unknown"
	}
}

// ParseModel maps a free-form config string to a Model. An unrecognized
// value falls back to Pinhole with ok=false, so callers can log the
// fallback and set the calibration-defaulted flag (§4.3, §7).
func ParseModel(s string) (m Model, ok bool) {
	switch s {
	case "pinhole", "PINHOLE", "":
		return Pinhole, true
	case "kannala_brandt", "KANNALA_BRANDT", "kb":
		return KannalaBrandt, true
	default:
		return Pinhole, false
	}
}

// Intrinsics is a single camera's calibration: resolution, camera matrix
// and a model-dependent distortion vector (radial-tangential for Pinhole,
// the four KB coefficients for KannalaBrandt).
type Intrinsics struct {
	Width, Height int
	CameraMatrix  [9]float64 // row-major 3x3
	Distortion    []float64
}

// Extrinsics is the rigid transform between two camera frames.
type Extrinsics struct {
	Rotation    [9]float64 // row-major 3x3
	Translation [3]float64
}

// Pair bundles left+right intrinsics, the shape Points/Depth kernels take
// under KannalaBrandt (§4.7).
type Pair struct {
	Left, Right Intrinsics
}
