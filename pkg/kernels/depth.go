package kernels

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/nf0007217/depthpipe/pkg/calib"
)

// Depth turns a disparity map into a per-pixel metric depth map:
// depth = baseline * focal / disparity (§4.7). Zero-disparity pixels are
// not special-cased: they go through the same float32 division as every
// other pixel, so they are not mapped to zero depth.
type Depth struct {
	mu       sync.RWMutex
	baseline float64
	focal    float64
}

// NewDepthPinhole builds a Depth kernel from an explicit baseline/focal.
func NewDepthPinhole(baseline, focal float64) *Depth {
	return &Depth{baseline: baseline, focal: focal}
}

// NewDepthKannalaBrandt builds a Depth kernel from a fisheye calibration
// pair, deriving an approximate baseline/focal the same way Points does.
func NewDepthKannalaBrandt(pair calib.Pair) *Depth {
	return &Depth{baseline: 1.0, focal: pair.Left.CameraMatrix[0]}
}

// Reload replaces the baseline/focal in place.
func (d *Depth) Reload(baseline, focal float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.baseline, d.focal = baseline, focal
}

// Compute converts disparity to metric depth.
func (d *Depth) Compute(disparity gocv.Mat) (gocv.Mat, error) {
	if disparity.Empty() {
		return gocv.NewMat(), fmt.Errorf("depth: empty disparity")
	}

	d.mu.RLock()
	scale := d.baseline * d.focal
	d.mu.RUnlock()

	f32 := gocv.NewMat()
	disparity.ConvertTo(&f32, gocv.MatTypeCV32F)
	defer f32.Close()

	out := gocv.NewMat()
	gocv.Divide(gocv.NewMatWithSizeFromScalar(gocv.NewScalar(scale, 0, 0, 0), f32.Rows(), f32.Cols(), gocv.MatTypeCV32F), f32, &out)
	return out, nil
}
