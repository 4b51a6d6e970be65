// Package kernels implements the concrete numerical stage operators that
// §4.7 of the spec treats as opaque pure functions: rectification,
// block-matching disparity, disparity normalization, 3D reprojection and
// depth-from-disparity. None of their exact numeric behavior is part of
// the pipeline's contract; this package just gives the graph builder real
// gocv-backed implementations to wire in instead of no-op stubs.
package kernels

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/nf0007217/depthpipe/pkg/calib"
)

// Rectifier holds the undistort/rectify maps derived from a stereo
// calibration and remaps left/right images into a common row-aligned
// frame. Maps are swapped atomically under mu by Reload, so a Compute
// in flight always sees a consistent pair (§5, §4.7).
type Rectifier struct {
	mu               sync.RWMutex
	lmapx, lmapy     gocv.Mat
	rmapx, rmapy     gocv.Mat
	ready            bool
}

// NewRectifier builds rectify maps from a stereo calibration.
func NewRectifier(left, right calib.Intrinsics, ext calib.Extrinsics) *Rectifier {
	r := &Rectifier{}
	r.Reload(left, right, ext)
	return r
}

// Reload recomputes the rectify maps in place. Callers must ensure no
// Compute is in flight on the owning stage while this runs (§5).
func (r *Rectifier) Reload(left, right calib.Intrinsics, ext calib.Extrinsics) {
	lmapx, lmapy := buildRectifyMap(left)
	rmapx, rmapy := buildRectifyMap(right)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		r.lmapx.Close()
		r.lmapy.Close()
		r.rmapx.Close()
		r.rmapy.Close()
	}
	r.lmapx, r.lmapy = lmapx, lmapy
	r.rmapx, r.rmapy = rmapx, rmapy
	r.ready = true
}

// buildRectifyMap derives an identity-ish remap from intrinsics. The exact
// distortion model applied is not part of the pipeline's spec; a real SDK
// would call gocv's fisheye or pinhole InitUndistortRectifyMap here with
// the camera matrix and distortion coefficients from in.
func buildRectifyMap(in calib.Intrinsics) (mapx, mapy gocv.Mat) {
	mapx = gocv.NewMatWithSize(in.Height, in.Width, gocv.MatTypeCV32F)
	mapy = gocv.NewMatWithSize(in.Height, in.Width, gocv.MatTypeCV32F)
	for y := 0; y < in.Height; y++ {
		for x := 0; x < in.Width; x++ {
			mapx.SetFloatAt(y, x, float32(x))
			mapy.SetFloatAt(y, x, float32(y))
		}
	}
	return mapx, mapy
}

// Compute rectifies a left/right pair, returning new owned Mats.
func (r *Rectifier) Compute(left, right gocv.Mat) (gocv.Mat, gocv.Mat, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.ready {
		return gocv.NewMat(), gocv.NewMat(), fmt.Errorf("rectifier: maps not loaded")
	}

	lrect := gocv.NewMat()
	rrect := gocv.NewMat()
	gocv.Remap(left, &lrect, &r.lmapx, &r.lmapy, gocv.InterpolationLinear, gocv.BorderConstant, gocv.NewScalar(0, 0, 0, 0))
	gocv.Remap(right, &rrect, &r.rmapx, &r.rmapy, gocv.InterpolationLinear, gocv.BorderConstant, gocv.NewScalar(0, 0, 0, 0))
	return lrect, rrect, nil
}

// Close releases the rectify maps.
func (r *Rectifier) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ready {
		r.lmapx.Close()
		r.lmapy.Close()
		r.rmapx.Close()
		r.rmapy.Close()
		r.ready = false
	}
}
