package kernels

import (
	"fmt"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
)

// DisparityMethod selects the block-matching algorithm a Disparity kernel
// uses. Exposed to the pipeline via Pipeline.SetDisparityMethod (§6).
type DisparityMethod int32

const (
	DisparityBM DisparityMethod = iota
	DisparitySGBM
)

// Disparity computes a disparity map from a rectified stereo pair.
type Disparity struct {
	method atomic.Int32

	mu  sync.Mutex
	bm  gocv.StereoBM
	sgbm gocv.StereoSGBM
}

// NewDisparity builds a disparity kernel using the given method.
func NewDisparity(method DisparityMethod) *Disparity {
	d := &Disparity{
		bm:   gocv.NewStereoBM(),
		sgbm: gocv.NewStereoSGBM(0, 64, 11),
	}
	d.method.Store(int32(method))
	return d
}

// SetMethod switches the block-matching algorithm used by future Compute
// calls (§6 set_disparity_method).
func (d *Disparity) SetMethod(method DisparityMethod) {
	d.method.Store(int32(method))
}

// Compute produces a disparity map. leftRect/rightRect must be
// single-channel (GRAY8) rectified views of the same frame.
func (d *Disparity) Compute(leftRect, rightRect gocv.Mat) (gocv.Mat, error) {
	if leftRect.Empty() || rightRect.Empty() {
		return gocv.NewMat(), fmt.Errorf("disparity: empty input")
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	out := gocv.NewMat()
	switch DisparityMethod(d.method.Load()) {
	case DisparitySGBM:
		d.sgbm.Compute(leftRect, rightRect, &out)
	default:
		d.bm.Compute(leftRect, rightRect, &out)
	}
	return out, nil
}

// Close releases the underlying OpenCV matchers.
func (d *Disparity) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bm.Close()
	d.sgbm.Close()
}

// Normalize rescales a raw disparity map to an 8-bit displayable image
// (§3 DISPARITY_NORMALIZED).
func Normalize(disparity gocv.Mat) (gocv.Mat, error) {
	if disparity.Empty() {
		return gocv.NewMat(), fmt.Errorf("normalize: empty input")
	}
	norm := gocv.NewMat()
	gocv.Normalize(disparity, &norm, 0, 255, gocv.NormMinMax)
	out := gocv.NewMat()
	norm.ConvertTo(&out, gocv.MatTypeCV8U)
	norm.Close()
	return out, nil
}
