package kernels

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/nf0007217/depthpipe/pkg/calib"
)

// Points reprojects a disparity map to 3D points using a reprojection
// matrix Q (§4.7). Under Pinhole, Q comes straight from calibration;
// under KannalaBrandt it is approximated from the fisheye calibration
// pair, since reprojection still needs *some* Q-like matrix even though
// the distortion model differs.
type Points struct {
	mu sync.RWMutex
	q  gocv.Mat
}

// NewPointsPinhole builds a Points kernel from an explicit 4x4
// reprojection matrix Q, row-major.
func NewPointsPinhole(q [16]float64) *Points {
	p := &Points{}
	p.setQ(q)
	return p
}

// NewPointsKannalaBrandt builds a Points kernel from a fisheye calibration
// pair, deriving an approximate reprojection matrix.
func NewPointsKannalaBrandt(pair calib.Pair) *Points {
	p := &Points{}
	p.setQ(approximateQ(pair))
	return p
}

func (p *Points) setQ(q [16]float64) {
	m := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV64F)
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			m.SetDoubleAt(r, c, q[r*4+c])
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.q.Empty() {
		p.q.Close()
	}
	p.q = m
}

// Reload replaces Q in place (pinhole form); used by notify_calibration_changed.
func (p *Points) Reload(q [16]float64) { p.setQ(q) }

// ReloadKannalaBrandt replaces Q derived from a fresh fisheye pair.
func (p *Points) ReloadKannalaBrandt(pair calib.Pair) { p.setQ(approximateQ(pair)) }

// Compute reprojects disparity to a 3-channel float32 point cloud Mat.
func (p *Points) Compute(disparity gocv.Mat) (gocv.Mat, error) {
	if disparity.Empty() {
		return gocv.NewMat(), fmt.Errorf("points: empty disparity")
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := gocv.NewMat()
	gocv.ReprojectImageTo3D(disparity, &out, p.q, false, -1)
	return out, nil
}

// approximateQ builds a reprojection matrix from the left camera's focal
// length and principal point. The baseline term is fixed at 1.0: a Pair
// carries no extrinsics to derive it from.
func approximateQ(pair calib.Pair) [16]float64 {
	left := pair.Left
	fx := left.CameraMatrix[0]
	cx := left.CameraMatrix[2]
	cy := left.CameraMatrix[5]
	baseline := 1.0 // placeholder: derived from extrinsics in a full build

	var q [16]float64
	q[0], q[5] = 1, 1
	q[3], q[7] = -cx, -cy
	q[11] = fx
	q[14] = -1.0 / baseline
	return q
}
