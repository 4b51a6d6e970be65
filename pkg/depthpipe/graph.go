package depthpipe

import (
	"math"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"github.com/nf0007217/depthpipe/pkg/calib"
	"github.com/nf0007217/depthpipe/pkg/kernels"
)

// Graph is the fixed DAG built per calibration model (§4.3): Root feeds
// Rectify feeds Disparity feeds DisparityNormalized, and Points/Depth are
// ordered downstream of Disparity according to Model.
type Graph struct {
	Model     calib.Model
	Defaulted bool // true iff an unknown model fell back to Pinhole (§4.3, §7)

	Root                *StageBase
	Rectify             *StageBase
	Disparity           *StageBase
	DisparityNormalized *StageBase
	Points              *StageBase
	Depth               *StageBase

	rectifier *kernels.Rectifier
	disparity *kernels.Disparity
	points    *kernels.Points
	depthK    *kernels.Depth
}

// BuildGraph constructs the fixed-topology pipeline for modelName (§4.3).
// An unrecognized modelName falls back to Pinhole with a logged warning
// and sets Defaulted, which later inhibits ReloadCalibration (§7).
func BuildGraph(modelName string, log zerolog.Logger, left, right calib.Intrinsics, ext calib.Extrinsics) *Graph {
	model, ok := calib.ParseModel(modelName)
	g := &Graph{Model: model, Defaulted: !ok}
	if !ok {
		log.Warn().Err(ErrUnknownModel).Str("model", modelName).Msg("unknown calibration model, falling back to pinhole")
	}

	root := NewStageBase("root", log, true, true)
	rectify := NewStageBase("rectify", log, true, true)
	disparity := NewStageBase("disparity", log, true, false)
	dnorm := NewStageBase("disparity_normalized", log, false, false)
	points := NewStageBase("points", log, false, false)
	depth := NewStageBase("depth", log, false, false)

	root.AddChild(rectify)
	rectify.AddChild(disparity)
	disparity.AddChild(dnorm)

	switch model {
	case calib.Pinhole:
		disparity.AddChild(points)
		points.AddChild(depth)
	default: // KannalaBrandt
		disparity.AddChild(depth)
		depth.AddChild(points)
	}

	root.AddTargetStream(&TargetStream{Stream: StreamLeft, SupportMode: ModeNative, EnabledMode: ModeNative, Side: SideLeft})
	root.AddTargetStream(&TargetStream{Stream: StreamRight, SupportMode: ModeNative, EnabledMode: ModeNative, Side: SideRight})

	rectify.AddTargetStream(&TargetStream{Stream: StreamLeftRectified, Side: SideLeft})
	rectify.AddTargetStream(&TargetStream{Stream: StreamRightRectified, Side: SideRight})

	disparity.AddTargetStream(&TargetStream{Stream: StreamDisparity, Side: SideLeft})
	dnorm.AddTargetStream(&TargetStream{Stream: StreamDisparityNormalized, Side: SideLeft})
	points.AddTargetStream(&TargetStream{Stream: StreamPoints, Side: SideLeft})
	depth.AddTargetStream(&TargetStream{Stream: StreamDepth, Side: SideLeft})

	g.Root, g.Rectify, g.Disparity, g.DisparityNormalized, g.Points, g.Depth =
		root, rectify, disparity, dnorm, points, depth

	g.wireKernels(left, right, ext)
	return g
}

func (g *Graph) wireKernels(left, right calib.Intrinsics, ext calib.Extrinsics) {
	g.rectifier = kernels.NewRectifier(left, right, ext)
	g.Rectify.Compute = func(in, out *StageInput) error {
		l, r, err := g.rectifier.Compute(in.Left.Mat, in.Right.Mat)
		if err != nil {
			return err
		}
		out.Left = Half{Mat: l, FrameID: in.ID(), Meta: in.Left.Meta}
		out.Right = Half{Mat: r, FrameID: in.ID(), Meta: in.Right.Meta}
		return nil
	}

	g.disparity = kernels.NewDisparity(kernels.DisparityBM)
	g.Disparity.Compute = func(in, out *StageInput) error {
		// The disparity kernel takes single-channel views; rectified BGR
		// frames are converted to gray first.
		mats := [2]gocv.Mat{in.Left.Mat, in.Right.Mat}
		for i, m := range mats {
			if m.Channels() > 1 {
				gray := gocv.NewMat()
				defer gray.Close()
				gocv.CvtColor(m, &gray, gocv.ColorBGRToGray)
				mats[i] = gray
			}
		}
		d, err := g.disparity.Compute(mats[0], mats[1])
		if err != nil {
			return err
		}
		out.Left = Half{Mat: d, FrameID: in.ID()}
		return nil
	}

	g.DisparityNormalized.Compute = func(in, out *StageInput) error {
		n, err := kernels.Normalize(in.Left.Mat)
		if err != nil {
			return err
		}
		out.Left = Half{Mat: n, FrameID: in.ID()}
		return nil
	}

	switch g.Model {
	case calib.Pinhole:
		g.points = kernels.NewPointsPinhole(buildPinholeQ(left, right, ext))
		g.depthK = kernels.NewDepthPinhole(baseline(ext), left.CameraMatrix[0])
	default:
		pair := calib.Pair{Left: left, Right: right}
		g.points = kernels.NewPointsKannalaBrandt(pair)
		g.depthK = kernels.NewDepthKannalaBrandt(pair)
	}

	g.Points.Compute = func(in, out *StageInput) error {
		m, err := g.points.Compute(in.Left.Mat)
		if err != nil {
			return err
		}
		out.Left = Half{Mat: m, FrameID: in.ID()}
		return nil
	}
	g.Depth.Compute = func(in, out *StageInput) error {
		m, err := g.depthK.Compute(in.Left.Mat)
		if err != nil {
			return err
		}
		out.Left = Half{Mat: m, FrameID: in.ID()}
		return nil
	}
}

// SetDisparityMethod forwards to the disparity kernel (§6).
func (g *Graph) SetDisparityMethod(method kernels.DisparityMethod) {
	g.disparity.SetMethod(method)
}

// ReloadCalibration recomputes rectify maps and any derived parameters
// held downstream (Q, calibration pair) without rebuilding the graph
// (§4.7). It is a no-op when calibration defaulting is in effect (§7).
// The rectify stage is briefly deactivated so no Compute is in flight
// while its maps are swapped (§5).
func (g *Graph) ReloadCalibration(left, right calib.Intrinsics, ext calib.Extrinsics) error {
	if g.Defaulted {
		return ErrCalibLocked
	}

	wasActive := g.Rectify.IsActivated()
	if wasActive {
		g.Rectify.Deactivate(true)
	}
	g.rectifier.Reload(left, right, ext)
	if wasActive {
		g.Rectify.Activate()
	}

	switch g.Model {
	case calib.Pinhole:
		g.points.Reload(buildPinholeQ(left, right, ext))
		g.depthK.Reload(baseline(ext), left.CameraMatrix[0])
	default:
		pair := calib.Pair{Left: left, Right: right}
		g.points.ReloadKannalaBrandt(pair)
		g.depthK.Reload(baseline(ext), left.CameraMatrix[0])
	}
	return nil
}

func baseline(ext calib.Extrinsics) float64 {
	t := ext.Translation
	d := t[0]*t[0] + t[1]*t[1] + t[2]*t[2]
	if d <= 0 {
		return 1
	}
	return math.Sqrt(d)
}

func buildPinholeQ(left, right calib.Intrinsics, ext calib.Extrinsics) [16]float64 {
	fx := left.CameraMatrix[0]
	cx := left.CameraMatrix[2]
	cy := left.CameraMatrix[5]
	b := baseline(ext)

	var q [16]float64
	q[0], q[5] = 1, 1
	q[3], q[7] = -cx, -cy
	q[11] = fx
	q[14] = -1.0 / b
	return q
}
