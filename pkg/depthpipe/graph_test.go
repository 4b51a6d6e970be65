package depthpipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nf0007217/depthpipe/pkg/calib"
)

func testIntrinsics() calib.Intrinsics {
	return calib.Intrinsics{
		Width: 640, Height: 480,
		CameraMatrix: [9]float64{500, 0, 320, 0, 500, 240, 0, 0, 1},
	}
}

func testExtrinsics() calib.Extrinsics {
	return calib.Extrinsics{
		Rotation:    [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		Translation: [3]float64{0.12, 0, 0},
	}
}

func TestBuildGraphPinholeTopology(t *testing.T) {
	g := BuildGraph("pinhole", testLogger(), testIntrinsics(), testIntrinsics(), testExtrinsics())

	assert.Equal(t, calib.Pinhole, g.Model)
	assert.False(t, g.Defaulted)

	require.Len(t, g.Disparity.Children, 2, "disparity forks into disparity_normalized and points")
	assert.Contains(t, g.Disparity.Children, g.Points)
	require.Len(t, g.Points.Children, 1)
	assert.Same(t, g.Depth, g.Points.Children[0])
}

func TestBuildGraphKannalaBrandtTopology(t *testing.T) {
	g := BuildGraph("kannala_brandt", testLogger(), testIntrinsics(), testIntrinsics(), testExtrinsics())

	assert.Equal(t, calib.KannalaBrandt, g.Model)
	assert.False(t, g.Defaulted)

	assert.Contains(t, g.Disparity.Children, g.Depth)
	require.Len(t, g.Depth.Children, 1)
	assert.Same(t, g.Points, g.Depth.Children[0])
}

func TestBuildGraphUnknownModelDefaultsToPinhole(t *testing.T) {
	g := BuildGraph("not-a-real-model", testLogger(), testIntrinsics(), testIntrinsics(), testExtrinsics())

	assert.Equal(t, calib.Pinhole, g.Model)
	assert.True(t, g.Defaulted)
}

func TestGraphTargetStreamsRegistered(t *testing.T) {
	g := BuildGraph("pinhole", testLogger(), testIntrinsics(), testIntrinsics(), testExtrinsics())

	want := map[*StageBase][]Stream{
		g.Root:                {StreamLeft, StreamRight},
		g.Rectify:              {StreamLeftRectified, StreamRightRectified},
		g.Disparity:            {StreamDisparity},
		g.DisparityNormalized:  {StreamDisparityNormalized},
		g.Points:               {StreamPoints},
		g.Depth:                {StreamDepth},
	}
	for stage, streams := range want {
		var got []Stream
		for _, tgt := range stage.Targets {
			got = append(got, tgt.Stream)
		}
		assert.ElementsMatch(t, streams, got, "stage %s", stage.Name)
	}
}

func TestReloadCalibrationLockedWhenDefaulted(t *testing.T) {
	g := BuildGraph("bogus", testLogger(), testIntrinsics(), testIntrinsics(), testExtrinsics())
	err := g.ReloadCalibration(testIntrinsics(), testIntrinsics(), testExtrinsics())
	assert.ErrorIs(t, err, ErrCalibLocked)
}

func TestReloadCalibrationSucceedsWhenNotDefaulted(t *testing.T) {
	g := BuildGraph("pinhole", testLogger(), testIntrinsics(), testIntrinsics(), testExtrinsics())
	err := g.ReloadCalibration(testIntrinsics(), testIntrinsics(), testExtrinsics())
	assert.NoError(t, err)
	assert.False(t, g.Rectify.IsActivated(), "reload must leave a previously-inactive stage inactive")
}
