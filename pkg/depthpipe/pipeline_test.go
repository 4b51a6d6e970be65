package depthpipe_test

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nf0007217/depthpipe/pkg/depthpipe"
	"github.com/nf0007217/depthpipe/pkg/devicesim"
)

func newTestPipeline(t *testing.T) *depthpipe.Pipeline {
	t.Helper()
	dev := devicesim.NewDevice(32, 24, 5*time.Millisecond, depthpipe.StreamLeft, depthpipe.StreamRight)
	cal := devicesim.NewCalibration(32, 24, 0.12)
	return depthpipe.NewPipeline(dev, cal, "pinhole", zerolog.Nop())
}

func TestNewPipelineUpgradesNativeStreams(t *testing.T) {
	p := newTestPipeline(t)

	assert.Equal(t, depthpipe.ModeNative, p.SupportsMode(depthpipe.StreamLeft))
	assert.Equal(t, depthpipe.ModeNative, p.SupportsMode(depthpipe.StreamRight))
	assert.Equal(t, depthpipe.ModeNone, p.SupportsMode(depthpipe.StreamDisparity))
}

func TestPipelineEnableActivatesDownstreamStages(t *testing.T) {
	p := newTestPipeline(t)

	require.NoError(t, p.EnableStream(depthpipe.StreamDisparity))
	assert.True(t, p.IsStreamEnabled(depthpipe.StreamDisparity))
	assert.True(t, p.Graph.Rectify.IsActivated())
	assert.True(t, p.Graph.Disparity.IsActivated())

	require.NoError(t, p.DisableStream(depthpipe.StreamDisparity))
	assert.False(t, p.IsStreamEnabled(depthpipe.StreamDisparity))
}

func TestPipelineGetStreamDataDisabledReturnsEmpty(t *testing.T) {
	p := newTestPipeline(t)
	sd := p.GetStreamData(depthpipe.StreamDisparity)
	assert.False(t, sd.Valid)
}

func TestPipelineGetStreamDataUnsupportedReturnsEmpty(t *testing.T) {
	p := newTestPipeline(t)
	sd := p.GetStreamData(depthpipe.Stream(999))
	assert.False(t, sd.Valid)
}

func TestPipelinePluginLifecycle(t *testing.T) {
	p := newTestPipeline(t)
	assert.False(t, p.HasPlugin())

	p.SetPlugin(noopPlugin{})
	assert.True(t, p.HasPlugin())

	p.SetPlugin(nil)
	assert.False(t, p.HasPlugin())
}

func TestPipelineStartStopVideoStreamingIdempotent(t *testing.T) {
	p := newTestPipeline(t)
	require.NoError(t, p.StartVideoStreaming())
	require.NoError(t, p.StartVideoStreaming()) // second call must be a no-op
	require.NoError(t, p.StopVideoStreaming())
	require.NoError(t, p.StopVideoStreaming())
}

func TestPipelineDeliversNativeFrameToListener(t *testing.T) {
	p := newTestPipeline(t)

	got := make(chan depthpipe.Stream, 8)
	p.SetStreamListener(func(s depthpipe.Stream, sd depthpipe.StreamData) { got <- s })

	require.NoError(t, p.StartVideoStreaming())
	defer p.StopVideoStreaming()

	select {
	case s := <-got:
		assert.Contains(t, []depthpipe.Stream{depthpipe.StreamLeft, depthpipe.StreamRight}, s)
	case <-time.After(time.Second):
		t.Fatal("listener never saw a native frame")
	}
}

type noopPlugin struct{}

func (noopPlugin) OnRectify(in, out *depthpipe.StageData) bool             { return false }
func (noopPlugin) OnDisparity(in, out *depthpipe.StageData) bool           { return false }
func (noopPlugin) OnDisparityNormalized(in, out *depthpipe.StageData) bool { return false }
func (noopPlugin) OnPoints(in, out *depthpipe.StageData) bool              { return false }
func (noopPlugin) OnDepth(in, out *depthpipe.StageData) bool               { return false }
