package depthpipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubPlugin struct {
	onRectify func(in *StageInput, out *StageOutput) bool
}

func (s *stubPlugin) OnRectify(in *StageInput, out *StageOutput) bool {
	if s.onRectify != nil {
		return s.onRectify(in, out)
	}
	return false
}
func (s *stubPlugin) OnDisparity(in *StageInput, out *StageOutput) bool             { return false }
func (s *stubPlugin) OnDisparityNormalized(in *StageInput, out *StageOutput) bool   { return false }
func (s *stubPlugin) OnPoints(in *StageInput, out *StageOutput) bool                { return false }
func (s *stubPlugin) OnDepth(in *StageInput, out *StageOutput) bool                 { return false }

func TestGatedHookPreferrsPlugin(t *testing.T) {
	reg := NewRegistry()
	var plugin Plugin = &stubPlugin{
		onRectify: func(in *StageInput, out *StageOutput) bool {
			out.Left.FrameID = 123
			return true
		},
	}

	hook := gatedHook(reg, []Stream{StreamLeftRectified, StreamRightRectified}, func(pl Plugin, in *StageInput, out *StageOutput) bool {
		return pl.(*stubPlugin).OnRectify(in, out)
	}, func() Plugin { return plugin })

	in := &StageData{}
	out := &StageData{}
	handled, err := hook(in, out, nil)
	assert.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, uint16(123), out.Left.FrameID)
}

func TestGatedHookPassthroughWhenNotSynthetic(t *testing.T) {
	stage := NewStageBase("rectify", testLogger(), true, true)
	stage.AddTargetStream(&TargetStream{Stream: StreamLeftRectified, SupportMode: ModeNative, EnabledMode: ModeNative})

	reg := NewRegistry()
	reg.Register(stage)

	hook := gatedHook(reg, []Stream{StreamLeftRectified}, func(pl Plugin, in *StageInput, out *StageOutput) bool {
		return false
	}, func() Plugin { return nil })

	in := &StageData{Left: Half{FrameID: 7}}
	out := &StageData{}
	handled, err := hook(in, out, nil)
	assert.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, uint16(7), out.Left.FrameID, "a native stream must pass through unchanged")
}

func TestGatedHookFallsThroughToCompute(t *testing.T) {
	stage := NewStageBase("rectify", testLogger(), true, true)
	stage.AddTargetStream(&TargetStream{Stream: StreamLeftRectified, EnabledMode: ModeSynthetic})

	reg := NewRegistry()
	reg.Register(stage)

	hook := gatedHook(reg, []Stream{StreamLeftRectified}, func(pl Plugin, in *StageInput, out *StageOutput) bool {
		return false
	}, func() Plugin { return nil })

	handled, err := hook(&StageData{}, &StageData{}, nil)
	assert.NoError(t, err)
	assert.False(t, handled, "a synthetic target with no plugin must fall through to compute")
}

func TestGatedHookComputesWhenOneHalfStillSynthetic(t *testing.T) {
	stage := NewStageBase("rectify", testLogger(), true, true)
	stage.AddTargetStream(&TargetStream{Stream: StreamLeftRectified, SupportMode: ModeNative, EnabledMode: ModeNative})
	stage.AddTargetStream(&TargetStream{Stream: StreamRightRectified, EnabledMode: ModeSynthetic})

	reg := NewRegistry()
	reg.Register(stage)

	hook := gatedHook(reg, []Stream{StreamLeftRectified, StreamRightRectified}, func(pl Plugin, in *StageInput, out *StageOutput) bool {
		return false
	}, func() Plugin { return nil })

	handled, err := hook(&StageData{}, &StageData{}, nil)
	assert.NoError(t, err)
	assert.False(t, handled, "right half still synthetic must fall through to compute even though left is native")
}
