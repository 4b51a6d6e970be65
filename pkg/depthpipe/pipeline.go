package depthpipe

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/nf0007217/depthpipe/pkg/calib"
	"github.com/nf0007217/depthpipe/pkg/kernels"
)

// allStreams lists every Stream the graph can possibly know about, used
// for the stream-support initializer and StartVideoStreaming (§4.3, §6).
var allStreams = []Stream{
	StreamLeft, StreamRight,
	StreamLeftRectified, StreamRightRectified,
	StreamDisparity, StreamDisparityNormalized,
	StreamPoints, StreamDepth,
}

// Pipeline is the public SDK surface (§6): it owns the graph, registry and
// dispatcher, and is what a consumer of the depth camera SDK constructs
// and talks to.
type Pipeline struct {
	zerolog.Logger

	Device Device
	Calib  Calibration

	Graph      *Graph
	Registry   *Registry
	Dispatcher *Dispatcher

	pluginMu sync.RWMutex
	plugin   Plugin

	streamingMu sync.Mutex
	streaming   bool
}

// NewPipeline builds a full processor graph for modelName against dev/cal
// (§4.3) and wires the dispatcher, registry and per-stage process hooks.
// The pipeline starts with every non-native stream disabled.
func NewPipeline(dev Device, cal Calibration, modelName string, log zerolog.Logger) *Pipeline {
	left := cal.GetIntrinsics(StreamLeft)
	right := cal.GetIntrinsics(StreamRight)
	ext := cal.GetExtrinsics(StreamLeft, StreamRight)

	graph := BuildGraph(modelName, log, left, right, ext)

	p := &Pipeline{
		Logger:   log,
		Device:   dev,
		Calib:    cal,
		Graph:    graph,
		Registry: NewRegistry(),
	}

	for _, st := range []*StageBase{graph.Root, graph.Rectify, graph.Disparity, graph.DisparityNormalized, graph.Points, graph.Depth} {
		p.Registry.Register(st)
	}

	p.Dispatcher = NewDispatcher(p.Registry, graph)

	p.wireHooks()
	p.initStreamSupport()

	return p
}

// wireHooks installs each stage's ProcessHook (plugin + native-passthrough
// gate, §4.6) and PostProcessHook (listener/callback fanout, §4.1).
func (p *Pipeline) wireHooks() {
	getPlugin := func() Plugin {
		p.pluginMu.RLock()
		defer p.pluginMu.RUnlock()
		return p.plugin
	}

	p.Graph.Rectify.SetProcessHook(gatedHook(p.Registry, []Stream{StreamLeftRectified, StreamRightRectified},
		func(pl Plugin, in *StageInput, out *StageOutput) bool { return pl.OnRectify(in, out) }, getPlugin))
	p.Graph.Disparity.SetProcessHook(gatedHook(p.Registry, []Stream{StreamDisparity},
		func(pl Plugin, in *StageInput, out *StageOutput) bool { return pl.OnDisparity(in, out) }, getPlugin))
	p.Graph.DisparityNormalized.SetProcessHook(gatedHook(p.Registry, []Stream{StreamDisparityNormalized},
		func(pl Plugin, in *StageInput, out *StageOutput) bool { return pl.OnDisparityNormalized(in, out) }, getPlugin))
	p.Graph.Points.SetProcessHook(gatedHook(p.Registry, []Stream{StreamPoints},
		func(pl Plugin, in *StageInput, out *StageOutput) bool { return pl.OnPoints(in, out) }, getPlugin))
	p.Graph.Depth.SetProcessHook(gatedHook(p.Registry, []Stream{StreamDepth},
		func(pl Plugin, in *StageInput, out *StageOutput) bool { return pl.OnDepth(in, out) }, getPlugin))

	for _, st := range []*StageBase{p.Graph.Rectify, p.Graph.Disparity, p.Graph.DisparityNormalized, p.Graph.Points, p.Graph.Depth} {
		stage := st
		stage.SetPostProcessHook(func(out *StageOutput) { p.fanout(stage, out) })
	}
}

// fanout notifies the global listener and any per-stream callback for
// every target stream a stage just produced (§4.1, §6).
func (p *Pipeline) fanout(stage *StageBase, out *StageOutput) {
	for _, t := range stage.Targets {
		if t.EnabledMode != ModeSynthetic {
			continue
		}
		half := out.Left
		if t.Side == SideRight {
			half = out.Right
		}
		sd := StreamData{Mat: half.Mat, FrameID: half.FrameID, Meta: half.Meta, Valid: true}
		p.Dispatcher.notify(t.Stream, sd)
		if cb := p.Registry.callbackFor(t.Stream); cb != nil {
			cb(sd)
		}
	}
}

// initStreamSupport asks the device which streams it produces natively
// and upgrades their support/enabled mode accordingly (§4.3).
func (p *Pipeline) initStreamSupport() {
	for _, s := range allStreams {
		if p.Device.Supports(s) {
			p.Registry.UpgradeNative(s)
		}
	}
}

// SetStreamListener installs the process-wide listener (§6).
func (p *Pipeline) SetStreamListener(f func(Stream, StreamData)) {
	p.Dispatcher.SetListener(f)
}

// EnableStream enables s with no change callback, non-dry-run.
func (p *Pipeline) EnableStream(s Stream) error {
	return p.Registry.Enable(s, nil, false)
}

// EnableStreamWith enables s, invoking onChange for each target whose
// enabled_mode flips (or would flip, under dryRun), per §4.4.
func (p *Pipeline) EnableStreamWith(s Stream, onChange func(Stream), dryRun bool) error {
	return p.Registry.Enable(s, onChange, dryRun)
}

// DisableStream disables s with no change callback, non-dry-run.
func (p *Pipeline) DisableStream(s Stream) error {
	return p.Registry.Disable(s, nil, false)
}

// DisableStreamWith mirrors EnableStreamWith for disable.
func (p *Pipeline) DisableStreamWith(s Stream, onChange func(Stream), dryRun bool) error {
	return p.Registry.Disable(s, onChange, dryRun)
}

// IsStreamEnabled reports whether s currently has any enabled mode.
func (p *Pipeline) IsStreamEnabled(s Stream) bool {
	return p.Registry.EnabledMode(s) != ModeNone
}

// Supports reports whether the pipeline knows about stream s at all.
func (p *Pipeline) Supports(s Stream) bool { return p.Registry.Supports(s) }

// SupportsMode returns s's fixed support_mode.
func (p *Pipeline) SupportsMode(s Stream) Mode { return p.Registry.SupportMode(s) }

// SetStreamCallback installs/removes the per-stream callback (§6).
func (p *Pipeline) SetStreamCallback(s Stream, f func(StreamData)) bool {
	return p.Registry.SetCallback(s, f)
}

// HasStreamCallback reports whether s has a callback installed.
func (p *Pipeline) HasStreamCallback(s Stream) bool { return p.Registry.HasCallback(s) }

// GetStreamData pulls the latest data for s (§6): NATIVE delegates to the
// device, SYNTHETIC reads the owning stage's last output and extracts the
// correct half, disabled/unknown/not-yet-ready reads return an empty
// StreamData (§7).
func (p *Pipeline) GetStreamData(s Stream) StreamData {
	e, ok := p.Registry.lookup(s)
	if !ok {
		p.Error().Stringer("stream", s).Err(ErrNoSuchStage).Msg("get_stream_data")
		return EmptyStreamData()
	}

	switch p.Registry.EnabledMode(s) {
	case ModeNative:
		return p.Device.GetStreamData(s)
	case ModeSynthetic:
		out := e.stage.LastOutput()
		if out == nil {
			p.Trace().Stringer("stream", s).Err(ErrNotReady).Msg("get_stream_data")
			return EmptyStreamData()
		}
		half := out.Left
		if e.target.Side == SideRight {
			half = out.Right
		}
		return StreamData{Mat: half.Mat, FrameID: half.FrameID, Meta: half.Meta, Valid: true}
	default:
		p.Error().Stringer("stream", s).Err(ErrDisabled).Msg("get_stream_data")
		return EmptyStreamData()
	}
}

// GetStreamDatas pulls an ordered sequence for s (§6): NATIVE delegates,
// SYNTHETIC returns a single-element sequence (or none, if not ready).
func (p *Pipeline) GetStreamDatas(s Stream) []StreamData {
	if p.Registry.EnabledMode(s) == ModeNative {
		return p.Device.GetStreamDatas(s)
	}
	sd := p.GetStreamData(s)
	if !sd.Valid {
		return nil
	}
	return []StreamData{sd}
}

// StartVideoStreaming installs device callbacks for every NATIVE-support
// stream, routed through the dispatcher. Idempotent (§6).
func (p *Pipeline) StartVideoStreaming() error {
	p.streamingMu.Lock()
	defer p.streamingMu.Unlock()
	if p.streaming {
		return nil
	}

	for _, s := range allStreams {
		if p.Registry.SupportMode(s) != ModeNative {
			continue
		}
		stream := s
		p.Device.SetStreamCallback(stream, func(sd StreamData) {
			p.Dispatcher.Dispatch(stream, sd)
		}, true)
		if err := p.Device.Start(stream); err != nil {
			return err
		}
	}

	p.streaming = true
	return nil
}

// StopVideoStreaming removes device callbacks for every NATIVE-support
// stream (§6).
func (p *Pipeline) StopVideoStreaming() error {
	p.streamingMu.Lock()
	defer p.streamingMu.Unlock()
	if !p.streaming {
		return nil
	}

	for _, s := range allStreams {
		if p.Registry.SupportMode(s) != ModeNative {
			continue
		}
		p.Device.SetStreamCallback(s, nil, true)
		if err := p.Device.Stop(s); err != nil {
			return err
		}
	}

	p.streaming = false
	return nil
}

// SetPlugin installs (or clears, with nil) the optional override (§4.6, §6).
func (p *Pipeline) SetPlugin(pl Plugin) {
	p.pluginMu.Lock()
	p.plugin = pl
	p.pluginMu.Unlock()
}

// HasPlugin reports whether a plugin is currently installed.
func (p *Pipeline) HasPlugin() bool {
	p.pluginMu.RLock()
	defer p.pluginMu.RUnlock()
	return p.plugin != nil
}

// SetDisparityMethod forwards to the disparity stage's kernel (§6).
func (p *Pipeline) SetDisparityMethod(method kernels.DisparityMethod) {
	p.Graph.SetDisparityMethod(method)
}

// NotifyCalibrationChanged reloads intrinsics/extrinsics from the
// calibration collaborator and propagates them to the rectify stage and
// whatever it feeds downstream (§6, §4.7). A no-op on stored values when
// calibration defaulting is in effect (§7). Returns ErrStageRunning,
// rather than blocking behind it, if rectify has a compute in flight at
// the moment of the call; this is a best-effort fast-reject, not a lock
// (the stage could still start a compute immediately after the check).
func (p *Pipeline) NotifyCalibrationChanged() error {
	if p.Graph.Rectify.InFlight() {
		return ErrStageRunning
	}

	left := p.Calib.GetIntrinsics(StreamLeft)
	right := p.Calib.GetIntrinsics(StreamRight)
	ext := p.Calib.GetExtrinsics(StreamLeft, StreamRight)
	return p.Graph.ReloadCalibration(left, right, ext)
}

// CalibrationModel reports the model the graph was actually built with
// (PINHOLE if the requested model was unknown, §4.3).
func (p *Pipeline) CalibrationModel() calib.Model { return p.Graph.Model }
