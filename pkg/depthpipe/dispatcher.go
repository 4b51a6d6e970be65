package depthpipe

import "sync"

// Dispatcher is the device-facing entry point (§4.5): it routes every
// natively-delivered frame by stream, pairing left/right eyes and
// fanning out to the graph without re-synthesizing what the device
// already produced.
type Dispatcher struct {
	reg   *Registry
	graph *Graph

	latchRaw  *Latch // LEFT/RIGHT
	latchRect *Latch // LEFT_RECTIFIED/RIGHT_RECTIFIED

	mu       sync.RWMutex
	listener func(Stream, StreamData)
}

// NewDispatcher wires a dispatcher for graph, looked up through reg.
func NewDispatcher(reg *Registry, graph *Graph) *Dispatcher {
	return &Dispatcher{
		reg:       reg,
		graph:     graph,
		latchRaw:  NewLatch(),
		latchRect: NewLatch(),
	}
}

// SetListener installs the process-wide stream listener (§6). Safe to
// call at most once per pipeline lifetime per spec; later calls replace
// it, which is safe because invoking it never holds any pipeline lock
// (§5).
func (d *Dispatcher) SetListener(f func(Stream, StreamData)) {
	d.mu.Lock()
	d.listener = f
	d.mu.Unlock()
}

func (d *Dispatcher) notify(s Stream, sd StreamData) {
	d.mu.RLock()
	l := d.listener
	d.mu.RUnlock()
	if l != nil {
		l(s, sd)
	}
}

// Dispatch routes one natively-produced frame (§4.5). It is the only
// entry point the device collaborator's stream callbacks should call.
func (d *Dispatcher) Dispatch(stream Stream, sd StreamData) {
	d.notify(stream, sd)

	h := Half{Mat: sd.Mat, FrameID: sd.FrameID, Meta: sd.Meta}

	switch stream {
	case StreamLeft, StreamRight:
		if pair, ok := d.latchRaw.Offer(stream == StreamLeft, h); ok {
			d.graph.Rectify.Submit(&pair)
		}

	case StreamLeftRectified, StreamRightRectified:
		if pair, ok := d.latchRect.Offer(stream == StreamLeftRectified, h); ok {
			for _, c := range d.graph.Rectify.Children {
				c.Submit(&pair)
			}
		}

	case StreamDisparity, StreamDisparityNormalized, StreamPoints, StreamDepth:
		e, ok := d.reg.lookup(stream)
		if !ok {
			return
		}
		single := NewSingle(sd.Mat, sd.FrameID, sd.Meta)
		for _, c := range e.stage.Children {
			c.Submit(&single)
		}
	}
}
