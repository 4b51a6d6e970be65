// Package devicesim is a synthetic implementation of the Device and
// Calibration collaborators (§6), used by tests and cmd/depthpipe-inspect
// so the processor graph is exercisable without real hardware. Real
// device lifetime, calibration sourcing and frame decoding stay out of
// the core's scope (§1); this package lives entirely outside it.
package devicesim

import (
	"bytes"
	"sync"
	"time"

	"github.com/nf0007217/depthpipe/pkg/calib"
	"github.com/nf0007217/depthpipe/pkg/depthpipe"
	"github.com/nf0007217/depthpipe/pkg/wire"
)

// Device generates synthetic frames for a configurable set of natively
// supported streams, at a fixed tick rate, sharing one frame-id counter
// so LEFT/RIGHT (and LEFT_RECTIFIED/RIGHT_RECTIFIED, if configured as
// native) pair up exactly as a real stereo device would.
type Device struct {
	width, height int
	tick          time.Duration

	mu        sync.Mutex
	native    map[depthpipe.Stream]bool
	active    map[depthpipe.Stream]bool
	callbacks map[depthpipe.Stream]func(depthpipe.StreamData)
	last      map[depthpipe.Stream]depthpipe.StreamData

	running  bool
	stopAll  chan struct{}
	wg       sync.WaitGroup
	nextID   uint16
}

// NewDevice returns a synthetic device that natively produces nativeStreams.
func NewDevice(width, height int, tick time.Duration, nativeStreams ...depthpipe.Stream) *Device {
	native := make(map[depthpipe.Stream]bool, len(nativeStreams))
	for _, s := range nativeStreams {
		native[s] = true
	}
	return &Device{
		width:     width,
		height:    height,
		tick:      tick,
		native:    native,
		active:    make(map[depthpipe.Stream]bool),
		callbacks: make(map[depthpipe.Stream]func(depthpipe.StreamData)),
		last:      make(map[depthpipe.Stream]depthpipe.StreamData),
	}
}

func (d *Device) Supports(s depthpipe.Stream) bool { return d.native[s] }

func (d *Device) SetStreamCallback(s depthpipe.Stream, fn func(depthpipe.StreamData), replace bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.native[s] {
		return false
	}
	if fn == nil {
		delete(d.callbacks, s)
		return true
	}
	if _, exists := d.callbacks[s]; exists && !replace {
		return false
	}
	d.callbacks[s] = fn
	return true
}

func (d *Device) GetStreamData(s depthpipe.Stream) depthpipe.StreamData {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last[s]
}

func (d *Device) GetStreamDatas(s depthpipe.Stream) []depthpipe.StreamData {
	d.mu.Lock()
	sd, ok := d.last[s]
	d.mu.Unlock()
	if !ok || !sd.Valid {
		return nil
	}
	return []depthpipe.StreamData{sd}
}

func (d *Device) Start(source depthpipe.Stream) error {
	d.mu.Lock()
	d.active[source] = true
	first := !d.running
	if first {
		d.running = true
		d.stopAll = make(chan struct{})
	}
	d.mu.Unlock()

	if first {
		d.wg.Add(1)
		go d.loop()
	}
	return nil
}

func (d *Device) Stop(source depthpipe.Stream) error {
	d.mu.Lock()
	delete(d.active, source)
	empty := len(d.active) == 0
	running := d.running
	stop := d.stopAll
	if empty && running {
		d.running = false
	}
	d.mu.Unlock()

	if empty && running {
		close(stop)
		d.wg.Wait()
	}
	return nil
}

func (d *Device) WaitForStreams() { d.wg.Wait() }

func (d *Device) loop() {
	defer d.wg.Done()

	t := time.NewTicker(d.tick)
	defer t.Stop()

	d.mu.Lock()
	stop := d.stopAll
	d.mu.Unlock()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
			d.emit()
		}
	}
}

func (d *Device) emit() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++ // uint16 wraps at 0xFFFF -> 0x0000, matching §6's expected wraparound
	active := make([]depthpipe.Stream, 0, len(d.active))
	for s, on := range d.active {
		if on {
			active = append(active, s)
		}
	}
	d.mu.Unlock()

	for _, s := range active {
		sd := d.frameFor(s, id)

		d.mu.Lock()
		d.last[s] = sd
		cb := d.callbacks[s]
		d.mu.Unlock()

		if cb != nil {
			cb(sd)
		}
	}
}

// frameFor synthesizes one StreamData for stream s, frame-id id. It builds
// the frame the way a real device's byte stream would be decoded (§6):
// encode a header, push it through wire.NewReader, and hand the decoded
// envelope to a depthpipe.Frame before calling ToMatrix/Metadata, rather
// than fabricating a gocv.Mat and Metadata directly. Single-channel
// streams (disparity family) get an 8-bit grayscale frame; the rest get a
// 3-channel BGR frame.
func (d *Device) frameFor(s depthpipe.Stream, id uint16) depthpipe.StreamData {
	format := depthpipe.FormatBGR888
	channels := 3
	switch s {
	case depthpipe.StreamDisparity, depthpipe.StreamDisparityNormalized:
		format = depthpipe.FormatGray8
		channels = 1
	}

	hdr, err := decodeSyntheticHeader(id, uint32(time.Now().UnixMicro()/10), 100)
	if err != nil {
		return depthpipe.EmptyStreamData()
	}

	pixels := make([]byte, d.width*d.height*channels)
	for i := range pixels {
		pixels[i] = byte(id % 256)
	}

	f := &depthpipe.Frame{
		Width: d.width, Height: d.height,
		Format:       format,
		Pixels:       pixels,
		FrameID:      hdr.FrameID,
		Timestamp:    hdr.Timestamp,
		ExposureTime: hdr.ExposureTime,
	}

	mat, err := f.ToMatrix()
	if err != nil {
		return depthpipe.EmptyStreamData()
	}

	return depthpipe.StreamData{
		Mat:     mat,
		FrameID: f.FrameID,
		Meta:    f.Metadata(),
		Source:  f,
		Valid:   true,
	}
}

// decodeSyntheticHeader round-trips a tick's header fields through
// wire.EncodeHeader and wire.Reader, the same encode/decode path a real
// device's byte stream takes (§6), instead of fabricating the envelope
// fields the device hands upward.
func decodeSyntheticHeader(frameID uint16, timestamp uint32, exposure uint16) (wire.Header, error) {
	encoded := wire.EncodeHeader(wire.Header{FrameID: frameID, Timestamp: timestamp, ExposureTime: exposure})
	r := wire.NewReader(bytes.NewReader(encoded))
	defer r.Close()
	return r.Next()
}

// Calibration is a fixed synthetic stereo calibration.
type Calibration struct {
	Width, Height int
	Baseline      float64
}

// NewCalibration returns a plausible, fixed calibration for a width x
// height sensor with the given baseline in meters.
func NewCalibration(width, height int, baseline float64) *Calibration {
	return &Calibration{Width: width, Height: height, Baseline: baseline}
}

func (c *Calibration) GetIntrinsics(s depthpipe.Stream) calib.Intrinsics {
	fx := float64(c.Width)
	return calib.Intrinsics{
		Width: c.Width, Height: c.Height,
		CameraMatrix: [9]float64{
			fx, 0, float64(c.Width) / 2,
			0, fx, float64(c.Height) / 2,
			0, 0, 1,
		},
	}
}

func (c *Calibration) GetExtrinsics(from, to depthpipe.Stream) calib.Extrinsics {
	return calib.Extrinsics{
		Rotation:    [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		Translation: [3]float64{c.Baseline, 0, 0},
	}
}
