package depthpipe

import (
	"fmt"

	"gocv.io/x/gocv"
)

// PixelFormat names the wire/native pixel layout of a Frame.
type PixelFormat int

const (
	FormatYUYV PixelFormat = iota
	FormatBGR888
	FormatGray8
)

func (f PixelFormat) String() string {
	switch f {
	case FormatYUYV:
		return "YUYV"
	case FormatBGR888:
		return "BGR888"
	case FormatGray8:
		return "GRAY8"
	default:
		return "UNKNOWN"
	}
}

// Frame is an immutable captured image plus its device-assigned metadata.
// Ownership is shared by every reader; it is never mutated after the
// device layer hands it to the dispatcher.
type Frame struct {
	Width, Height int
	Format        PixelFormat
	Pixels        []byte
	FrameID       uint16 // 16-bit wraparound is expected, not an error
	Timestamp     uint32 // 10us units, 32-bit wraparound is expected
	ExposureTime  uint16 // 10us units
}

// ToMatrix decodes the Frame into a BGR or single-channel Mat, depending on
// format. BGR888 and GRAY8 are passthrough views; YUYV is converted.
// The caller owns the returned Mat and must Close() it.
func (f *Frame) ToMatrix() (gocv.Mat, error) {
	if f == nil {
		return gocv.NewMat(), fmt.Errorf("nil frame")
	}

	switch f.Format {
	case FormatBGR888:
		return gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pixels)
	case FormatGray8:
		return gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC1, f.Pixels)
	case FormatYUYV:
		yuyv, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC2, f.Pixels)
		if err != nil {
			return gocv.NewMat(), err
		}
		defer yuyv.Close()
		bgr := gocv.NewMat()
		gocv.CvtColor(yuyv, &bgr, gocv.ColorYUVToBGRYUY2)
		return bgr, nil
	default:
		return gocv.NewMat(), fmt.Errorf("%w: pixel format %v", ErrNotSupported, f.Format)
	}
}

// Metadata mirrors a Frame's header fields without pinning the pixel
// buffer, for callers that want the envelope without the payload.
type Metadata struct {
	Width, Height int
	Format        PixelFormat
	FrameID       uint16
	Timestamp     uint32
	ExposureTime  uint16
}

// Metadata extracts f's envelope, for callers (e.g. pkg/devicesim) that
// decoded or built a Frame and now need a StreamData's Meta field.
func (f *Frame) Metadata() *Metadata { return metadataOf(f) }

func metadataOf(f *Frame) *Metadata {
	if f == nil {
		return nil
	}
	return &Metadata{
		Width:        f.Width,
		Height:       f.Height,
		Format:       f.Format,
		FrameID:      f.FrameID,
		Timestamp:    f.Timestamp,
		ExposureTime: f.ExposureTime,
	}
}

// StreamData is the external delivery record handed to stream listeners,
// callbacks and pull-style StreamConsumer.GetStreamData callers.
type StreamData struct {
	Meta    *Metadata
	Mat     gocv.Mat
	Source  *Frame
	FrameID uint16
	Valid   bool
}

// EmptyStreamData is returned for not-supported, disabled or not-yet-ready
// reads (§7). Its Mat is the gocv zero value and must not be Close()d twice.
func EmptyStreamData() StreamData {
	return StreamData{}
}
