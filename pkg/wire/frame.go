// Package wire decodes (and encodes) the depth camera's raw frame-header
// packet (§6): a big-endian, fixed-size envelope carrying frame-id,
// timestamp and exposure time ahead of the pixel payload. Decoding is byte-
// stream framing in the same shape as the teacher's pkg/extio
// ReadBuf/ReadStream loop (parse, validate, drop on failure, keep going),
// and the Reader's scratch buffer is pooled the same way extio pools its
// output buffers: borrowed from a bytebufferpool.Pool, grown by Write
// instead of a hand-rolled append, and returned on Close.
package wire

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/valyala/bytebufferpool"
)

const (
	headerByte = 0x3B
	sizeByte   = 0x0B

	// HeaderLen is the fixed size of the header packet: Header(1) +
	// Size(1) + FrameID(2) + Timestamp(4) + ExposureTime(2) + Checksum(1).
	HeaderLen = 11
)

var (
	ErrBadHeader  = errors.New("wire: bad header byte")
	ErrBadSize    = errors.New("wire: bad size byte")
	ErrBadCRC     = errors.New("wire: checksum mismatch")
	ErrShortFrame = errors.New("wire: short frame")
)

// bufPool holds the scratch buffers Readers borrow, mirroring extio's
// package-level bbpool.
var bufPool bytebufferpool.Pool

// Header is the decoded envelope of one raw frame (§6). Timestamp is a
// power-on monotonic counter in 10us units; its 32-bit wraparound at
// roughly 11.9 hours is expected and is not an error (§6, §7).
type Header struct {
	FrameID      uint16
	Timestamp    uint32
	ExposureTime uint16
}

// EncodeHeader renders h as the HeaderLen-byte wire envelope DecodeHeader
// expects, checksum included. Used by anything that originates frames on
// the wire side of the boundary (in this tree, pkg/devicesim) instead of
// handing the core hand-built structs.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderLen)
	buf[0] = headerByte
	buf[1] = sizeByte
	binary.BigEndian.PutUint16(buf[2:4], h.FrameID)
	binary.BigEndian.PutUint32(buf[4:8], h.Timestamp)
	binary.BigEndian.PutUint16(buf[8:10], h.ExposureTime)

	var crc byte
	for _, b := range buf[1:10] {
		crc ^= b
	}
	buf[10] = crc
	return buf
}

// DecodeHeader parses exactly HeaderLen bytes from buf. A checksum failure
// returns ErrBadCRC; the caller (normally a Reader) drops the frame and
// keeps going rather than treating it as fatal (§6, §7).
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderLen {
		return Header{}, ErrShortFrame
	}
	if buf[0] != headerByte {
		return Header{}, ErrBadHeader
	}
	if buf[1] != sizeByte {
		return Header{}, ErrBadSize
	}

	var crc byte
	for _, b := range buf[1:10] {
		crc ^= b
	}
	if crc != buf[10] {
		return Header{}, ErrBadCRC
	}

	return Header{
		FrameID:      binary.BigEndian.Uint16(buf[2:4]),
		Timestamp:    binary.BigEndian.Uint32(buf[4:8]),
		ExposureTime: binary.BigEndian.Uint16(buf[8:10]),
	}, nil
}

// Reader resyncs and decodes a stream of back-to-back header packets,
// dropping anything that fails checksum and advancing byte-by-byte to
// find the next plausible header, mirroring extio.Extio.ReadStream's
// grow-and-retry loop. Its scratch buffer is borrowed from bufPool and
// must be returned with Close.
type Reader struct {
	rd  io.Reader
	buf *bytebufferpool.ByteBuffer
}

// NewReader wraps rd for header-by-header decoding.
func NewReader(rd io.Reader) *Reader {
	return &Reader{rd: rd, buf: bufPool.Get()}
}

// Close returns the Reader's scratch buffer to the pool. The Reader must
// not be used afterward.
func (r *Reader) Close() {
	if r.buf != nil {
		bufPool.Put(r.buf)
		r.buf = nil
	}
}

// Next blocks until it can decode one valid Header, or returns an error
// from the underlying reader (including io.EOF).
func (r *Reader) Next() (Header, error) {
	for {
		for {
			h, ok := r.tryDecode()
			if ok {
				return h, nil
			}
			if len(r.buf.B) < HeaderLen || !r.resync() {
				break
			}
		}

		chunk := make([]byte, 4096)
		n, err := r.rd.Read(chunk)
		if n > 0 {
			r.buf.Write(chunk[:n])
		}
		if err != nil {
			return Header{}, err
		}
	}
}

// tryDecode attempts to decode a header at the front of the buffer.
func (r *Reader) tryDecode() (Header, bool) {
	if len(r.buf.B) < HeaderLen {
		return Header{}, false
	}
	h, err := DecodeHeader(r.buf.B[:HeaderLen])
	if err != nil {
		return Header{}, false
	}
	r.buf.B = r.buf.B[HeaderLen:]
	return h, true
}

// resync drops one byte and reports whether there's still enough buffered
// to try again without blocking on a new Read.
func (r *Reader) resync() bool {
	if len(r.buf.B) == 0 {
		return false
	}
	r.buf.B = r.buf.B[1:]
	return len(r.buf.B) >= HeaderLen
}
