package wire

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checksummed(frameID uint16, ts uint32, exposure uint16) []byte {
	buf := make([]byte, HeaderLen)
	buf[0] = headerByte
	buf[1] = sizeByte
	buf[2] = byte(frameID >> 8)
	buf[3] = byte(frameID)
	buf[4] = byte(ts >> 24)
	buf[5] = byte(ts >> 16)
	buf[6] = byte(ts >> 8)
	buf[7] = byte(ts)
	buf[8] = byte(exposure >> 8)
	buf[9] = byte(exposure)

	var crc byte
	for _, b := range buf[1:10] {
		crc ^= b
	}
	buf[10] = crc
	return buf
}

func TestDecodeHeader(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		buf := checksummed(42, 123456, 500)
		h, err := DecodeHeader(buf)
		require.NoError(t, err)
		assert.Equal(t, uint16(42), h.FrameID)
		assert.Equal(t, uint32(123456), h.Timestamp)
		assert.Equal(t, uint16(500), h.ExposureTime)
	})

	t.Run("short buffer", func(t *testing.T) {
		_, err := DecodeHeader(make([]byte, 4))
		assert.ErrorIs(t, err, ErrShortFrame)
	})

	t.Run("bad header byte", func(t *testing.T) {
		buf := checksummed(1, 1, 1)
		buf[0] = 0x00
		_, err := DecodeHeader(buf)
		assert.ErrorIs(t, err, ErrBadHeader)
	})

	t.Run("bad size byte", func(t *testing.T) {
		buf := checksummed(1, 1, 1)
		buf[1] = 0x00
		_, err := DecodeHeader(buf)
		assert.ErrorIs(t, err, ErrBadSize)
	})

	t.Run("bad checksum", func(t *testing.T) {
		buf := checksummed(1, 1, 1)
		buf[10] ^= 0xFF
		_, err := DecodeHeader(buf)
		assert.ErrorIs(t, err, ErrBadCRC)
	})

	t.Run("frame-id wraps without error", func(t *testing.T) {
		buf := checksummed(0xFFFF, 1, 1)
		h, err := DecodeHeader(buf)
		require.NoError(t, err)
		assert.Equal(t, uint16(0xFFFF), h.FrameID)
	})
}

func TestEncodeHeaderRoundTrips(t *testing.T) {
	want := Header{FrameID: 42, Timestamp: 123456, ExposureTime: 500}
	h, err := DecodeHeader(EncodeHeader(want))
	require.NoError(t, err)
	assert.Equal(t, want, h)
}

func TestReaderResyncsPastGarbage(t *testing.T) {
	var stream bytes.Buffer
	stream.WriteByte(0xAA) // junk byte before the first valid header
	stream.Write(checksummed(1, 10, 100))
	stream.Write(checksummed(2, 20, 100))

	r := NewReader(&stream)
	defer r.Close()

	h1, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint16(1), h1.FrameID)

	h2, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), h2.FrameID)
}

func TestReaderPropagatesEOF(t *testing.T) {
	r := NewReader(bytes.NewReader(nil))
	defer r.Close()
	_, err := r.Next()
	assert.True(t, errors.Is(err, io.EOF))
}

func TestReaderDropsFailedChecksum(t *testing.T) {
	bad := checksummed(1, 10, 100)
	bad[10] ^= 0xFF // corrupt checksum

	var stream bytes.Buffer
	stream.Write(bad)
	stream.Write(checksummed(2, 20, 100))

	r := NewReader(&stream)
	defer r.Close()
	h, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), h.FrameID)
}
