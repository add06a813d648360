package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSystemReset(t *testing.T) {
	f := Frame{MsgType: 0x4A, Channel: 0}
	got := Encode(f)
	want := []byte{0xA4, 0x01, 0x4A, 0x00, 0xEF}
	assert.Equal(t, want, got)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{MsgType: 0x4E, Channel: 2, Payload: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}}
	buf := Encode(f)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, f.MsgType, got.MsgType)
	assert.Equal(t, f.Channel, got.Channel)
	assert.Equal(t, f.Payload, got.Payload)
}

func TestDecodeBadCRC(t *testing.T) {
	f := Frame{MsgType: 0x4A, Channel: 0, Payload: []byte{0x00}}
	buf := Encode(f)
	buf[len(buf)-1] ^= 0xFF

	_, err := Decode(buf)
	assert.ErrorIs(t, err, ErrBadCRC)
}

func TestDecodeBadSync(t *testing.T) {
	f := Frame{MsgType: 0x4A, Channel: 0, Payload: []byte{0x00}}
	buf := Encode(f)
	buf[0] = 0x00

	_, err := Decode(buf)
	assert.ErrorIs(t, err, ErrBadSync)
}

func TestDecodeShortFrame(t *testing.T) {
	_, err := Decode([]byte{0xA4, 0x01})
	assert.ErrorIs(t, err, ErrShortFrame)
}

func TestDecodeExtendedDeviceID(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	flags := byte(ExtFlagDeviceID)
	ext := []byte{0x39, 0x30, 0x78, 0x01} // id=0x3039 (12345), type=0x78
	full := append(append(append([]byte{}, payload...), flags), ext...)

	f := Frame{MsgType: 0x4E, Channel: 0, Payload: full}
	buf := Encode(f)

	got, err := Decode(buf)
	require.NoError(t, err)
	require.NotNil(t, got.DeviceID)
	assert.Equal(t, uint16(12345), got.DeviceID.ID)
	assert.Equal(t, uint8(0x78), got.DeviceID.Type)
	assert.Equal(t, payload, got.Payload)
}

func TestDeviceIDIsValid(t *testing.T) {
	assert.True(t, DeviceID{ID: 1, Type: 1}.IsValid())
	assert.False(t, DeviceID{ID: 0, Type: 1}.IsValid())
	assert.False(t, DeviceID{ID: 1, Type: 0}.IsValid())
}

func TestStreamScannerResyncsPastGarbage(t *testing.T) {
	good := Encode(Frame{MsgType: 0x4A, Channel: 0, Payload: []byte{0x00}})
	garbage := []byte{0x01, 0x02, 0x03}
	buf := append(append([]byte{}, garbage...), good...)

	var s StreamScanner
	frames := s.Scan(buf)
	require.Len(t, frames, 1)
	assert.Equal(t, byte(0x4A), frames[0].MsgType)

	stats := s.Stats()
	assert.Equal(t, uint64(1), stats.Decoded)
	assert.True(t, stats.Resyncs > 0)
}

func TestStreamScannerMultipleFrames(t *testing.T) {
	a := Encode(Frame{MsgType: 0x4E, Channel: 0, Payload: []byte{0x01}})
	b := Encode(Frame{MsgType: 0x4E, Channel: 1, Payload: []byte{0x02}})
	buf := append(append([]byte{}, a...), b...)

	var s StreamScanner
	frames := s.Scan(buf)
	require.Len(t, frames, 2)
	assert.Equal(t, byte(0), frames[0].Channel)
	assert.Equal(t, byte(1), frames[1].Channel)
}

func TestStreamScannerWaitsForMoreBytes(t *testing.T) {
	full := Encode(Frame{MsgType: 0x4E, Channel: 0, Payload: []byte{0x01, 0x02}})
	partial := full[:len(full)-1]

	var s StreamScanner
	frames := s.Scan(partial)
	assert.Empty(t, frames)
}

func TestFrameTimestampPreserved(t *testing.T) {
	ts := time.Now()
	f := Frame{MsgType: 0x4E, Channel: 0, Payload: []byte{0x00}, Timestamp: ts}
	assert.Equal(t, ts, f.Timestamp)
}
