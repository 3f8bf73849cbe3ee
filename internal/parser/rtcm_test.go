package parser

import (
	"testing"

	"github.com/goblimey/go-crc24q/crc24q"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildFrame constructs a valid RTCM 3.x frame for a given message type and
// payload body (the body here is a minimal stand-in; real messages carry
// structured bitfields the parser does not need to understand).
func buildFrame(messageType int, extraPayload int) []byte {
	payloadLen := 2 + extraPayload
	header := []byte{
		rtcmPreamble,
		byte((payloadLen >> 8) & 0x03),
		byte(payloadLen & 0xFF),
	}
	payload := make([]byte, payloadLen)
	payload[0] = byte(messageType >> 4)
	payload[1] = byte((messageType & 0x0F) << 4)

	body := append(header, payload...)
	crc := crc24q.Hash(body)
	frame := append(body, crc24q.HiByte(crc), crc24q.MiByte(crc), crc24q.LoByte(crc))
	return frame
}

func TestRTCMParserExtractsValidFrame(t *testing.T) {
	frame := buildFrame(1005, 0)

	p := NewRTCMParser()
	frames := p.Feed(frame)
	require.Len(t, frames, 1)
	assert.Equal(t, 1005, frames[0].MessageType)
}

func TestRTCMParserResyncsPastGarbage(t *testing.T) {
	garbage := []byte{0x01, 0x02, rtcmPreamble, 0xFF, 0xFF, 0xFF} // fake preamble, bad CRC
	frame := buildFrame(1077, 10)

	p := NewRTCMParser()
	frames := p.Feed(append(garbage, frame...))
	require.Len(t, frames, 1)
	assert.Equal(t, 1077, frames[0].MessageType)
	assert.Greater(t, p.Discarded(), 0)
}

func TestRTCMParserHandlesFragmentation(t *testing.T) {
	frame := buildFrame(1004, 20)

	p := NewRTCMParser()
	assert.Empty(t, p.Feed(frame[:5]))
	assert.Empty(t, p.Feed(frame[5:len(frame)-3]))
	frames := p.Feed(frame[len(frame)-3:])
	require.Len(t, frames, 1)
	assert.Equal(t, 1004, frames[0].MessageType)
}

func TestRTCMParserCapsBuffer(t *testing.T) {
	p := NewRTCMParser()
	junk := make([]byte, rtcmMaxBuffer+500)
	for i := range junk {
		junk[i] = 0xAB // never a preamble byte
	}
	p.Feed(junk)
	assert.LessOrEqual(t, len(p.buffer), rtcmKeepOnClip)
}

func TestDetectDataKind(t *testing.T) {
	assert.Equal(t, DataNMEA, DetectDataKind([]byte("$GPGGA,...")))
	assert.Equal(t, DataRTCM, DetectDataKind([]byte{rtcmPreamble, 0, 0}))
	assert.Equal(t, DataUnknown, DetectDataKind([]byte{0x7F}))
	assert.Equal(t, DataUnknown, DetectDataKind(nil))
}
