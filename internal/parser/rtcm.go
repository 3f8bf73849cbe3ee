package parser

import (
	"github.com/go-gnss/rtcm/rtcm3"
	"github.com/goblimey/go-crc24q/crc24q"
)

const (
	rtcmPreamble   = 0xD3
	rtcmMaxBuffer  = 1000
	rtcmKeepOnClip = 100
)

// DataKind classifies a chunk of correction-stream bytes as NMEA text, the
// start of an RTCM binary frame, or unknown. Neither the NTRIP client nor
// the RTK coordinator calls DetectDataKind: the coordinator's reader loop
// feeds every chunk straight to RTCMParser.
type DataKind int

const (
	DataUnknown DataKind = iota
	DataNMEA
	DataRTCM
)

// DetectDataKind classifies a buffer by its leading bytes: '$' or '!' opens
// an NMEA sentence, 0xD3 opens an RTCM frame preamble.
func DetectDataKind(data []byte) DataKind {
	if len(data) == 0 {
		return DataUnknown
	}
	switch data[0] {
	case '$', '!':
		return DataNMEA
	case rtcmPreamble:
		return DataRTCM
	default:
		return DataUnknown
	}
}

// RTCMFrame is one decoded, CRC-verified RTCM 3.x message frame.
type RTCMFrame struct {
	MessageType int
	Payload     []byte
}

// RTCMParser accumulates receiver bytes and extracts complete, CRC-valid
// RTCM frames. It resyncs past garbage bytes rather than discarding the
// whole buffer, and caps its internal buffer so a stream that never
// produces a valid frame cannot grow it unbounded.
type RTCMParser struct {
	buffer    []byte
	discarded int // bytes skipped while resyncing past bad preambles/CRCs
}

// NewRTCMParser creates an empty parser.
func NewRTCMParser() *RTCMParser {
	return &RTCMParser{}
}

// Feed appends data and extracts every complete frame it can find. It
// returns the frames in arrival order; any trailing partial frame is kept
// internally for the next call.
func (p *RTCMParser) Feed(data []byte) []RTCMFrame {
	p.buffer = append(p.buffer, data...)

	var frames []RTCMFrame
	const maxIterations = 64 // loop guard matching the original's resync cap
	for i := 0; i < maxIterations; i++ {
		frame, ok := p.extractOne()
		if !ok {
			break
		}
		frames = append(frames, frame)
	}

	if len(p.buffer) > rtcmMaxBuffer {
		p.discarded += len(p.buffer) - rtcmKeepOnClip
		p.buffer = p.buffer[len(p.buffer)-rtcmKeepOnClip:]
	}

	return frames
}

// extractOne tries to pull a single frame off the front of the buffer. It
// returns ok=false when the buffer holds no complete, valid frame yet
// (either it is too short, or every preamble it tried failed CRC and was
// skipped).
func (p *RTCMParser) extractOne() (RTCMFrame, bool) {
	for len(p.buffer) > 0 {
		idx := p.findPreamble()
		if idx < 0 {
			// No preamble anywhere in the buffer; keep only enough trailing
			// bytes to catch a preamble split across Feed calls.
			if len(p.buffer) > 2 {
				p.discarded += len(p.buffer) - 2
				p.buffer = p.buffer[len(p.buffer)-2:]
			}
			return RTCMFrame{}, false
		}
		if idx > 0 {
			p.discarded += idx
			p.buffer = p.buffer[idx:]
		}

		if len(p.buffer) < 3 {
			return RTCMFrame{}, false // wait for length bytes
		}

		if p.buffer[1]&0xFC != 0 {
			// Reserved header bits set: not a real frame start; skip it.
			p.discarded++
			p.buffer = p.buffer[1:]
			continue
		}

		length := (int(p.buffer[1]&0x03) << 8) | int(p.buffer[2])
		total := length + 6 // 3-byte header + payload + 3-byte CRC
		if len(p.buffer) < total {
			return RTCMFrame{}, false // wait for the rest of the frame
		}

		frame := p.buffer[:total]
		if !verifyCRC(frame) {
			// Preamble byte was a false positive; skip it and keep scanning.
			p.discarded++
			p.buffer = p.buffer[1:]
			continue
		}

		messageType := (int(frame[3]) << 4) | (int(frame[4]) >> 4)
		payload := make([]byte, length)
		copy(payload, frame[3:3+length])

		p.buffer = p.buffer[total:]
		return RTCMFrame{MessageType: messageType, Payload: payload}, true
	}
	return RTCMFrame{}, false
}

func (p *RTCMParser) findPreamble() int {
	for i, b := range p.buffer {
		if b == rtcmPreamble {
			return i
		}
	}
	return -1
}

// verifyCRC checks the trailing 3-byte CRC-24Q of a complete frame.
func verifyCRC(frame []byte) bool {
	if len(frame) < 3 {
		return false
	}
	body := frame[:len(frame)-3]
	want := frame[len(frame)-3:]
	got := crc24q.Hash(body)
	return crc24q.HiByte(got) == want[0] && crc24q.MiByte(got) == want[1] && crc24q.LoByte(got) == want[2]
}

// Discarded returns the number of bytes skipped while resyncing past
// invalid preambles or CRC mismatches since the parser was created.
func (p *RTCMParser) Discarded() int {
	return p.discarded
}

// Reset clears the internal buffer, discarding any partial frame.
func (p *RTCMParser) Reset() {
	p.buffer = nil
}

// MessageTypeName returns a human-readable description of an RTCM message,
// used for diagnostic logging only. It first tries to deserialize the
// payload with rtcm3 to name a handful of message types precisely, falling
// back to a description keyed on the numeric type for everything else
// (rtcm3 only models a subset of the RTCM 3.x catalogue).
func MessageTypeName(messageType int, payload []byte) string {
	if msg, err := rtcm3.DeserializeMessage(payload); err == nil {
		switch msg.(type) {
		case rtcm3.Message1004:
			return "GPS Extended L1/L2 RTK Observables"
		case rtcm3.Message1005:
			return "Stationary RTK Reference Station ARP"
		case rtcm3.Message1019:
			return "GPS Ephemerides"
		}
	}
	return messageTypeNameByNumber(messageType)
}

func messageTypeNameByNumber(messageType int) string {
	switch messageType {
	case 1001:
		return "GPS L1-Only RTK Observables"
	case 1002:
		return "GPS Extended L1-Only RTK Observables"
	case 1003:
		return "GPS L1/L2 RTK Observables"
	case 1004:
		return "GPS Extended L1/L2 RTK Observables"
	case 1005:
		return "Stationary RTK Reference Station ARP"
	case 1006:
		return "Stationary RTK Reference Station ARP with Antenna Height"
	case 1007:
		return "Antenna Descriptor"
	case 1008:
		return "Antenna Descriptor & Serial Number"
	case 1009:
		return "GLONASS L1-Only RTK Observables"
	case 1010:
		return "GLONASS Extended L1-Only RTK Observables"
	case 1011:
		return "GLONASS L1/L2 RTK Observables"
	case 1012:
		return "GLONASS Extended L1/L2 RTK Observables"
	case 1019:
		return "GPS Ephemerides"
	case 1020:
		return "GLONASS Ephemerides"
	case 1033:
		return "Receiver and Antenna Descriptors"
	default:
		if messageType >= 1071 && messageType <= 1127 {
			return "MSM observation message"
		}
		return "Unknown RTCM Message Type"
	}
}
