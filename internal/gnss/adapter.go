// Package gnss adapts a serial-attached GNSS receiver into a stream of
// position.Position fixes, auto-probing baud rate and folding together
// whichever NMEA sentences the receiver emits.
package gnss

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"rovercore/internal/parser"
	"rovercore/internal/port"
	"rovercore/internal/position"
	"rovercore/internal/roverrors"
)

// ProbeBaudRates are tried in order when the configured baud rate fails to
// yield a recognisable NMEA sentence within probeWindow.
var ProbeBaudRates = []int{115200, 38400, 9600}

const (
	probeWindow      = 2 * time.Second
	gllFallbackAfter = 5 * time.Second
)

// Adapter owns a serial port and turns its byte stream into Positions.
type Adapter struct {
	serial port.SerialPort
	log    *logrus.Entry

	lastGSA parser.Fix // most recent GSA fix, for the HDOP of GLL-derived fixes
	haveGSA bool

	lastRMCVTG parser.Fix // most recent course/speed enrichment
	haveEnrich bool

	lastGGAAt time.Time
	haveGGA   bool

	errorCount int
}

// NewAdapter builds an Adapter over the given serial port.
func NewAdapter(sp port.SerialPort, log *logrus.Entry) *Adapter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Adapter{serial: sp, log: log.WithField("component", "gnss_adapter")}
}

// Open opens the serial port at portName, probing ProbeBaudRates in order
// if the given baudRate does not produce a parseable sentence within
// probeWindow. baudRate <= 0 means start the probe at the first candidate.
func (a *Adapter) Open(portName string, baudRate int) error {
	candidates := ProbeBaudRates
	if baudRate > 0 {
		candidates = append([]int{baudRate}, ProbeBaudRates...)
	}

	var lastErr error
	for _, baud := range candidates {
		if err := a.serial.Open(portName, baud); err != nil {
			lastErr = err
			continue
		}
		if err := a.serial.SetReadTimeout(500 * time.Millisecond); err != nil {
			lastErr = err
			_ = a.serial.Close()
			continue
		}
		if a.probeForNMEA() {
			a.log.WithField("baud", baud).Info("gnss receiver synchronized")
			return nil
		}
		_ = a.serial.Close()
		lastErr = fmt.Errorf("no NMEA sentence observed at %d baud", baud)
	}

	return roverrors.New(roverrors.SerialUnavailable, fmt.Errorf("gnss: %s: %w", portName, lastErr))
}

// probeForNMEA reads for up to probeWindow and returns true if it sees a
// byte stream starting with '$', a reasonable signal the baud rate is
// correct.
func (a *Adapter) probeForNMEA() bool {
	deadline := time.Now().Add(probeWindow)
	buf := make([]byte, 256)
	for time.Now().Before(deadline) {
		n, err := a.serial.Read(buf)
		if err != nil {
			continue
		}
		for i := 0; i < n; i++ {
			if buf[i] == '$' {
				return true
			}
		}
	}
	return false
}

// Close closes the underlying serial port. It never flushes unread bytes
// from the port; the line buffer passed to ReadLine belongs to the caller
// and is left untouched.
func (a *Adapter) Close() error {
	return a.serial.Close()
}

// WriteRTCM forwards correction data to the receiver. It takes no lock:
// the RTK coordinator calls it from its writer goroutine while the reader
// goroutine may be inside ReadLine on the same port, and reads and writes
// are not serialized against each other.
func (a *Adapter) WriteRTCM(data []byte) error {
	_, err := a.serial.Write(data)
	if err != nil {
		return roverrors.New(roverrors.SerialWrite, err)
	}
	return nil
}

// ReadLine reads one NMEA sentence line (delimited by \r\n) from the port.
// It is the unit the position-reader goroutine calls in a loop.
func (a *Adapter) ReadLine(readBuf *[]byte) (string, error) {
	buf := make([]byte, 256)
	for {
		if idx := indexCRLF(*readBuf); idx >= 0 {
			line := string((*readBuf)[:idx])
			*readBuf = (*readBuf)[idx+2:]
			return line, nil
		}

		n, err := a.serial.Read(buf)
		if err != nil {
			return "", roverrors.New(roverrors.SerialRead, err)
		}
		if n == 0 {
			continue
		}
		*readBuf = append(*readBuf, buf[:n]...)
	}
}

func indexCRLF(b []byte) int {
	for i := 0; i+1 < len(b); i++ {
		if b[i] == '\r' && b[i+1] == '\n' {
			return i
		}
	}
	return -1
}

// ParseLine interprets one NMEA line into a Position, applying the
// GGA-canonical / GLL-fallback / RMC-VTG-enrichment / GSA-cache merge
// policy: GGA carries fix quality, satellites and HDOP and is the primary
// source of a publishable fix; GLL only contributes coordinates when no GGA
// has arrived in the last gllFallbackAfter; RMC/VTG refine course-over-ground
// and speed onto the next GGA-derived fix; GSA is cached for its HDOP
// only.
// ParseLine returns ok=false for sentence types that do not themselves
// produce a publishable fix (RMC, VTG, GSA, anything unrecognised).
func (a *Adapter) ParseLine(line string) (position.Position, bool, error) {
	fix, err := parser.Parse(line)
	if err != nil {
		a.errorCount++
		return position.Position{}, false, roverrors.New(roverrors.NMEAChecksum, err)
	}

	switch fix.Kind {
	case parser.KindGSA:
		a.lastGSA = fix
		a.haveGSA = true
		return position.Position{}, false, nil

	case parser.KindRMC, parser.KindVTG:
		if fix.CourseOverGround != nil || fix.SpeedMPS != nil {
			a.lastRMCVTG = fix
			a.haveEnrich = true
		}
		return position.Position{}, false, nil

	case parser.KindGGA:
		a.lastGGAAt = time.Now()
		a.haveGGA = true
		return a.buildFromGGA(fix), true, nil

	case parser.KindGLL:
		if !fix.Valid {
			return position.Position{}, false, nil
		}
		if a.haveGGA && time.Since(a.lastGGAAt) < gllFallbackAfter {
			return position.Position{}, false, nil
		}
		return a.buildFromGLL(fix), true, nil

	default:
		return position.Position{}, false, nil
	}
}

func (a *Adapter) buildFromGGA(fix parser.Fix) position.Position {
	pos := position.Position{
		Latitude:   fix.Latitude,
		Longitude:  fix.Longitude,
		Altitude:   fix.Altitude,
		Quality:    position.FixQualityFromNMEA(fix.FixQuality),
		Satellites: position.ClampSatellites(fix.Satellites),
		HDOP:       position.ClampHDOP(fix.HDOP),
		Timestamp:  time.Now(),
	}
	a.enrich(&pos)
	return pos
}

func (a *Adapter) buildFromGLL(fix parser.Fix) position.Position {
	pos := position.Position{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Quality:   position.Single,
		Timestamp: time.Now(),
	}
	if a.haveGSA {
		pos.HDOP = position.ClampHDOP(a.lastGSA.HDOP)
	}
	a.enrich(&pos)
	return pos
}

func (a *Adapter) enrich(pos *position.Position) {
	if a.haveEnrich {
		if a.lastRMCVTG.CourseOverGround != nil {
			c := *a.lastRMCVTG.CourseOverGround
			pos.CourseOverGround = &c
		}
		if a.lastRMCVTG.SpeedMPS != nil {
			s := *a.lastRMCVTG.SpeedMPS
			pos.SpeedMPS = &s
		}
	}
}

// ErrorCount returns the number of sentences that failed to parse since
// the adapter was created.
func (a *Adapter) ErrorCount() int {
	return a.errorCount
}
