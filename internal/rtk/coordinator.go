// Package rtk owns the GNSS receiver adapter and an optional NTRIP
// correction stream, fans out published fixes to observers, and forwards
// RTCM corrections from the caster down to the receiver.
package rtk

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goblimey/go-crc24q/crc24q"
	"github.com/sirupsen/logrus"

	"rovercore/internal/gnss"
	"rovercore/internal/ntrip"
	"rovercore/internal/parser"
	"rovercore/internal/position"
	"rovercore/internal/roverrors"
)

const (
	rtcmQueueCapacity = 100
	ggaUploadInterval = 1 * time.Second
)

// Coordinator wires a GNSS adapter to an optional NTRIP client: it reads
// positions off the serial port, forwards RTCM bytes from the caster back
// to the receiver, and (if connected) uploads the rover's GGA position
// once a second so the caster can serve a nearby base station.
type Coordinator struct {
	adapter *gnss.Adapter
	client  *ntrip.Client
	log     *logrus.Entry

	mu          sync.Mutex
	observers   []position.Observer
	lastFix     position.Position
	haveFix     bool
	rtcmDropped int

	rtcmQueue chan parser.RTCMFrame

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewCoordinator builds a Coordinator over an already-opened adapter. client
// may be nil, in which case the coordinator runs in GPS-only mode: it still
// publishes positions but never reads or forwards RTCM.
func NewCoordinator(adapter *gnss.Adapter, client *ntrip.Client, log *logrus.Entry) *Coordinator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Coordinator{
		adapter:   adapter,
		client:    client,
		log:       log.WithField("component", "rtk_coordinator"),
		rtcmQueue: make(chan parser.RTCMFrame, rtcmQueueCapacity),
	}
}

// RegisterObserver subscribes obs to every future published position.
func (c *Coordinator) RegisterObserver(obs position.Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, obs)
}

// Start launches the position-reader goroutine and, if an NTRIP client was
// provided, the RTCM-reader, RTCM-writer and GGA-uploader goroutines.
func (c *Coordinator) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.positionReaderLoop(runCtx)

	if c.client != nil {
		c.wg.Add(3)
		go c.rtcmReaderLoop(runCtx)
		go c.rtcmWriterLoop(runCtx)
		go c.ggaUploaderLoop(runCtx)
	} else {
		c.log.Info("no NTRIP client configured, running GPS-only")
	}

	return nil
}

// Stop cancels all coordinator goroutines and waits for them to exit.
func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if c.client != nil {
		_ = c.client.Close()
	}
	_ = c.adapter.Close()
}

func (c *Coordinator) positionReaderLoop(ctx context.Context) {
	defer c.wg.Done()
	var readBuf []byte

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.adapter.ReadLine(&readBuf)
		if err != nil {
			c.log.WithError(err).Warn("position read error")
			continue
		}

		pos, ok, err := c.adapter.ParseLine(line)
		if err != nil {
			c.log.WithError(err).Debug("discarding unparseable nmea sentence")
			continue
		}
		if !ok || !pos.Valid() {
			continue
		}

		c.publish(pos)
	}
}

func (c *Coordinator) publish(pos position.Position) {
	c.mu.Lock()
	c.lastFix = pos
	c.haveFix = true
	observers := append([]position.Observer(nil), c.observers...)
	c.mu.Unlock()

	for _, obs := range observers {
		obs.OnPositionUpdate(pos)
	}
}

func (c *Coordinator) rtcmReaderLoop(ctx context.Context) {
	defer c.wg.Done()

	if err := c.client.ConnectWithRetry(ctx); err != nil {
		c.log.WithError(err).Error("ntrip connect failed, giving up")
		return
	}

	rtcmParser := parser.NewRTCMParser()
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := c.client.Read(buf)
		if err != nil {
			if roverrors.Is(err, roverrors.NTRIPTimeout) {
				continue
			}
			c.log.WithError(err).Warn("ntrip read error, reconnecting")
			if err := c.client.ConnectWithRetry(ctx); err != nil {
				c.log.WithError(err).Error("ntrip reconnect failed, giving up")
				return
			}
			continue
		}

		for _, frame := range rtcmParser.Feed(buf[:n]) {
			c.log.WithField("message", parser.MessageTypeName(frame.MessageType, frame.Payload)).Debug("rtcm frame received")
			select {
			case c.rtcmQueue <- frame:
			default:
				// Queue full: drop the oldest frame to make room rather
				// than block the reader on a slow serial writer.
				select {
				case <-c.rtcmQueue:
				default:
				}
				c.mu.Lock()
				c.rtcmDropped++
				c.mu.Unlock()
				c.rtcmQueue <- frame
			}
		}
	}
}

func (c *Coordinator) rtcmWriterLoop(ctx context.Context) {
	defer c.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-c.rtcmQueue:
			// Re-frame the verified payload (preamble, 10-bit length,
			// CRC-24Q) so the receiver gets a complete RTCM 3.x message.
			n := len(frame.Payload)
			raw := append([]byte{0xD3, byte(n>>8) & 0x03, byte(n)}, frame.Payload...)
			crc := crc24q.Hash(raw)
			raw = append(raw, crc24q.HiByte(crc), crc24q.MiByte(crc), crc24q.LoByte(crc))
			if err := c.adapter.WriteRTCM(raw); err != nil {
				c.log.WithError(err).Warn("failed to forward rtcm to receiver")
			}
		}
	}
}

func (c *Coordinator) ggaUploaderLoop(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(ggaUploadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			pos := c.lastFix
			have := c.haveFix
			c.mu.Unlock()
			if !have {
				continue
			}
			sentence := synthesizeGGA(pos)
			if err := c.client.SendGGA(sentence); err != nil {
				c.log.WithError(err).Debug("gga upload failed")
			}
		}
	}
}

// synthesizeGGA builds a minimal GGA sentence (no checksum validation by
// the caster is assumed necessary beyond a syntactically valid line) to
// report the rover's approximate position to the caster.
func synthesizeGGA(pos position.Position) string {
	latHem := "N"
	absLat := pos.Latitude
	if absLat < 0 {
		latHem = "S"
		absLat = -absLat
	}
	latDeg := int(absLat)
	latMin := (absLat - float64(latDeg)) * 60

	lonHem := "E"
	absLon := pos.Longitude
	if absLon < 0 {
		lonHem = "W"
		absLon = -absLon
	}
	lonDeg := int(absLon)
	lonMin := (absLon - float64(lonDeg)) * 60

	body := fmt.Sprintf("GPGGA,%s,%02d%07.4f,%s,%03d%07.4f,%s,%d,%02d,%.1f,%.1f,M,0.0,M,,",
		pos.Timestamp.UTC().Format("150405.00"),
		latDeg, latMin, latHem,
		lonDeg, lonMin, lonHem,
		ggaQualityFrom(pos.Quality), pos.Satellites, pos.HDOP, pos.Altitude)

	return "$" + body + "*" + checksumHex(body)
}

func ggaQualityFrom(q position.FixQuality) int {
	switch q {
	case position.NoFix:
		return 0
	case position.DGPS:
		return 2
	case position.RTKFloat:
		return 5
	case position.RTKFixed:
		return 4
	default:
		return 1
	}
}

func checksumHex(body string) string {
	var c byte
	for i := 0; i < len(body); i++ {
		c ^= body[i]
	}
	return fmt.Sprintf("%02X", c)
}

// LastFix returns the most recently published position and whether one has
// been received yet.
func (c *Coordinator) LastFix() (position.Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastFix, c.haveFix
}

// RTCMDropped returns the number of RTCM frames dropped due to a full
// forwarding queue.
func (c *Coordinator) RTCMDropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rtcmDropped
}
