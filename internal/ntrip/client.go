// Package ntrip implements a minimal NTRIP version 1 client: a raw TCP
// (optionally TLS) connection that speaks the caster's HTTP-like handshake
// by hand, since NTRIP responses (ICY 200 OK, SOURCETABLE dumps) are not
// valid HTTP and net/http cannot be used for the data stream itself.
package ntrip

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rovercore/internal/roverrors"
)

const (
	connectionTimeout = 10 * time.Second
	dataTimeout       = 3 * time.Second
	reconnectInterval = 1 * time.Second
	maxReconnectTries = 5
	userAgentDefault  = "NTRIP rovercore/1.0"
)

// Config holds everything needed to reach one mountpoint on one caster.
type Config struct {
	Host       string
	Port       int
	Mountpoint string
	Username   string
	Password   string
	UseTLS     bool
}

// Client is a connected (or reconnecting) NTRIP session for one
// mountpoint.
type Client struct {
	cfg Config
	log *logrus.Entry

	mu       sync.Mutex
	conn     net.Conn
	reader   *bufio.Reader
	attempts int

	bytesReceived int64
}

// NewClient builds a Client for the given configuration.
func NewClient(cfg Config, log *logrus.Entry) *Client {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{cfg: cfg, log: log.WithField("component", "ntrip")}
}

// Connect dials the caster, sends the mountpoint request, and validates the
// response. On success the connection is left open and ready for RTCM
// bytes (and, for some casters, an initial GGA upload).
func (c *Client) Connect(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	dialer := net.Dialer{Timeout: connectionTimeout}
	var conn net.Conn
	var err error
	if c.cfg.UseTLS {
		tlsDialer := tls.Dialer{NetDialer: &dialer}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return roverrors.New(roverrors.NTRIPConnection, fmt.Errorf("dial %s: %w", addr, err))
	}

	if err := conn.SetDeadline(time.Now().Add(connectionTimeout)); err != nil {
		conn.Close()
		return roverrors.New(roverrors.NTRIPConnection, err)
	}

	if _, err := conn.Write(c.buildRequest()); err != nil {
		conn.Close()
		return roverrors.New(roverrors.NTRIPConnection, fmt.Errorf("sending request: %w", err))
	}

	reader := bufio.NewReader(conn)
	if err := c.readResponse(reader); err != nil {
		conn.Close()
		return err
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		conn.Close()
		return roverrors.New(roverrors.NTRIPConnection, err)
	}

	c.mu.Lock()
	c.conn = conn
	c.reader = reader
	c.attempts = 0
	c.mu.Unlock()

	c.log.WithField("mountpoint", c.cfg.Mountpoint).Info("connected to NTRIP caster")
	return nil
}

func (c *Client) buildRequest() []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "GET /%s HTTP/1.1\r\n", c.cfg.Mountpoint)
	fmt.Fprintf(&b, "Host: %s\r\n", c.cfg.Host)
	b.WriteString("User-Agent: " + userAgentDefault + "\r\n")
	b.WriteString("Accept: */*\r\n")
	b.WriteString("Connection: close\r\n")
	if c.cfg.Username != "" {
		token := base64.StdEncoding.EncodeToString([]byte(c.cfg.Username + ":" + c.cfg.Password))
		b.WriteString("Authorization: Basic " + token + "\r\n")
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

// readResponse consumes the caster's status line and headers, classifying
// it exactly the way the original client's line-scanning loop did: a
// SOURCETABLE dump, a 401/404 error, or an ICY/HTTP 200 OK acceptance.
func (c *Client) readResponse(reader *bufio.Reader) error {
	line, err := reader.ReadString('\n')
	if err != nil {
		return roverrors.New(roverrors.NTRIPConnection, fmt.Errorf("reading status line: %w", err))
	}
	line = strings.TrimRight(line, "\r\n")

	switch {
	case strings.Contains(line, "SOURCETABLE"):
		return roverrors.New(roverrors.NTRIPConnection, fmt.Errorf("caster returned sourcetable, unknown mountpoint %q", c.cfg.Mountpoint))
	case strings.Contains(line, "401"):
		return roverrors.New(roverrors.NTRIPAuth, fmt.Errorf("unauthorized"))
	case strings.Contains(line, "404"):
		return roverrors.New(roverrors.NTRIPConnection, fmt.Errorf("mountpoint %q not found", c.cfg.Mountpoint))
	case strings.Contains(line, "200 OK"):
		// Drain remaining header lines up to the blank line.
		for {
			h, err := reader.ReadString('\n')
			if err != nil {
				return roverrors.New(roverrors.NTRIPConnection, err)
			}
			if strings.TrimRight(h, "\r\n") == "" {
				return nil
			}
		}
	default:
		return roverrors.New(roverrors.NTRIPConnection, fmt.Errorf("unexpected response: %q", line))
	}
}

// SendGGA writes one GGA sentence to the caster. The client never sends a
// GGA on its own, not even on Connect; the RTK coordinator's uploader calls
// SendGGA once a second after its first published fix.
func (c *Client) SendGGA(sentence string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return roverrors.New(roverrors.NTRIPConnection, fmt.Errorf("not connected"))
	}
	if !strings.HasSuffix(sentence, "\r\n") {
		sentence += "\r\n"
	}
	_, err := conn.Write([]byte(sentence))
	if err != nil {
		return roverrors.New(roverrors.NTRIPConnection, err)
	}
	return nil
}

// Read reads RTCM bytes from the open connection, applying the data
// timeout so a stalled caster is detected rather than blocking forever.
func (c *Client) Read(buf []byte) (int, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return 0, roverrors.New(roverrors.NTRIPConnection, fmt.Errorf("not connected"))
	}

	if err := conn.SetReadDeadline(time.Now().Add(dataTimeout)); err != nil {
		return 0, roverrors.New(roverrors.NTRIPConnection, err)
	}

	n, err := conn.Read(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, roverrors.New(roverrors.NTRIPTimeout, err)
		}
		return 0, roverrors.New(roverrors.NTRIPConnection, err)
	}

	c.mu.Lock()
	c.bytesReceived += int64(n)
	c.mu.Unlock()
	return n, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// ConnectWithRetry calls Connect up to maxReconnectTries times in total,
// waiting between attempts with a linear back-off (attempt number * reconnectInterval), matching
// the original client's reconnection policy.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= maxReconnectTries; attempt++ {
		if err := c.Connect(ctx); err != nil {
			lastErr = err
			c.log.WithError(err).WithField("attempt", attempt).Warn("ntrip connect failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * reconnectInterval):
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("ntrip: exhausted %d reconnect attempts: %w", maxReconnectTries, lastErr)
}

// BytesReceived returns the cumulative RTCM byte count read since the
// client was created.
func (c *Client) BytesReceived() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytesReceived
}
