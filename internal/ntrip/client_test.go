package ntrip

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startFakeCaster runs a single-connection TCP listener that writes
// `response` once the client's request headers end, regardless of their
// content. It returns the listener's address; the listener is closed by
// t.Cleanup.
func startFakeCaster(t *testing.T, response string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		reader := bufio.NewReader(conn)
		for {
			line, err := reader.ReadString('\n')
			if err != nil || strings.TrimRight(line, "\r\n") == "" {
				break
			}
		}
		conn.Write([]byte(response))
		time.Sleep(100 * time.Millisecond)
	}()

	return ln.Addr().String()
}

func hostPort(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestClientConnectAccepted(t *testing.T) {
	addr := startFakeCaster(t, "ICY 200 OK\r\n\r\n")
	host, port := hostPort(t, addr)

	client := NewClient(Config{Host: host, Port: port, Mountpoint: "MOUNT"}, nil)
	err := client.Connect(context.Background())
	require.NoError(t, err)
	defer client.Close()
}

func TestClientConnectUnauthorized(t *testing.T) {
	addr := startFakeCaster(t, "HTTP/1.1 401 Unauthorized\r\n\r\n")
	host, port := hostPort(t, addr)

	client := NewClient(Config{Host: host, Port: port, Mountpoint: "MOUNT"}, nil)
	err := client.Connect(context.Background())
	assert.Error(t, err)
}

func TestClientConnectSourcetable(t *testing.T) {
	addr := startFakeCaster(t, "SOURCETABLE 200 OK\r\n\r\n")
	host, port := hostPort(t, addr)

	client := NewClient(Config{Host: host, Port: port, Mountpoint: "BADMOUNT"}, nil)
	err := client.Connect(context.Background())
	assert.Error(t, err)
}

func TestClientConnectNotFound(t *testing.T) {
	addr := startFakeCaster(t, "HTTP/1.1 404 Not Found\r\n\r\n")
	host, port := hostPort(t, addr)

	client := NewClient(Config{Host: host, Port: port, Mountpoint: "MOUNT"}, nil)
	err := client.Connect(context.Background())
	assert.Error(t, err)
}

func TestBuildRequestIncludesAuth(t *testing.T) {
	client := NewClient(Config{Host: "caster.example", Port: 2101, Mountpoint: "MOUNT", Username: "u", Password: "p"}, nil)
	req := string(client.buildRequest())
	assert.Contains(t, req, "GET /MOUNT HTTP/1.1")
	assert.Contains(t, req, "Authorization: Basic")
	assert.Contains(t, req, "Host: caster.example")
}
