// Package hijack implements the raw stream upgrade for interactive exec
// sessions. The runtime's exec-start endpoint answers 101 and then reuses
// the same connection as a duplex byte pipe; standard HTTP clients don't
// hand that connection back cleanly, so the request is written and the
// response parsed by hand.
package hijack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
)

const defaultHost = "unix:///var/run/docker.sock"

// maxHeaderBytes bounds the response head we buffer while looking for the
// end of the header block.
const maxHeaderBytes = 16 << 10

// UpgradeError is returned when the runtime answers the upgrade request
// with anything but 101. Status is the raw status line.
type UpgradeError struct {
	Status string
}

func (e *UpgradeError) Error() string {
	return fmt.Sprintf("runtime refused stream upgrade: %s", e.Status)
}

// Dialer opens upgraded exec streams on the runtime control socket.
type Dialer struct {
	// Host is the runtime socket address, "unix:///path" or
	// "tcp://host:port". Empty uses the default unix socket.
	Host string
	// APIVersion is the versioned path prefix ("v1.41"). Empty omits it.
	APIVersion string
	// Timeout bounds dialing and the handshake. Zero means 10 seconds.
	Timeout time.Duration
}

type startRequest struct {
	Detach bool
	Tty    bool
}

// StartExec starts a previously created exec instance and upgrades the
// connection. On success the returned stream is connected to the process;
// bytes the runtime sent after the header block are not lost, they are
// served by the stream's first reads.
func (d Dialer) StartExec(ctx context.Context, execID string, tty bool) (*Stream, error) {
	network, addr, err := splitHost(d.Host)
	if err != nil {
		return nil, err
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	conn, err := (&net.Dialer{Timeout: timeout}).DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial runtime socket %s: %w", addr, err)
	}

	// The handshake must not hang forever on a silent socket.
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	body, err := json.Marshal(startRequest{Detach: false, Tty: tty})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to encode start request: %w", err)
	}

	host := "localhost"
	if network == "tcp" {
		host = addr
	}
	path := "/exec/" + execID + "/start"
	if d.APIVersion != "" {
		path = "/" + d.APIVersion + path
	}

	var req bytes.Buffer
	fmt.Fprintf(&req, "POST %s HTTP/1.1\r\n", path)
	fmt.Fprintf(&req, "Host: %s\r\n", host)
	req.WriteString("Content-Type: application/json\r\n")
	req.WriteString("Connection: Upgrade\r\n")
	req.WriteString("Upgrade: tcp\r\n")
	fmt.Fprintf(&req, "Content-Length: %d\r\n", len(body))
	req.WriteString("\r\n")
	req.Write(body)

	if _, err := conn.Write(req.Bytes()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to write upgrade request: %w", err)
	}

	head, leftover, err := readHead(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}

	statusLine := head
	if i := strings.Index(head, "\r\n"); i >= 0 {
		statusLine = head[:i]
	}
	if !upgraded(statusLine) {
		conn.Close()
		return nil, &UpgradeError{Status: statusLine}
	}

	conn.SetDeadline(time.Time{})
	return &Stream{conn: conn, buf: leftover}, nil
}

// readHead accumulates bytes until the blank line ending the header block
// and returns the head plus whatever stream bytes arrived with it.
func readHead(conn net.Conn) (string, []byte, error) {
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		if i := bytes.Index(buf, []byte("\r\n\r\n")); i >= 0 {
			return string(buf[:i]), append([]byte(nil), buf[i+4:]...), nil
		}
		if len(buf) > maxHeaderBytes {
			return "", nil, fmt.Errorf("upgrade response header exceeds %d bytes", maxHeaderBytes)
		}
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			continue
		}
		if err != nil {
			return "", nil, fmt.Errorf("failed to read upgrade response: %w", err)
		}
	}
}

func upgraded(statusLine string) bool {
	parts := strings.SplitN(statusLine, " ", 3)
	return len(parts) >= 2 && parts[1] == "101"
}

func splitHost(host string) (network, addr string, err error) {
	if host == "" {
		host = defaultHost
	}
	switch {
	case strings.HasPrefix(host, "unix://"):
		return "unix", strings.TrimPrefix(host, "unix://"), nil
	case strings.HasPrefix(host, "tcp://"):
		return "tcp", strings.TrimPrefix(host, "tcp://"), nil
	default:
		return "", "", fmt.Errorf("unsupported runtime host %q, want unix:// or tcp://", host)
	}
}

// Stream is the upgraded duplex connection to an exec'd process. Reads
// first drain any bytes that arrived together with the upgrade response.
// Only one goroutine may Read at a time; Write is independently safe.
type Stream struct {
	conn net.Conn

	readMu sync.Mutex
	buf    []byte
	off    int
}

func (s *Stream) Read(p []byte) (int, error) {
	s.readMu.Lock()
	defer s.readMu.Unlock()
	if s.off < len(s.buf) {
		n := copy(p, s.buf[s.off:])
		s.off += n
		if s.off == len(s.buf) {
			s.buf = nil
			s.off = 0
		}
		return n, nil
	}
	return s.conn.Read(p)
}

func (s *Stream) Write(p []byte) (int, error) {
	return s.conn.Write(p)
}

// CloseWrite half-closes the connection so the process sees stdin EOF
// while its remaining output still flows.
func (s *Stream) CloseWrite() error {
	if cw, ok := s.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

func (s *Stream) Close() error {
	return s.conn.Close()
}
