package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

var ErrTransportClosed = &TransportError{"transport closed"}

// TransportError represents an alert stream transport error
type TransportError struct {
	msg string
}

func (e *TransportError) Error() string {
	return e.msg
}

// Reader reads the alert stream one line at a time
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps any byte stream, such as stdin or a relay connection
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next line without its terminator. A final line with no
// newline is still returned; after it Next reports ErrTransportClosed.
func (r *Reader) Next() (string, error) {
	line, err := r.r.ReadString('\n')
	if err != nil {
		if len(line) > 0 && errors.Is(err, io.EOF) {
			return trimEOL(line), nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return "", ErrTransportClosed
		}
		return "", fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	return trimEOL(line), nil
}

func trimEOL(line string) string {
	n := len(line)
	if n > 0 && line[n-1] == '\n' {
		n--
	}
	if n > 0 && line[n-1] == '\r' {
		n--
	}
	return line[:n]
}

// Dial connects to a relay server and returns a reader over the connection.
// Closing the returned connection ends the stream.
func Dial(ctx context.Context, addr string) (*Reader, net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to relay %s: %w", addr, err)
	}
	return NewReader(conn), conn, nil
}
