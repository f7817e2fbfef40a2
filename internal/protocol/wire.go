package protocol

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Prefix marks packet lines on the alert stream. Lines without it are
// diagnostics and are ignored by readers.
const Prefix = "enc_alert="

const (
	NonceSize = 12
	TagSize   = 16
)

var ErrMalformedPacket = &PacketError{"malformed packet"}

// PacketError represents a packet framing error
type PacketError struct {
	msg string
}

func (e *PacketError) Error() string {
	return e.msg
}

// FormatLine frames a packet as one stream line, newline included
func FormatLine(packet []byte) string {
	return Prefix + hex.EncodeToString(packet) + "\n"
}

// ParseLine extracts the packet from a stream line. ok is false for lines
// that do not carry a packet at all; err is set when the line is prefixed
// but its body cannot be a packet.
func ParseLine(line string) (packet []byte, ok bool, err error) {
	line = strings.TrimRight(line, "\r\n")
	body, found := strings.CutPrefix(line, Prefix)
	if !found {
		return nil, false, nil
	}

	packet, err = hex.DecodeString(strings.TrimSpace(body))
	if err != nil {
		return nil, true, fmt.Errorf("%w: %v", ErrMalformedPacket, err)
	}
	if len(packet) < NonceSize+TagSize {
		return nil, true, fmt.Errorf("%w: %d bytes is shorter than nonce and tag", ErrMalformedPacket, len(packet))
	}
	return packet, true, nil
}
