// Package protocol defines the alert payload, its wire framing on the packet
// stream, and the decrypted alert message handed to downstream consumers.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// Payload is the plaintext sealed inside every alert packet
type Payload struct {
	Timestamp string  `json:"timestamp"`
	Error     float64 `json:"error"`
	KeyID     string  `json:"keyId"`
}

// EncodePayload serializes p as compact JSON with the fields in declaration
// order. Scores must be finite; JSON has no encoding for NaN or Inf.
func EncodePayload(p Payload) ([]byte, error) {
	if math.IsNaN(p.Error) || math.IsInf(p.Error, 0) {
		return nil, fmt.Errorf("failed to encode payload: error %v is not finite", p.Error)
	}
	return json.Marshal(p)
}

// DecodePayload parses a payload strictly. Unknown fields, missing fields and
// trailing data are rejected so a sender speaking a different payload version
// is detected rather than half-read.
func DecodePayload(data []byte) (*Payload, error) {
	var raw struct {
		Timestamp *string  `json:"timestamp"`
		Error     *float64 `json:"error"`
		KeyID     *string  `json:"keyId"`
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("invalid payload: trailing data")
	}

	switch {
	case raw.Timestamp == nil:
		return nil, fmt.Errorf("invalid payload: timestamp is required")
	case raw.Error == nil:
		return nil, fmt.Errorf("invalid payload: error is required")
	case raw.KeyID == nil:
		return nil, fmt.Errorf("invalid payload: keyId is required")
	}

	return &Payload{Timestamp: *raw.Timestamp, Error: *raw.Error, KeyID: *raw.KeyID}, nil
}
