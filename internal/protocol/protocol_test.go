package protocol

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestEncodePayload_Canonical(t *testing.T) {
	data, err := EncodePayload(Payload{Timestamp: "2024-01-01 00:00:00", Error: 50, KeyID: "0.bin"})
	if err != nil {
		t.Fatalf("EncodePayload failed: %v", err)
	}
	want := `{"timestamp":"2024-01-01 00:00:00","error":50,"keyId":"0.bin"}`
	if string(data) != want {
		t.Errorf("Expected %s, got %s", want, data)
	}
}

func TestEncodePayload_RejectsNonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1)} {
		if _, err := EncodePayload(Payload{Error: v}); err == nil {
			t.Errorf("Expected error for %v", v)
		}
	}
}

func TestPayload_RoundTripExact(t *testing.T) {
	in := Payload{Timestamp: "t", Error: 0.1 + 0.2, KeyID: "1700000000.bin"}
	data, _ := EncodePayload(in)
	out, err := DecodePayload(data)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if *out != in {
		t.Errorf("Expected %+v, got %+v", in, *out)
	}
}

func TestDecodePayload_Strict(t *testing.T) {
	cases := map[string]string{
		"not json":      `hello`,
		"unknown field": `{"timestamp":"t","error":1,"keyId":"k","severity":2}`,
		"missing keyId": `{"timestamp":"t","error":1}`,
		"missing error": `{"timestamp":"t","keyId":"k"}`,
		"wrong type":    `{"timestamp":"t","error":"high","keyId":"k"}`,
		"trailing data": `{"timestamp":"t","error":1,"keyId":"k"}{}`,
	}
	for name, input := range cases {
		if _, err := DecodePayload([]byte(input)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestFormatAndParseLine(t *testing.T) {
	packet := bytes.Repeat([]byte{0xab}, NonceSize+TagSize+5)
	line := FormatLine(packet)

	if !strings.HasPrefix(line, "enc_alert=") || !strings.HasSuffix(line, "\n") {
		t.Fatalf("Unexpected line %q", line)
	}

	got, ok, err := ParseLine(line)
	if err != nil || !ok {
		t.Fatalf("ParseLine failed: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, packet) {
		t.Error("Packet changed across framing")
	}
}

func TestParseLine_IgnoresDiagnostics(t *testing.T) {
	for _, line := range []string{"", "Score: 0.5", "alert=abcd", " enc_alert=00"} {
		_, ok, err := ParseLine(line)
		if ok || err != nil {
			t.Errorf("%q: expected ignored line, got ok=%v err=%v", line, ok, err)
		}
	}
}

func TestParseLine_Malformed(t *testing.T) {
	short := strings.Repeat("00", NonceSize+TagSize-1)
	for _, line := range []string{"enc_alert=zz", "enc_alert=abc", "enc_alert=" + short, "enc_alert="} {
		_, ok, err := ParseLine(line)
		if !ok || !errors.Is(err, ErrMalformedPacket) {
			t.Errorf("%q: expected ErrMalformedPacket, got ok=%v err=%v", line, ok, err)
		}
	}
}

func TestDecryptedAlert_JSON(t *testing.T) {
	in := &DecryptedAlert{
		Payload:    Payload{Timestamp: "t", Error: 2.5, KeyID: "0.bin"},
		OpenedWith: "0.bin",
		Trials:     2,
		ReceivedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	data, err := EncodeDecryptedAlert(in)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	out, err := DecodeDecryptedAlert(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if out.Payload != in.Payload || out.Trials != 2 || !out.ReceivedAt.Equal(in.ReceivedAt) {
		t.Errorf("Expected %+v, got %+v", in, out)
	}
}
