package protocol

import (
	"encoding/json"
	"time"
)

// DecryptedAlert is the message format for alerts leaving the decoder
type DecryptedAlert struct {
	Payload    Payload   `json:"payload"`
	OpenedWith string    `json:"opened_with"`
	Trials     int       `json:"trials"`
	ReceivedAt time.Time `json:"received_at"`
}

// EncodeDecryptedAlert encodes a DecryptedAlert to JSON
func EncodeDecryptedAlert(alert *DecryptedAlert) ([]byte, error) {
	return json.Marshal(alert)
}

// DecodeDecryptedAlert decodes JSON to DecryptedAlert
func DecodeDecryptedAlert(data []byte) (*DecryptedAlert, error) {
	var alert DecryptedAlert
	if err := json.Unmarshal(data, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}
