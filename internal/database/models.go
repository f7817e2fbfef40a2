package database

import (
	"time"

	"github.com/smukkama/gridguard/internal/protocol"
)

// AlertRecord represents one archived decrypted alert
type AlertRecord struct {
	ID              int64
	SourceTimestamp string
	Score           float64
	KeyID           string
	OpenedWith      string
	Trials          int
	ReceivedAt      time.Time
}

// NewAlertRecord converts a decrypted alert into its archive row
func NewAlertRecord(alert *protocol.DecryptedAlert) AlertRecord {
	return AlertRecord{
		SourceTimestamp: alert.Payload.Timestamp,
		Score:           alert.Payload.Error,
		KeyID:           alert.Payload.KeyID,
		OpenedWith:      alert.OpenedWith,
		Trials:          alert.Trials,
		ReceivedAt:      alert.ReceivedAt,
	}
}

// AlertStats summarizes the archive
type AlertStats struct {
	Total    int64
	MaxScore *float64
	ByKey    map[string]int64
}
