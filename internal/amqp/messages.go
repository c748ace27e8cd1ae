package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Reasons a backup can be requested for.
const (
	ReasonManual   = "manual"
	ReasonSchedule = "schedule"
)

var ErrInvalidMessage = errors.New("invalid backup request message")

// BackupRequestMessage asks the worker to take a backup. The worker
// builds the snapshot from the store itself, so the message carries no
// payload.
type BackupRequestMessage struct {
	RequestID   string    `json:"requestId"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requestedAt"`
}

func NewBackupRequestMessage(reason string) *BackupRequestMessage {
	return &BackupRequestMessage{
		RequestID:   uuid.NewString(),
		Reason:      reason,
		RequestedAt: time.Now().UTC(),
	}
}

func (m *BackupRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BackupRequestFromJSON decodes and checks a message body.
func BackupRequestFromJSON(data []byte) (*BackupRequestMessage, error) {
	var msg BackupRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if msg.RequestID == "" {
		return nil, fmt.Errorf("%w: missing requestId", ErrInvalidMessage)
	}
	switch msg.Reason {
	case ReasonManual, ReasonSchedule:
	default:
		return nil, fmt.Errorf("%w: unknown reason %q", ErrInvalidMessage, msg.Reason)
	}
	return &msg, nil
}
