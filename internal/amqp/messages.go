package amqp

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// PushRequestMessage asks the worker to push the local ledger of UserID to
// the remote store. It carries no ledger data; the worker reads the shared
// local store.
type PushRequestMessage struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPushRequestMessage(userID, reason string) *PushRequestMessage {
	return &PushRequestMessage{
		UserID:    userID,
		Reason:    reason,
		Timestamp: time.Now(),
	}
}

func (m *PushRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PushRequestMessageFromJSON decodes a message. A message without a user is
// rejected so it is dead-lettered instead of requeued forever.
func PushRequestMessageFromJSON(data []byte) (*PushRequestMessage, error) {
	var msg PushRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if strings.TrimSpace(msg.UserID) == "" {
		return nil, errors.New("push request without user_id")
	}
	return &msg, nil
}
