package amqp

import (
	"encoding/json"
	"time"
)

// ChangeMessage announces that a record was written to storage.
// Consumers reload what they need from the store.
type ChangeMessage struct {
	Collection string    `json:"collection"`
	Op         string    `json:"op"`
	Key        string    `json:"key,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewChangeMessage creates a change message stamped with the current time
func NewChangeMessage(collection, op, key string) *ChangeMessage {
	return &ChangeMessage{
		Collection: collection,
		Op:         op,
		Key:        key,
		Timestamp:  time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON creates a message from JSON bytes
func ChangeMessageFromJSON(data []byte) (*ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
