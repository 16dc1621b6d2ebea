package notify

import (
	"encoding/json"
	"errors"
	"time"
)

// ChangeMessage announces that a document collection changed. It carries no
// document data; receivers re-query the store.
type ChangeMessage struct {
	Collection string    `json:"collection"`
	DocumentID string    `json:"document_id,omitempty"` // empty for batch writes
	Origin     string    `json:"origin"`                // instance that made the change
	Timestamp  time.Time `json:"timestamp"`
}

// NewChangeMessage creates a message stamped with the current time.
func NewChangeMessage(origin, collection, id string) ChangeMessage {
	return ChangeMessage{
		Collection: collection,
		DocumentID: id,
		Origin:     origin,
		Timestamp:  time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m ChangeMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeMessageFromJSON parses a message, rejecting ones without a collection.
func ChangeMessageFromJSON(data []byte) (ChangeMessage, error) {
	var msg ChangeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ChangeMessage{}, err
	}
	if msg.Collection == "" {
		return ChangeMessage{}, errors.New("change message without collection")
	}
	return msg, nil
}
