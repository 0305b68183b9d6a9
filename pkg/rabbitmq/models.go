package rabbitmq

import (
	"encoding/json"

	"github.com/google/uuid"
)

// EventPayload is the envelope every published message is wrapped in.
type EventPayload struct {
	ID      uuid.UUID       `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func NewEvent(id uuid.UUID, typ string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(EventPayload{ID: id, Type: typ, Payload: raw})
}
