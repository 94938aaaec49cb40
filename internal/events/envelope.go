package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Envelope is the frame written to a channel. ID identifies the logical
// event: the same ID reaching a client twice (push and poll, or two
// channels) is one event.
type Envelope struct {
	ID         string          `json:"id"`
	Event      string          `json:"event"`
	Channel    string          `json:"channel"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// NewEnvelope marshals data for one channel. An empty id gets a random one.
func NewEnvelope(id, event, channel string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	if id == "" {
		id = uuid.NewString()
	}
	return Envelope{
		ID:         id,
		Event:      event,
		Channel:    channel,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
