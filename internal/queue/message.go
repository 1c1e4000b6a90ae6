package queue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kursadbilgin/push-fanout/internal/domain"
)

// TriggerMessage is the broker envelope for one store change.
type TriggerMessage struct {
	ID            string             `json:"id"`
	CorrelationID string             `json:"correlationId,omitempty"`
	Kind          domain.TriggerKind `json:"kind"`
	Payload       json.RawMessage    `json:"payload"`
}

func (m TriggerMessage) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return fmt.Errorf("id is required")
	}
	if !m.Kind.IsValid() {
		return fmt.Errorf("invalid trigger kind %q", m.Kind)
	}
	trimmed := strings.TrimSpace(string(m.Payload))
	if trimmed == "" || trimmed == "null" {
		return fmt.Errorf("payload is required")
	}
	if !json.Valid(m.Payload) {
		return fmt.Errorf("payload is not valid JSON")
	}
	return nil
}

// NewTriggerMessage marshals payload into an envelope of the given kind.
func NewTriggerMessage(id string, kind domain.TriggerKind, payload any) (TriggerMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return TriggerMessage{}, fmt.Errorf("failed to marshal %s payload: %w", kind, err)
	}

	msg := TriggerMessage{ID: id, Kind: kind, Payload: raw}
	if err := msg.Validate(); err != nil {
		return TriggerMessage{}, err
	}
	return msg, nil
}
