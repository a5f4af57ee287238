package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"livrocaixa/internal/core"
)

// LedgerChangedMessage announces that a mutation touched some months and
// accounts. It carries keys only; consumers re-read the store.
type LedgerChangedMessage struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Months    []string  `json:"months"`
	Accounts  []string  `json:"accounts,omitempty"`
	Created   int       `json:"created,omitempty"`
	Updated   int       `json:"updated,omitempty"`
	Deleted   int       `json:"deleted,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerChangedMessage summarizes an operation effect.
func NewLedgerChangedMessage(operation string, eff core.Effect) *LedgerChangedMessage {
	msg := &LedgerChangedMessage{
		ID:        uuid.NewString(),
		Operation: operation,
		Created:   len(eff.Created),
		Updated:   len(eff.Updated),
		Deleted:   len(eff.Deleted),
		Timestamp: time.Now(),
	}
	for _, m := range eff.Months {
		msg.Months = append(msg.Months, m.String())
	}
	for acc := range eff.BalanceDelta {
		msg.Accounts = append(msg.Accounts, acc)
	}
	return msg
}

// MonthKeys parses Months, skipping malformed entries.
func (m *LedgerChangedMessage) MonthKeys() []core.MonthKey {
	out := make([]core.MonthKey, 0, len(m.Months))
	for _, s := range m.Months {
		if k, err := core.ParseMonthKey(s); err == nil {
			out = append(out, k)
		}
	}
	return out
}

// ToJSON converts the message to JSON bytes
func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerChangedMessageFromJSON creates a message from JSON bytes
func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
