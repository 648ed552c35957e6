package amqp

import (
	"encoding/json"
	"time"
)

// LedgerEvent announces one committed ledger mutation. Consumers reload the
// account by ID; the remaining fields are informational.
type LedgerEvent struct {
	AccountID     string    `json:"account_id"`
	TransactionID string    `json:"transaction_id"`
	Kind          string    `json:"kind"`
	Category      string    `json:"category"`
	Sum           string    `json:"sum"`
	Version       int64     `json:"version"`
	Timestamp     time.Time `json:"timestamp"`
}

// ToJSON converts the event to JSON bytes
func (e *LedgerEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// LedgerEventFromJSON decodes an event and requires an account ID.
func LedgerEventFromJSON(data []byte) (*LedgerEvent, error) {
	var ev LedgerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, err
	}
	if ev.AccountID == "" {
		return nil, errMissingAccountID
	}
	return &ev, nil
}
