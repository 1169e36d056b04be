package models

import (
	"encoding/json"
	"time"
)

type Source string

const (
	SourceCallback Source = "callback"
	SourcePoll     Source = "poll"
	SourceCreation Source = "creation"
)

type Outcome string

const (
	OutcomeApplied  Outcome = "applied"
	OutcomeNoop     Outcome = "noop"
	OutcomeRejected Outcome = "rejected"
)

// AuditLog records one processed observation, including no-ops and rejects.
type AuditLog struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	Source         Source          `json:"source"`
	TransactionID  string          `json:"transaction_id"`
	ObservedStatus string          `json:"observed_status,omitempty"`
	RawPayload     json.RawMessage `json:"raw_payload,omitempty"`
	Outcome        Outcome         `json:"outcome"`
	Detail         string          `json:"detail,omitempty"`
}
