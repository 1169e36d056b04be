package models

import "time"

type State string

const (
	StatePending State = "PENDING"
	StatePaid    State = "PAID"
	StateExpired State = "EXPIRED"
)

func (s State) Terminal() bool { return s == StatePaid || s == StateExpired }

// Canonical is the normalised reading of a provider status. Unknown is never persisted.
type Canonical string

const (
	CanonicalPending Canonical = "PENDING"
	CanonicalPaid    Canonical = "PAID"
	CanonicalExpired Canonical = "EXPIRED"
	CanonicalUnknown Canonical = "UNKNOWN"
)

type Origin string

const (
	OriginCreated Origin = "created"
	OriginOrphan  Origin = "orphan"
)

type Party struct {
	Name     string `json:"name,omitempty"`
	Document string `json:"document,omitempty"`
}

func (p *Party) Empty() bool { return p == nil || (p.Name == "" && p.Document == "") }

type Presentation struct {
	Code  string `json:"code"`
	Image string `json:"image,omitempty"`
}

type Transaction struct {
	ID           string         `json:"id"`
	Amount       Money          `json:"amount"`
	State        State          `json:"state"`
	Origin       Origin         `json:"origin"`
	Description  string         `json:"description,omitempty"`
	Presentation Presentation   `json:"presentation"`
	Customer     *Party         `json:"customer,omitempty"`
	Payer        *Party         `json:"payer,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	ConfirmedAt  *time.Time     `json:"confirmed_at,omitempty"`
	ExpiredAt    *time.Time     `json:"expired_at,omitempty"`
}

// Clone returns a copy that shares no pointers with t.
func (t Transaction) Clone() Transaction {
	c := t
	if t.Customer != nil {
		p := *t.Customer
		c.Customer = &p
	}
	if t.Payer != nil {
		p := *t.Payer
		c.Payer = &p
	}
	if t.ConfirmedAt != nil {
		v := *t.ConfirmedAt
		c.ConfirmedAt = &v
	}
	if t.ExpiredAt != nil {
		v := *t.ExpiredAt
		c.ExpiredAt = &v
	}
	if t.Metadata != nil {
		c.Metadata = make(map[string]any, len(t.Metadata))
		for k, v := range t.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}
