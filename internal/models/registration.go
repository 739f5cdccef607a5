package models

import (
	"time"

	"github.com/google/uuid"
)

// Status is the approval state of a registration.
type Status string

const (
	StatusPending  Status = "Pending"
	StatusApproved Status = "Approved"
	StatusRejected Status = "Rejected"
)

// Valid reports whether s is one of the known status literals.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Tool describes one capability exposed by a registered endpoint.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Registration is a submitted MCP endpoint under the approval workflow.
// ApproverID and ApprovedAt are nil exactly while Status is Pending.
type Registration struct {
	ID           uuid.UUID  `json:"registration_id"`
	EndpointURL  string     `json:"endpoint_url"`
	EndpointName string     `json:"endpoint_name"`
	Description  string     `json:"description,omitempty"`
	OwnerContact string     `json:"owner_contact"`
	Tools        []Tool     `json:"available_tools"`
	Status       Status     `json:"status"`
	SubmitterID  uuid.UUID  `json:"submitter_id"`
	ApproverID   *uuid.UUID `json:"approver_id,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
