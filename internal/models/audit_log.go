package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction identifies the registration mutation being recorded.
type AuditAction string

const (
	AuditCreated  AuditAction = "Created"
	AuditApproved AuditAction = "Approved"
	AuditRejected AuditAction = "Rejected"
	AuditDeleted  AuditAction = "Deleted"
)

// Valid reports whether a is a known audit action.
func (a AuditAction) Valid() bool {
	switch a {
	case AuditCreated, AuditApproved, AuditRejected, AuditDeleted:
		return true
	}
	return false
}

// AuditLog is an immutable record of a registration mutation, written in
// the same transaction as the change itself. RegistrationID is not a
// foreign key: entries outlive deleted registrations.
type AuditLog struct {
	ID             uuid.UUID       `json:"log_id"`
	RegistrationID uuid.UUID       `json:"registration_id"`
	UserID         uuid.UUID       `json:"user_id"`
	Action         AuditAction     `json:"action"`
	PreviousStatus *Status         `json:"previous_status,omitempty"`
	NewStatus      *Status         `json:"new_status,omitempty"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}
