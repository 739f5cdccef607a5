package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification kinds emitted by the review workflow.
const (
	NotificationReviewApproved = "review_approved"
	NotificationReviewRejected = "review_rejected"
)

// Notification delivery states.
const (
	NotificationStatusPending  = "pending"
	NotificationStatusRecorded = "recorded"
	NotificationStatusFailed   = "failed"
)

// NotificationLog records the outcome of a submitter notification
// processed by the background worker.
type NotificationLog struct {
	ID             uuid.UUID  `json:"id"`
	RegistrationID uuid.UUID  `json:"registration_id"`
	Recipient      string     `json:"recipient"`
	Kind           string     `json:"kind"`
	Status         string     `json:"status"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
