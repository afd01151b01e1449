/**
 * @description
 * Event payloads published to RabbitMQ for consumption by other back-office
 * services (reporting, dashboards).
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// PaymentApprovedEvent is published when a charge reaches approved.
type PaymentApprovedEvent struct {
	ChargeID   uuid.UUID `json:"charge_id"`
	ClientID   uuid.UUID `json:"client_id"`
	AccountID  uuid.UUID `json:"account_id"`
	Amount     int64     `json:"amount"`
	PaidAt     time.Time `json:"paid_at"`
	NewDueDate time.Time `json:"new_due_date"`
}

// ChargeExpiredEvent is published when the expiry sweep transitions a charge.
type ChargeExpiredEvent struct {
	ChargeID  uuid.UUID `json:"charge_id"`
	ClientID  uuid.UUID `json:"client_id"`
	ExpiredAt time.Time `json:"expired_at"`
}

// ReminderSentEvent is published after a reminder delivery attempt.
type ReminderSentEvent struct {
	ClientID  uuid.UUID `json:"client_id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}
