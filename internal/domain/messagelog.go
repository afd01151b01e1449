/**
 * @description
 * Domain model for the message log: one append-only row per delivery attempt.
 * The log doubles as the audit trail and as the notification sweep's
 * deduplication source.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageKind identifies which reminder template a log entry belongs to.
type MessageKind string

const (
	MessageKindReminder5DaysBefore MessageKind = "reminder_5d_before"
	MessageKindReminder3DaysBefore MessageKind = "reminder_3d_before"
	MessageKindReminder2DaysBefore MessageKind = "reminder_2d_before"
	MessageKindReminder1DayBefore  MessageKind = "reminder_1d_before"
	MessageKindReminderDueToday    MessageKind = "reminder_due_today"
	MessageKindReminderOverdue     MessageKind = "reminder_overdue_1d"
	MessageKindPaymentConfirmation MessageKind = "payment_confirmation"
)

// ReminderOffsets maps each day-offset relative to the due date to its
// message kind. Negative offsets fire before the due date, +1 after.
var ReminderOffsets = map[int]MessageKind{
	-5: MessageKindReminder5DaysBefore,
	-3: MessageKindReminder3DaysBefore,
	-2: MessageKindReminder2DaysBefore,
	-1: MessageKindReminder1DayBefore,
	0:  MessageKindReminderDueToday,
	1:  MessageKindReminderOverdue,
}

// MessageStatus is the delivery outcome recorded on a log entry.
type MessageStatus string

const (
	MessageStatusSent   MessageStatus = "sent"
	MessageStatusFailed MessageStatus = "failed"
)

// MessageLog records a single delivery attempt. Entries are created once and
// never mutated afterward.
type MessageLog struct {
	ID                uuid.UUID     `json:"id"`
	ClientID          uuid.UUID     `json:"client_id"`
	AccountID         uuid.UUID     `json:"account_id"`
	Kind              MessageKind   `json:"kind"`
	Status            MessageStatus `json:"status"`
	Body              string        `json:"body"`
	ProviderMessageID *string       `json:"provider_message_id,omitempty"`
	CreatedAt         time.Time     `json:"created_at"`
}

// NotifySummary aggregates the outcome of one notification sweep.
type NotifySummary struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}
