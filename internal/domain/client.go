/**
 * @description
 * Domain models for clients (the people being billed) and their per-client
 * reminder settings. Client CRUD itself lives in the back-office collaborator;
 * this service only reads clients and advances their billing dates.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Client is a billed subscriber. SubscriptionAmount and DueDate are nullable:
// clients without both are ignored by the notification sweep.
type Client struct {
	ID                 uuid.UUID  `json:"id"`
	AccountID          uuid.UUID  `json:"account_id"`
	Name               string     `json:"name"`
	Phone              string     `json:"phone"`
	SubscriptionAmount *int64     `json:"subscription_amount,omitempty"` // cents
	DueDate            *time.Time `json:"due_date,omitempty"`
	LastPaymentDate    *time.Time `json:"last_payment_date,omitempty"`
	// DueDateUpdatedAt anchors the reminder cycle: message-log dedup only
	// considers entries created after the due date last moved.
	DueDateUpdatedAt time.Time          `json:"due_date_updated_at"`
	Notifications    NotificationConfig `json:"notifications"`
}

// NotificationConfig holds the six independent reminder flags, one per
// day-offset relative to the client's due date.
type NotificationConfig struct {
	FiveDaysBefore  bool `json:"notify_5_days_before"`
	ThreeDaysBefore bool `json:"notify_3_days_before"`
	TwoDaysBefore   bool `json:"notify_2_days_before"`
	OneDayBefore    bool `json:"notify_1_day_before"`
	OnDueDate       bool `json:"notify_on_due_date"`
	OneDayAfter     bool `json:"notify_1_day_after"`
}

// Enabled reports whether the flag for the given offset is set. Offsets
// outside the configured set are never enabled.
func (n NotificationConfig) Enabled(offset int) bool {
	switch offset {
	case -5:
		return n.FiveDaysBefore
	case -3:
		return n.ThreeDaysBefore
	case -2:
		return n.TwoDaysBefore
	case -1:
		return n.OneDayBefore
	case 0:
		return n.OnDueDate
	case 1:
		return n.OneDayAfter
	}
	return false
}

// Account holds the billing-relevant settings of a tenant: billing period,
// payment method and the reminder template texts keyed by message kind.
type Account struct {
	ID                uuid.UUID         `json:"id"`
	BillingPeriodDays int               `json:"billing_period_days"`
	PaymentMethod     string            `json:"payment_method"` // "gateway" or "manual_key"
	PixKey            string            `json:"pix_key,omitempty"`
	Templates         map[string]string `json:"templates"`
}

// BillingPeriod returns the account's billing period, defaulting to 30 days
// when unset.
func (a *Account) BillingPeriod() time.Duration {
	days := a.BillingPeriodDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}
