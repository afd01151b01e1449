/**
 * @description
 * Domain model for the messaging session ("instance"): one WhatsApp channel
 * bound to an account, identified by a stable instance name and paired via QR
 * code. The remote provider is the source of truth; the persisted state here
 * is a read-through cache refreshed on every status call.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionState mirrors the connector's finite-state machine.
type SessionState string

const (
	SessionStateAbsent     SessionState = "absent"
	SessionStateQRPending  SessionState = "qr_pending"
	SessionStateConnecting SessionState = "connecting"
	SessionStateOpen       SessionState = "open"
	SessionStateError      SessionState = "error"
)

// Session is the per-account messaging channel record.
type Session struct {
	AccountID          uuid.UUID    `json:"account_id"`
	InstanceName       string       `json:"instance_name"`
	State              SessionState `json:"state"`
	LastStateCheckedAt time.Time    `json:"last_state_checked_at"`
}

// ConnectResult is what the connector hands back to callers: the state the
// ladder ended in, plus the QR payload when pairing is still required.
type ConnectResult struct {
	State    SessionState `json:"state"`
	QRBase64 string       `json:"qr_base64,omitempty"`
}
