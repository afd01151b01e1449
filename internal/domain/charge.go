/**
 * @description
 * Domain model for billing charges. A charge is one billing attempt against a
 * client, created through the payment gateway and settled (or not) by
 * reconciliation. Its lifecycle is independent of the client's subscription
 * record.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChargeStatus is the local charge lifecycle state.
type ChargeStatus string

const (
	ChargeStatusPending   ChargeStatus = "pending"
	ChargeStatusApproved  ChargeStatus = "approved"
	ChargeStatusCancelled ChargeStatus = "cancelled"
	ChargeStatusFailed    ChargeStatus = "failed"
	ChargeStatusExpired   ChargeStatus = "expired"
)

// IsTerminal reports whether the status absorbs all further transitions.
// Everything except pending is terminal.
func (s ChargeStatus) IsTerminal() bool {
	return s != ChargeStatusPending
}

// Charge is a ledger entry for one billing attempt. Rows are never deleted,
// only transitioned; paid_at is set iff status is approved.
type Charge struct {
	ID            uuid.UUID    `json:"id"`
	ClientID      uuid.UUID    `json:"client_id"`
	AccountID     uuid.UUID    `json:"account_id"`
	Amount        int64        `json:"amount"` // cents
	Status        ChargeStatus `json:"status"`
	Description   string       `json:"description"`
	GatewayTxID   string       `json:"gateway_txid"`
	QRImage       string       `json:"qr_image,omitempty"`
	CopyPasteCode string       `json:"copy_paste_code,omitempty"`
	ExpiresAt     time.Time    `json:"expires_at"`
	PaidAt        *time.Time   `json:"paid_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
}

// IsLivePending reports whether the charge can still be settled: pending and
// not yet past its gateway expiry.
func (c *Charge) IsLivePending(now time.Time) bool {
	return c.Status == ChargeStatusPending && c.ExpiresAt.After(now)
}

// ReconcileSummary aggregates the outcome of one reconciliation sweep,
// reported to operator dashboards.
type ReconcileSummary struct {
	Checked  int `json:"checked"`
	Approved int `json:"approved"`
	Expired  int `json:"expired"`
	Failed   int `json:"failed"`
}
