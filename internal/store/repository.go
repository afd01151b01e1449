/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access performed by the billing engine. The interface decouples the ledger,
 * reconciliation, notification and connector logic from PostgreSQL so each can
 * be exercised against stubs in tests.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zapfatura/billing-service/internal/domain"
)

var (
	ErrChargeNotFound  = errors.New("charge not found")
	ErrClientNotFound  = errors.New("client not found")
	ErrAccountNotFound = errors.New("account not found")
	ErrSessionNotFound = errors.New("messaging session not found")
)

// ChargeTransitionParams carries the fields applied by a status transition.
// PaidAt must be set iff Status is approved.
type ChargeTransitionParams struct {
	Status domain.ChargeStatus
	PaidAt *time.Time
}

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Account and client methods
	FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error)
	ListAccountIDs(ctx context.Context) ([]uuid.UUID, error)
	FindClientByID(ctx context.Context, clientID uuid.UUID) (*domain.Client, error)
	ListNotifiableClients(ctx context.Context, accountID uuid.UUID) ([]domain.Client, error)
	// AdvanceClientBillingDates moves a client's due date forward and stamps
	// the payment date. The due date is monotonic: the update only applies
	// when the new date is later than the stored one.
	AdvanceClientBillingDates(ctx context.Context, clientID uuid.UUID, newDueDate, paidAt time.Time) error

	// Charge ledger methods
	CreateCharge(ctx context.Context, charge *domain.Charge) error
	FindChargeByID(ctx context.Context, chargeID uuid.UUID) (*domain.Charge, error)
	FindChargeByGatewayTxID(ctx context.Context, gatewayTxID string) (*domain.Charge, error)
	FindLivePendingCharge(ctx context.Context, clientID uuid.UUID, now time.Time) (*domain.Charge, error)
	ListChargesByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Charge, error)
	ListPendingCharges(ctx context.Context, now time.Time) ([]domain.Charge, error)
	// ApplyChargeTransition performs the compare-and-swap: the update only
	// applies while the stored status is still pending. Returns false without
	// error when the charge was already terminal.
	ApplyChargeTransition(ctx context.Context, chargeID uuid.UUID, params ChargeTransitionParams) (bool, error)
	// ExpirePendingCharges transitions every pending charge whose expiry has
	// passed and returns the affected charges.
	ExpirePendingCharges(ctx context.Context, now time.Time) ([]domain.Charge, error)

	// Message log methods
	CreateMessageLog(ctx context.Context, entry *domain.MessageLog) error
	ListMessageLogsByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]domain.MessageLog, error)
	// HasSentMessageSince reports whether a sent entry of the given kind
	// exists for the client created at or after the given time. Used by the
	// notification sweep for dedup within one reminder cycle.
	HasSentMessageSince(ctx context.Context, clientID uuid.UUID, kind domain.MessageKind, since time.Time) (bool, error)

	// Messaging session methods
	FindSessionByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.Session, error)
	UpsertSession(ctx context.Context, session *domain.Session) error
	DeleteSession(ctx context.Context, accountID uuid.UUID) error
}
