/**
 * @description
 * Gateway reconciliation: fetches truth from the payment gateway and applies
 * it to the local charge ledger. The status mapping is a total function, so
 * an unrecognized remote vocabulary can never wedge a charge; it just stays
 * pending until the gateway speaks a settled state.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/zapfatura/billing-service/internal/domain"
)

// reconcileSweepLock names the lease that keeps concurrent reconcile sweeps
// from overlapping.
const reconcileSweepLock = "reconcile_sweep"

// MapGatewayStatus maps the gateway's status vocabulary onto the local charge
// enum. Total: unrecognized values map to pending, never to an error.
func MapGatewayStatus(remote string) domain.ChargeStatus {
	switch remote {
	case "concluida", "approved", "paid":
		return domain.ChargeStatusApproved
	case "cancelada", "devolvida", "cancelled":
		return domain.ChargeStatusCancelled
	case "rejeitada", "rejected":
		return domain.ChargeStatusFailed
	case "ativa", "pending":
		return domain.ChargeStatusPending
	default:
		return domain.ChargeStatusPending
	}
}

// ReconcileCharge polls the gateway for one charge and applies the mapped
// transition. Reconciling an already-terminal charge is a safe no-op; a
// gateway failure surfaces as ErrGatewayUnavailable and mutates nothing.
func (s *Service) ReconcileCharge(ctx context.Context, chargeID uuid.UUID) (*domain.Charge, error) {
	charge, err := s.repo.FindChargeByID(ctx, chargeID)
	if err != nil {
		return nil, err
	}
	if charge.Status.IsTerminal() {
		return charge, ErrAlreadyTerminal
	}

	gwResp, err := s.gateway.GetCharge(ctx, charge.GatewayTxID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	mapped := MapGatewayStatus(gwResp.Data.Status)
	if mapped == domain.ChargeStatusPending {
		// Gateway has nothing settled yet; leave the ledger untouched.
		return charge, nil
	}

	var paidAt *time.Time
	if mapped == domain.ChargeStatusApproved {
		if gwResp.Data.PaidAt != nil {
			paidAt = gwResp.Data.PaidAt
		} else {
			now := time.Now().UTC()
			paidAt = &now
		}
	}

	if err := s.ApplyTransition(ctx, chargeID, mapped, paidAt); err != nil {
		if errors.Is(err, ErrAlreadyTerminal) {
			// Another writer won the race; fine either way.
			log.Printf("level=info component=reconcile charge_id=%s msg=\"charge settled concurrently\"", chargeID)
		} else {
			return nil, err
		}
	}
	return s.repo.FindChargeByID(ctx, chargeID)
}

// ReconcileSweep expires overdue charges, then polls the gateway for every
// remaining live pending charge. Per-charge failures are counted and the
// sweep continues; only a precondition failure before the loop aborts it.
func (s *Service) ReconcileSweep(ctx context.Context) (*domain.ReconcileSummary, error) {
	release, acquired, err := s.locks.Acquire(ctx, reconcileSweepLock)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !acquired {
		return nil, ErrSweepAlreadyRunning
	}
	defer release()

	summary := &domain.ReconcileSummary{}

	expired, err := s.ExpireSweep(ctx)
	if err != nil {
		return nil, err
	}
	summary.Expired = expired

	pending, err := s.repo.ListPendingCharges(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list pending charges: %w", err)
	}
	summary.Checked = len(pending)

	for _, charge := range pending {
		updated, err := s.ReconcileCharge(ctx, charge.ID)
		if err != nil {
			if errors.Is(err, ErrAlreadyTerminal) {
				continue
			}
			summary.Failed++
			log.Printf("level=warn component=reconcile flow=sweep msg=\"charge reconciliation failed\" charge_id=%s err=%v", charge.ID, err)
			continue
		}
		if updated.Status == domain.ChargeStatusApproved {
			summary.Approved++
		}
	}

	log.Printf("level=info component=reconcile flow=sweep checked=%d approved=%d expired=%d failed=%d", summary.Checked, summary.Approved, summary.Expired, summary.Failed)
	return summary, nil
}

// HandleGatewayWebhook applies a pushed status change from the gateway. Push
// and poll share the same compare-and-swap, so whichever arrives first wins
// and the loser degrades to an AlreadyTerminal no-op.
func (s *Service) HandleGatewayWebhook(ctx context.Context, gatewayTxID, remoteStatus string, paidAt *time.Time) error {
	charge, err := s.repo.FindChargeByGatewayTxID(ctx, gatewayTxID)
	if err != nil {
		return err
	}

	mapped := MapGatewayStatus(remoteStatus)
	if mapped == domain.ChargeStatusPending {
		return nil
	}
	if mapped == domain.ChargeStatusApproved && paidAt == nil {
		now := time.Now().UTC()
		paidAt = &now
	}
	return s.ApplyTransition(ctx, charge.ID, mapped, paidAt)
}
