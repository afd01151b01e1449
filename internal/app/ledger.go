/**
 * @description
 * The payment charge ledger: the authoritative state machine for billing
 * charges. Charges are created pending and settle into exactly one of
 * approved, cancelled, failed or expired; every mutation goes through the
 * repository's compare-and-swap so manual operator actions, the
 * reconciliation poller and gateway webhooks cannot race each other into an
 * inconsistent state.
 *
 * @dependencies
 * - context, errors, fmt, log, strings, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/gatewayclient, pkg/rabbitmq: For external service communication.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zapfatura/billing-service/internal/domain"
	"github.com/zapfatura/billing-service/internal/store"
	"github.com/zapfatura/billing-service/internal/template"
	"github.com/zapfatura/billing-service/pkg/gatewayclient"
	"github.com/zapfatura/billing-service/pkg/rabbitmq"
)

const defaultChargeExpiry = 24 * time.Hour

// GatewayAPI is the slice of the payment gateway client used by the service.
type GatewayAPI interface {
	CreateCharge(ctx context.Context, amount int64, description string, expiry time.Duration) (*gatewayclient.ChargeResponse, error)
	GetCharge(ctx context.Context, txid string) (*gatewayclient.ChargeResponse, error)
}

// ChannelConnector is the slice of the messaging connector the billing logic
// depends on: a live status check and a blocking send.
type ChannelConnector interface {
	Status(ctx context.Context, accountID uuid.UUID) (domain.SessionState, error)
	Send(ctx context.Context, accountID uuid.UUID, phone, text string) (string, error)
}

// Service provides the core billing and notification logic.
type Service struct {
	repo          store.Repository
	gateway       GatewayAPI
	connector     ChannelConnector
	eventProducer rabbitmq.Publisher
	locks         SweepLocker
	chargeExpiry  time.Duration
	sendDelay     time.Duration
}

// NewService creates a new billing service instance.
func NewService(repo store.Repository, gateway GatewayAPI, connector ChannelConnector, producer rabbitmq.Publisher, locks SweepLocker, chargeExpiry, sendDelay time.Duration) *Service {
	if chargeExpiry <= 0 {
		chargeExpiry = defaultChargeExpiry
	}
	if locks == nil {
		locks = NoopSweepLocker{}
	}
	return &Service{
		repo:          repo,
		gateway:       gateway,
		connector:     connector,
		eventProducer: producer,
		locks:         locks,
		chargeExpiry:  chargeExpiry,
		sendDelay:     sendDelay,
	}
}

// CreateCharge generates a new gateway charge for a client, or returns the
// client's existing live pending charge unchanged. At most one live pending
// charge exists per client at any time.
func (s *Service) CreateCharge(ctx context.Context, clientID uuid.UUID, amount int64, description string) (*domain.Charge, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: description is required", ErrValidation)
	}

	client, err := s.repo.FindClientByID(ctx, clientID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	existing, err := s.repo.FindLivePendingCharge(ctx, clientID, now)
	if err == nil {
		log.Printf("level=info component=ledger op=create_charge msg=\"reusing live pending charge\" client_id=%s charge_id=%s", clientID, existing.ID)
		return existing, nil
	}
	if !errors.Is(err, store.ErrChargeNotFound) {
		return nil, err
	}

	gwResp, err := s.gateway.CreateCharge(ctx, amount, description, s.chargeExpiry)
	if err != nil {
		log.Printf("level=warn component=ledger op=create_charge msg=\"gateway charge creation failed\" client_id=%s err=%v", clientID, err)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	expiresAt := gwResp.Data.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = now.Add(s.chargeExpiry)
	}

	charge := &domain.Charge{
		ID:            uuid.New(),
		ClientID:      client.ID,
		AccountID:     client.AccountID,
		Amount:        amount,
		Status:        domain.ChargeStatusPending,
		Description:   description,
		GatewayTxID:   gwResp.Data.TxID,
		QRImage:       gwResp.Data.QRImage,
		CopyPasteCode: gwResp.Data.CopyPasteCode,
		ExpiresAt:     expiresAt,
	}
	if err := s.repo.CreateCharge(ctx, charge); err != nil {
		return nil, fmt.Errorf("failed to persist charge: %w", err)
	}

	log.Printf("level=info component=ledger op=create_charge charge_id=%s client_id=%s amount=%d gateway_txid=%s", charge.ID, clientID, amount, charge.GatewayTxID)
	return charge, nil
}

// ApplyTransition moves a charge out of pending. The transition only applies
// while the stored status is still pending; a charge already settled yields
// ErrAlreadyTerminal, which callers treat as an informational no-op. A
// transition to approved triggers the billing cascade.
func (s *Service) ApplyTransition(ctx context.Context, chargeID uuid.UUID, status domain.ChargeStatus, paidAt *time.Time) error {
	switch status {
	case domain.ChargeStatusApproved:
		if paidAt == nil {
			return fmt.Errorf("%w: approved transition requires paid_at", ErrValidation)
		}
	case domain.ChargeStatusCancelled, domain.ChargeStatusFailed, domain.ChargeStatusExpired:
		// paid_at is set iff approved.
		paidAt = nil
	default:
		return fmt.Errorf("%w: %q is not a terminal status", ErrValidation, status)
	}

	charge, err := s.repo.FindChargeByID(ctx, chargeID)
	if err != nil {
		return err
	}
	if charge.Status.IsTerminal() {
		return ErrAlreadyTerminal
	}

	applied, err := s.repo.ApplyChargeTransition(ctx, chargeID, store.ChargeTransitionParams{
		Status: status,
		PaidAt: paidAt,
	})
	if err != nil {
		return fmt.Errorf("failed to apply charge transition: %w", err)
	}
	if !applied {
		// Another writer settled the charge between the read and the CAS.
		return ErrAlreadyTerminal
	}

	log.Printf("level=info component=ledger op=apply_transition charge_id=%s status=%s", chargeID, status)

	if status == domain.ChargeStatusApproved {
		s.approvePaymentCascade(ctx, charge, *paidAt)
	}
	return nil
}

// approvePaymentCascade advances the client's billing dates and, best-effort,
// announces the payment. Nothing here rolls back the approval.
func (s *Service) approvePaymentCascade(ctx context.Context, charge *domain.Charge, paidAt time.Time) {
	account, err := s.repo.FindAccountByID(ctx, charge.AccountID)
	if err != nil {
		log.Printf("level=error component=ledger flow=approve_cascade msg=\"account lookup failed\" charge_id=%s err=%v", charge.ID, err)
		return
	}

	// Policy: the new due date advances from the payment date, not from the
	// previous due date. Early payers get their full period.
	newDueDate := paidAt.Add(account.BillingPeriod())

	if err := s.repo.AdvanceClientBillingDates(ctx, charge.ClientID, newDueDate, paidAt); err != nil {
		log.Printf("level=error component=ledger flow=approve_cascade msg=\"failed to advance billing dates\" charge_id=%s client_id=%s err=%v", charge.ID, charge.ClientID, err)
		return
	}
	log.Printf("level=info component=ledger flow=approve_cascade charge_id=%s client_id=%s new_due_date=%s", charge.ID, charge.ClientID, newDueDate.Format("2006-01-02"))

	if s.eventProducer != nil {
		event := domain.PaymentApprovedEvent{
			ChargeID:   charge.ID,
			ClientID:   charge.ClientID,
			AccountID:  charge.AccountID,
			Amount:     charge.Amount,
			PaidAt:     paidAt,
			NewDueDate: newDueDate,
		}
		if err := s.eventProducer.Publish(ctx, rabbitmq.BillingEventsExchange, "payment.approved", event); err != nil {
			log.Printf("level=warn component=ledger flow=approve_cascade msg=\"event publish failed\" charge_id=%s err=%v", charge.ID, err)
		}
	}

	s.sendPaymentConfirmation(ctx, account, charge, paidAt, newDueDate)
}

// sendPaymentConfirmation delivers the payment-confirmation message and logs
// the attempt. Failures are logged only; the approval stands regardless.
func (s *Service) sendPaymentConfirmation(ctx context.Context, account *domain.Account, charge *domain.Charge, paidAt, newDueDate time.Time) {
	if s.connector == nil {
		return
	}
	tmpl, ok := account.Templates[string(domain.MessageKindPaymentConfirmation)]
	if !ok || strings.TrimSpace(tmpl) == "" {
		return
	}

	client, err := s.repo.FindClientByID(ctx, charge.ClientID)
	if err != nil {
		log.Printf("level=warn component=ledger flow=payment_confirmation msg=\"client lookup failed\" charge_id=%s err=%v", charge.ID, err)
		return
	}

	body := template.Render(tmpl, template.ConfirmationSubs(client, paidAt, newDueDate))
	providerMessageID, sendErr := s.connector.Send(ctx, client.AccountID, client.Phone, body)

	entry := &domain.MessageLog{
		ID:        uuid.New(),
		ClientID:  client.ID,
		AccountID: client.AccountID,
		Kind:      domain.MessageKindPaymentConfirmation,
		Status:    domain.MessageStatusSent,
		Body:      body,
	}
	if sendErr != nil {
		entry.Status = domain.MessageStatusFailed
		log.Printf("level=warn component=ledger flow=payment_confirmation msg=\"send failed\" client_id=%s err=%v", client.ID, sendErr)
	} else if providerMessageID != "" {
		entry.ProviderMessageID = &providerMessageID
	}
	if err := s.repo.CreateMessageLog(ctx, entry); err != nil {
		log.Printf("level=warn component=ledger flow=payment_confirmation msg=\"message log write failed\" client_id=%s err=%v", client.ID, err)
	}
}

// ExpireSweep transitions every pending charge whose expiry has passed. Pure
// time comparison, safe to run anytime, any number of times.
func (s *Service) ExpireSweep(ctx context.Context) (int, error) {
	now := time.Now().UTC()
	expired, err := s.repo.ExpirePendingCharges(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending charges: %w", err)
	}

	for _, charge := range expired {
		log.Printf("level=info component=ledger op=expire_sweep charge_id=%s client_id=%s", charge.ID, charge.ClientID)
		if s.eventProducer != nil {
			event := domain.ChargeExpiredEvent{
				ChargeID:  charge.ID,
				ClientID:  charge.ClientID,
				ExpiredAt: now,
			}
			if err := s.eventProducer.Publish(ctx, rabbitmq.BillingEventsExchange, "charge.expired", event); err != nil {
				log.Printf("level=warn component=ledger op=expire_sweep msg=\"event publish failed\" charge_id=%s err=%v", charge.ID, err)
			}
		}
	}
	return len(expired), nil
}

// GetCharge returns a single charge.
func (s *Service) GetCharge(ctx context.Context, chargeID uuid.UUID) (*domain.Charge, error) {
	return s.repo.FindChargeByID(ctx, chargeID)
}

// ListCharges returns a client's charge history.
func (s *Service) ListCharges(ctx context.Context, clientID uuid.UUID) ([]domain.Charge, error) {
	return s.repo.ListChargesByClient(ctx, clientID)
}

// ListMessages returns a client's message log.
func (s *Service) ListMessages(ctx context.Context, clientID uuid.UUID, limit int) ([]domain.MessageLog, error) {
	return s.repo.ListMessageLogsByClient(ctx, clientID, limit)
}
