/**
 * @description
 * The notification sweep: one sequential pass over every eligible client,
 * firing the day-offset reminders that match today, deduplicated against the
 * message log so a double-triggered sweep never double-sends.
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
	"github.com/zapfatura/billing-service/internal/store"
	"github.com/zapfatura/billing-service/internal/template"
	"github.com/zapfatura/billing-service/pkg/rabbitmq"
)

// notifySweepLock names the lease held for the duration of a notification
// sweep.
const notifySweepLock = "notify_sweep"

// reminderOffset is the whole-day distance from the client's due date:
// negative before the due date, zero on it, positive after. A client due in
// three days sits at offset -3.
func reminderOffset(dueDate, now time.Time) int {
	due := dueDate.UTC().Truncate(24 * time.Hour)
	today := now.UTC().Truncate(24 * time.Hour)
	return int(today.Sub(due).Hours() / 24)
}

// RunNotificationSweep runs the reminder sweep for every account under the
// sweep lease. Accounts whose channel is down are skipped with a warning; the
// sweep itself continues.
func (s *Service) RunNotificationSweep(ctx context.Context, now time.Time) (*domain.NotifySummary, error) {
	release, acquired, err := s.locks.Acquire(ctx, notifySweepLock)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !acquired {
		return nil, ErrSweepAlreadyRunning
	}
	defer release()

	accountIDs, err := s.repo.ListAccountIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	total := &domain.NotifySummary{}
	for _, accountID := range accountIDs {
		summary, err := s.sweepAccount(ctx, accountID, now)
		if err != nil {
			log.Printf("level=warn component=notifier flow=sweep msg=\"account sweep skipped\" account_id=%s err=%v", accountID, err)
			continue
		}
		total.Sent += summary.Sent
		total.Failed += summary.Failed
		total.Skipped += summary.Skipped
	}

	log.Printf("level=info component=notifier flow=sweep sent=%d failed=%d skipped=%d", total.Sent, total.Failed, total.Skipped)
	return total, nil
}

// RunNotificationSweepForAccount runs the sweep for a single account under
// the sweep lease, for operator-triggered runs.
func (s *Service) RunNotificationSweepForAccount(ctx context.Context, accountID uuid.UUID, now time.Time) (*domain.NotifySummary, error) {
	release, acquired, err := s.locks.Acquire(ctx, notifySweepLock)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire sweep lock: %w", err)
	}
	if !acquired {
		return nil, ErrSweepAlreadyRunning
	}
	defer release()

	return s.sweepAccount(ctx, accountID, now)
}

// sweepAccount performs one sequential pass over the account's eligible
// clients. The channel must be open before the loop starts; afterwards a
// per-client failure is logged and the pass continues.
func (s *Service) sweepAccount(ctx context.Context, accountID uuid.UUID, now time.Time) (*domain.NotifySummary, error) {
	account, err := s.repo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	// Precondition: live status check, never the cached flag.
	state, err := s.connector.Status(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInstanceNotConnected, err)
	}
	if state != domain.SessionStateOpen {
		return nil, fmt.Errorf("%w: channel state is %s", ErrInstanceNotConnected, state)
	}

	clients, err := s.repo.ListNotifiableClients(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}

	summary := &domain.NotifySummary{}
	sentAny := false
	for i := range clients {
		client := &clients[i]
		offset := reminderOffset(*client.DueDate, now)
		kind, ok := domain.ReminderOffsets[offset]
		if !ok || !client.Notifications.Enabled(offset) {
			continue
		}

		// Dedup: one sent reminder of each kind per billing cycle. A due
		// date change starts a fresh cycle.
		alreadySent, err := s.repo.HasSentMessageSince(ctx, client.ID, kind, client.DueDateUpdatedAt)
		if err != nil {
			summary.Failed++
			log.Printf("level=warn component=notifier flow=sweep msg=\"dedup check failed\" client_id=%s err=%v", client.ID, err)
			continue
		}
		if alreadySent {
			summary.Skipped++
			continue
		}

		tmpl, ok := account.Templates[string(kind)]
		if !ok || tmpl == "" {
			summary.Skipped++
			log.Printf("level=info component=notifier flow=sweep msg=\"no template configured\" account_id=%s kind=%s", accountID, kind)
			continue
		}

		// Fixed pause between sends; deliberate backpressure for the
		// provider, not parallelism.
		if sentAny && s.sendDelay > 0 {
			select {
			case <-ctx.Done():
				return summary, ctx.Err()
			case <-time.After(s.sendDelay):
			}
		}

		if s.sendReminder(ctx, account, client, kind, tmpl) {
			summary.Sent++
		} else {
			summary.Failed++
		}
		sentAny = true
	}
	return summary, nil
}

// sendReminder renders, sends and logs one reminder attempt. Exactly one
// message-log row is written regardless of the outcome.
func (s *Service) sendReminder(ctx context.Context, account *domain.Account, client *domain.Client, kind domain.MessageKind, tmpl string) bool {
	var charge *domain.Charge
	if account.PaymentMethod == "gateway" {
		liveCharge, err := s.repo.FindLivePendingCharge(ctx, client.ID, time.Now().UTC())
		if err == nil {
			charge = liveCharge
		} else if !errors.Is(err, store.ErrChargeNotFound) {
			log.Printf("level=warn component=notifier flow=send msg=\"pending charge lookup failed\" client_id=%s err=%v", client.ID, err)
		}
	}

	body := template.Render(tmpl, template.ClientSubs(account, client, charge))
	providerMessageID, sendErr := s.connector.Send(ctx, client.AccountID, client.Phone, body)

	entry := &domain.MessageLog{
		ID:        uuid.New(),
		ClientID:  client.ID,
		AccountID: client.AccountID,
		Kind:      kind,
		Status:    domain.MessageStatusSent,
		Body:      body,
	}
	if sendErr != nil {
		entry.Status = domain.MessageStatusFailed
		log.Printf("level=warn component=notifier flow=send msg=\"reminder send failed\" client_id=%s kind=%s err=%v", client.ID, kind, sendErr)
	} else if providerMessageID != "" {
		entry.ProviderMessageID = &providerMessageID
	}

	if err := s.repo.CreateMessageLog(ctx, entry); err != nil {
		log.Printf("level=error component=notifier flow=send msg=\"message log write failed\" client_id=%s kind=%s err=%v", client.ID, kind, err)
	}

	if s.eventProducer != nil {
		event := domain.ReminderSentEvent{
			ClientID:  client.ID,
			Kind:      string(kind),
			Status:    string(entry.Status),
			Timestamp: time.Now().UTC(),
		}
		if err := s.eventProducer.Publish(ctx, rabbitmq.BillingEventsExchange, "reminder.sent", event); err != nil {
			log.Printf("level=warn component=notifier flow=send msg=\"event publish failed\" client_id=%s err=%v", client.ID, err)
		}
	}
	return sendErr == nil
}
