/**
 * @description
 * The messaging channel connector: manages one provider instance per account
 * through an explicit state machine (absent, qr_pending, connecting, open,
 * error). Connect walks an escalation ladder from "create fresh" to "force
 * recreate", with exactly one hard-recreate attempt before giving up. The
 * provider is the source of truth; the persisted session row is a
 * read-through cache refreshed on every status call.
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
	"github.com/zapfatura/billing-service/pkg/waclient"
)

// ProviderAPI is the slice of the messaging-provider client the connector
// uses.
type ProviderAPI interface {
	CreateInstance(ctx context.Context, name string) error
	ForceRecreateInstance(ctx context.Context, name string) error
	DeleteInstance(ctx context.Context, name string) error
	GetStatus(ctx context.Context, name string) (*waclient.InstanceStatusResponse, error)
	GetQRCode(ctx context.Context, name string) (*waclient.QRCodeResponse, error)
	SendMessage(ctx context.Context, name, phone, text string) (*waclient.SendMessageResponse, error)
	SetWebhook(ctx context.Context, name, url string) error
}

// Connector manages messaging sessions for all accounts.
type Connector struct {
	repo       store.Repository
	provider   ProviderAPI
	webhookURL string
	// recreateWait is the settling pause between a force-recreate and the
	// follow-up QR fetch.
	recreateWait time.Duration
}

// NewConnector creates a connector. webhookURL may be empty; then no webhook
// is registered on connect.
func NewConnector(repo store.Repository, provider ProviderAPI, webhookURL string) *Connector {
	return &Connector{
		repo:         repo,
		provider:     provider,
		webhookURL:   webhookURL,
		recreateWait: 2 * time.Second,
	}
}

// instanceName derives the stable provider instance name for an account.
func instanceName(accountID uuid.UUID) string {
	return "billing_" + accountID.String()
}

// mapProviderState maps the provider's connection vocabulary onto the local
// session states. Unknown values are treated as connecting, not errors.
func mapProviderState(remote string) domain.SessionState {
	switch remote {
	case "open":
		return domain.SessionStateOpen
	case "connecting", "close":
		return domain.SessionStateConnecting
	default:
		return domain.SessionStateConnecting
	}
}

// Connect brings the account's instance to a usable state. Each rung of the
// ladder is attempted only if the previous one failed:
//  1. no remote instance: create it and fetch a QR payload,
//  2. remote state open: already connected, sync the local record,
//  3. otherwise: fetch a fresh QR directly (soft path),
//  4. soft path failed: force-recreate, wait briefly, fetch QR (hard path),
//  5. hard path failed: ErrInstanceUnrecoverable.
//
// Every successful path leaves the session in qr_pending or open and persists
// the instance name against the account.
func (c *Connector) Connect(ctx context.Context, accountID uuid.UUID) (*domain.ConnectResult, error) {
	name := instanceName(accountID)

	status, err := c.provider.GetStatus(ctx, name)
	switch {
	case err == nil:
		remoteState := mapProviderState(status.Instance.State)
		if remoteState == domain.SessionStateOpen {
			// Rung 2: already paired. Sync and stop.
			if err := c.persistState(ctx, accountID, name, domain.SessionStateOpen); err != nil {
				return nil, err
			}
			log.Printf("level=info component=connector op=connect account_id=%s msg=\"instance already open\"", accountID)
			return &domain.ConnectResult{State: domain.SessionStateOpen}, nil
		}
		// Rung 3: instance exists but is not open; try a fresh QR.
		if result, err := c.fetchQR(ctx, accountID, name); err == nil {
			return result, nil
		} else {
			log.Printf("level=warn component=connector op=connect account_id=%s msg=\"soft QR fetch failed; escalating to recreate\" err=%v", accountID, err)
		}
		return c.hardRecreate(ctx, accountID, name)

	case isProviderNotFound(err):
		// Rung 1: no remote instance yet.
		if err := c.provider.CreateInstance(ctx, name); err != nil {
			return nil, fmt.Errorf("%w: create instance: %v", ErrProviderUnavailable, err)
		}
		result, err := c.fetchQR(ctx, accountID, name)
		if err != nil {
			return c.hardRecreate(ctx, accountID, name)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
}

// hardRecreate is the ladder's last rung before giving up: force-recreate the
// remote instance, wait for it to settle, and try the QR once more.
func (c *Connector) hardRecreate(ctx context.Context, accountID uuid.UUID, name string) (*domain.ConnectResult, error) {
	if err := c.provider.ForceRecreateInstance(ctx, name); err != nil {
		c.markError(ctx, accountID, name)
		return nil, fmt.Errorf("%w: force recreate failed: %v", ErrInstanceUnrecoverable, err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(c.recreateWait):
	}

	result, err := c.fetchQR(ctx, accountID, name)
	if err != nil {
		c.markError(ctx, accountID, name)
		return nil, fmt.Errorf("%w: QR fetch after recreate failed: %v", ErrInstanceUnrecoverable, err)
	}
	log.Printf("level=info component=connector op=connect account_id=%s msg=\"instance recreated\"", accountID)
	return result, nil
}

// fetchQR obtains a pairing payload and persists the qr_pending state.
func (c *Connector) fetchQR(ctx context.Context, accountID uuid.UUID, name string) (*domain.ConnectResult, error) {
	qr, err := c.provider.GetQRCode(ctx, name)
	if err != nil {
		return nil, err
	}
	if qr.Base64 == "" {
		return nil, errors.New("provider returned empty QR payload")
	}
	if err := c.persistState(ctx, accountID, name, domain.SessionStateQRPending); err != nil {
		return nil, err
	}
	if c.webhookURL != "" {
		if err := c.provider.SetWebhook(ctx, name, c.webhookURL); err != nil {
			log.Printf("level=warn component=connector op=connect account_id=%s msg=\"webhook registration failed\" err=%v", accountID, err)
		}
	}
	return &domain.ConnectResult{State: domain.SessionStateQRPending, QRBase64: qr.Base64}, nil
}

// Status performs a live provider status check and refreshes the persisted
// session record. The stored state is only ever a cache of this call.
func (c *Connector) Status(ctx context.Context, accountID uuid.UUID) (domain.SessionState, error) {
	name := instanceName(accountID)

	status, err := c.provider.GetStatus(ctx, name)
	if err != nil {
		if isProviderNotFound(err) {
			if err := c.repo.DeleteSession(ctx, accountID); err != nil {
				log.Printf("level=warn component=connector op=status account_id=%s msg=\"session cleanup failed\" err=%v", accountID, err)
			}
			return domain.SessionStateAbsent, nil
		}
		return domain.SessionStateError, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	state := mapProviderState(status.Instance.State)
	if err := c.persistState(ctx, accountID, name, state); err != nil {
		log.Printf("level=warn component=connector op=status account_id=%s msg=\"session refresh failed\" err=%v", accountID, err)
	}
	return state, nil
}

// CachedSession returns the persisted session record without touching the
// provider. For display only; every decision uses the live Status call.
func (c *Connector) CachedSession(ctx context.Context, accountID uuid.UUID) (*domain.Session, error) {
	return c.repo.FindSessionByAccountID(ctx, accountID)
}

// Send delivers a text message through the account's instance. Blocking;
// returns the provider message id on success.
func (c *Connector) Send(ctx context.Context, accountID uuid.UUID, phone, text string) (string, error) {
	name := instanceName(accountID)
	resp, err := c.provider.SendMessage(ctx, name, phone, text)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderSendFailure, err)
	}
	return resp.Key.ID, nil
}

// Disconnect deletes the remote instance and clears the local session. A
// remote "not found" during delete counts as success; teardown is idempotent.
func (c *Connector) Disconnect(ctx context.Context, accountID uuid.UUID) error {
	name := instanceName(accountID)
	if err := c.provider.DeleteInstance(ctx, name); err != nil && !isProviderNotFound(err) {
		return fmt.Errorf("%w: delete instance: %v", ErrProviderUnavailable, err)
	}
	if err := c.repo.DeleteSession(ctx, accountID); err != nil {
		return err
	}
	log.Printf("level=info component=connector op=disconnect account_id=%s", accountID)
	return nil
}

func (c *Connector) persistState(ctx context.Context, accountID uuid.UUID, name string, state domain.SessionState) error {
	return c.repo.UpsertSession(ctx, &domain.Session{
		AccountID:          accountID,
		InstanceName:       name,
		State:              state,
		LastStateCheckedAt: time.Now().UTC(),
	})
}

func (c *Connector) markError(ctx context.Context, accountID uuid.UUID, name string) {
	if err := c.persistState(ctx, accountID, name, domain.SessionStateError); err != nil {
		log.Printf("level=warn component=connector account_id=%s msg=\"failed to persist error state\" err=%v", accountID, err)
	}
}

func isProviderNotFound(err error) bool {
	var provErr *waclient.ErrorResponse
	return errors.As(err, &provErr) && provErr.IsNotFound()
}
