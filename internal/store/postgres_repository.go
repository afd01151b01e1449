/**
 * @description
 * PostgreSQL implementation of the Repository interface using pgx. All status
 * mutations on charges go through a conditional UPDATE guarded on
 * status = 'pending', so concurrent writers (operator action, reconciliation
 * poller, gateway webhook) cannot regress a terminal state.
 */
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zapfatura/billing-service/internal/domain"
)

// PostgresRepository handles database operations for the billing engine.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new repository backed by the given pool.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// FindAccountByID retrieves a tenant account with its template texts.
func (r *PostgresRepository) FindAccountByID(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	var (
		account      domain.Account
		rawTemplates []byte
	)
	query := `
        SELECT id, billing_period_days, payment_method, COALESCE(pix_key, ''), COALESCE(templates, '{}'::jsonb)
        FROM accounts
        WHERE id = $1
    `
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&account.ID,
		&account.BillingPeriodDays,
		&account.PaymentMethod,
		&account.PixKey,
		&rawTemplates,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(rawTemplates, &account.Templates); err != nil {
		return nil, err
	}
	return &account, nil
}

// ListAccountIDs returns every tenant account id, the outer loop of the
// scheduled sweeps.
func (r *PostgresRepository) ListAccountIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const clientColumns = `
    id, account_id, name, phone, subscription_amount, due_date, last_payment_date,
    due_date_updated_at, notify_5_days_before, notify_3_days_before,
    notify_2_days_before, notify_1_day_before, notify_on_due_date, notify_1_day_after
`

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	err := row.Scan(
		&c.ID,
		&c.AccountID,
		&c.Name,
		&c.Phone,
		&c.SubscriptionAmount,
		&c.DueDate,
		&c.LastPaymentDate,
		&c.DueDateUpdatedAt,
		&c.Notifications.FiveDaysBefore,
		&c.Notifications.ThreeDaysBefore,
		&c.Notifications.TwoDaysBefore,
		&c.Notifications.OneDayBefore,
		&c.Notifications.OnDueDate,
		&c.Notifications.OneDayAfter,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindClientByID retrieves a single client.
func (r *PostgresRepository) FindClientByID(ctx context.Context, clientID uuid.UUID) (*domain.Client, error) {
	query := `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`
	client, err := scanClient(r.db.QueryRow(ctx, query, clientID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrClientNotFound
		}
		return nil, err
	}
	return client, nil
}

// ListNotifiableClients returns the account's clients eligible for the
// notification sweep: subscription amount and due date both set.
func (r *PostgresRepository) ListNotifiableClients(ctx context.Context, accountID uuid.UUID) ([]domain.Client, error) {
	query := `
        SELECT ` + clientColumns + `
        FROM clients
        WHERE account_id = $1
          AND subscription_amount IS NOT NULL
          AND due_date IS NOT NULL
        ORDER BY due_date, id
    `
	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []domain.Client
	for rows.Next() {
		client, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *client)
	}
	return clients, rows.Err()
}

// AdvanceClientBillingDates moves the client's due date forward. The WHERE
// clause keeps the due date monotonic: a stale or duplicate approval can
// never move it backward.
func (r *PostgresRepository) AdvanceClientBillingDates(ctx context.Context, clientID uuid.UUID, newDueDate, paidAt time.Time) error {
	query := `
        UPDATE clients
        SET due_date = $2,
            last_payment_date = $3,
            due_date_updated_at = NOW()
        WHERE id = $1
          AND (due_date IS NULL OR due_date < $2)
    `
	tag, err := r.db.Exec(ctx, query, clientID, newDueDate, paidAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Either the client is gone or the due date already sits at or past
		// the target; distinguish the two for the caller.
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM clients WHERE id = $1)`, clientID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrClientNotFound
		}
	}
	return nil
}

const chargeColumns = `
    id, client_id, account_id, amount, status, description, gateway_txid,
    COALESCE(qr_image, ''), COALESCE(copy_paste_code, ''), expires_at, paid_at, created_at
`

func scanCharge(row pgx.Row) (*domain.Charge, error) {
	var c domain.Charge
	err := row.Scan(
		&c.ID,
		&c.ClientID,
		&c.AccountID,
		&c.Amount,
		&c.Status,
		&c.Description,
		&c.GatewayTxID,
		&c.QRImage,
		&c.CopyPasteCode,
		&c.ExpiresAt,
		&c.PaidAt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCharge inserts a new pending charge.
func (r *PostgresRepository) CreateCharge(ctx context.Context, charge *domain.Charge) error {
	query := `
        INSERT INTO charges (id, client_id, account_id, amount, status, description,
                             gateway_txid, qr_image, copy_paste_code, expires_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
        RETURNING created_at
    `
	return r.db.QueryRow(ctx, query,
		charge.ID,
		charge.ClientID,
		charge.AccountID,
		charge.Amount,
		charge.Status,
		charge.Description,
		charge.GatewayTxID,
		charge.QRImage,
		charge.CopyPasteCode,
		charge.ExpiresAt,
	).Scan(&charge.CreatedAt)
}

// FindChargeByID retrieves a single charge.
func (r *PostgresRepository) FindChargeByID(ctx context.Context, chargeID uuid.UUID) (*domain.Charge, error) {
	query := `SELECT ` + chargeColumns + ` FROM charges WHERE id = $1`
	charge, err := scanCharge(r.db.QueryRow(ctx, query, chargeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChargeNotFound
		}
		return nil, err
	}
	return charge, nil
}

// FindChargeByGatewayTxID resolves a charge from the gateway's reference,
// used by the webhook path.
func (r *PostgresRepository) FindChargeByGatewayTxID(ctx context.Context, gatewayTxID string) (*domain.Charge, error) {
	query := `SELECT ` + chargeColumns + ` FROM charges WHERE gateway_txid = $1`
	charge, err := scanCharge(r.db.QueryRow(ctx, query, gatewayTxID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChargeNotFound
		}
		return nil, err
	}
	return charge, nil
}

// FindLivePendingCharge returns the client's pending charge whose expiry is
// still in the future, if one exists. At most one such row exists per client.
func (r *PostgresRepository) FindLivePendingCharge(ctx context.Context, clientID uuid.UUID, now time.Time) (*domain.Charge, error) {
	query := `
        SELECT ` + chargeColumns + `
        FROM charges
        WHERE client_id = $1
          AND status = 'pending'
          AND expires_at > $2
        ORDER BY created_at DESC
        LIMIT 1
    `
	charge, err := scanCharge(r.db.QueryRow(ctx, query, clientID, now))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrChargeNotFound
		}
		return nil, err
	}
	return charge, nil
}

// ListChargesByClient returns a client's charges, newest first.
func (r *PostgresRepository) ListChargesByClient(ctx context.Context, clientID uuid.UUID) ([]domain.Charge, error) {
	query := `SELECT ` + chargeColumns + ` FROM charges WHERE client_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var charges []domain.Charge
	for rows.Next() {
		charge, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		charges = append(charges, *charge)
	}
	return charges, rows.Err()
}

// ListPendingCharges returns all live pending charges, the reconciliation
// sweep's working set. The gateway credentials are deployment-wide, so the
// sweep is not scoped per account.
func (r *PostgresRepository) ListPendingCharges(ctx context.Context, now time.Time) ([]domain.Charge, error) {
	query := `
        SELECT ` + chargeColumns + `
        FROM charges
        WHERE status = 'pending'
          AND expires_at > $1
        ORDER BY created_at
    `
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var charges []domain.Charge
	for rows.Next() {
		charge, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		charges = append(charges, *charge)
	}
	return charges, rows.Err()
}

// ApplyChargeTransition performs the status compare-and-swap. The UPDATE only
// matches while the stored status is still pending, which linearizes all
// writers; a late duplicate becomes a zero-row update, never a regression.
func (r *PostgresRepository) ApplyChargeTransition(ctx context.Context, chargeID uuid.UUID, params ChargeTransitionParams) (bool, error) {
	query := `
        UPDATE charges
        SET status = $2,
            paid_at = $3
        WHERE id = $1
          AND status = 'pending'
    `
	tag, err := r.db.Exec(ctx, query, chargeID, params.Status, params.PaidAt)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM charges WHERE id = $1)`, chargeID).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, ErrChargeNotFound
	}
	return false, nil
}

// ExpirePendingCharges transitions every overdue pending charge to expired in
// a single statement and returns the affected rows. Safe to run any number of
// times.
func (r *PostgresRepository) ExpirePendingCharges(ctx context.Context, now time.Time) ([]domain.Charge, error) {
	query := `
        UPDATE charges
        SET status = 'expired'
        WHERE status = 'pending'
          AND expires_at <= $1
        RETURNING ` + chargeColumns + `
    `
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Charge
	for rows.Next() {
		charge, err := scanCharge(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *charge)
	}
	return expired, rows.Err()
}

// CreateMessageLog inserts a delivery-attempt record. Entries are append-only.
func (r *PostgresRepository) CreateMessageLog(ctx context.Context, entry *domain.MessageLog) error {
	query := `
        INSERT INTO message_logs (id, client_id, account_id, kind, status, body, provider_message_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
        RETURNING created_at
    `
	return r.db.QueryRow(ctx, query,
		entry.ID,
		entry.ClientID,
		entry.AccountID,
		entry.Kind,
		entry.Status,
		entry.Body,
		entry.ProviderMessageID,
	).Scan(&entry.CreatedAt)
}

// ListMessageLogsByClient returns a client's delivery history, newest first.
func (r *PostgresRepository) ListMessageLogsByClient(ctx context.Context, clientID uuid.UUID, limit int) ([]domain.MessageLog, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
        SELECT id, client_id, account_id, kind, status, body, provider_message_id, created_at
        FROM message_logs
        WHERE client_id = $1
        ORDER BY created_at DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, clientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.MessageLog
	for rows.Next() {
		var e domain.MessageLog
		if err := rows.Scan(&e.ID, &e.ClientID, &e.AccountID, &e.Kind, &e.Status, &e.Body, &e.ProviderMessageID, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// HasSentMessageSince reports whether a sent entry of the given kind exists
// for the client within the current reminder cycle.
func (r *PostgresRepository) HasSentMessageSince(ctx context.Context, clientID uuid.UUID, kind domain.MessageKind, since time.Time) (bool, error) {
	var exists bool
	query := `
        SELECT EXISTS (
            SELECT 1
            FROM message_logs
            WHERE client_id = $1
              AND kind = $2
              AND status = 'sent'
              AND created_at >= $3
        )
    `
	err := r.db.QueryRow(ctx, query, clientID, kind, since).Scan(&exists)
	return exists, err
}

// FindSessionByAccountID retrieves the account's messaging session record.
func (r *PostgresRepository) FindSessionByAccountID(ctx context.Context, accountID uuid.UUID) (*domain.Session, error) {
	var s domain.Session
	query := `
        SELECT account_id, instance_name, state, last_state_checked_at
        FROM wa_sessions
        WHERE account_id = $1
    `
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&s.AccountID,
		&s.InstanceName,
		&s.State,
		&s.LastStateCheckedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// UpsertSession persists the session record, one row per account.
func (r *PostgresRepository) UpsertSession(ctx context.Context, session *domain.Session) error {
	query := `
        INSERT INTO wa_sessions (account_id, instance_name, state, last_state_checked_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (account_id) DO UPDATE SET
            instance_name = EXCLUDED.instance_name,
            state = EXCLUDED.state,
            last_state_checked_at = EXCLUDED.last_state_checked_at
    `
	_, err := r.db.Exec(ctx, query, session.AccountID, session.InstanceName, session.State, session.LastStateCheckedAt)
	return err
}

// DeleteSession removes the account's session record after disconnect.
func (r *PostgresRepository) DeleteSession(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM wa_sessions WHERE account_id = $1`, accountID)
	return err
}
