package app

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zapfatura/billing-service/internal/domain"
)

func newTestJobs(svc *Service) *Jobs {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewJobs(svc, logger)
}

func TestRunReconcileSweep_SkipsWhenLockHeld(t *testing.T) {
	repo := &reconcileRepoStub{}
	locker := &lockerStub{acquired: false}
	svc := NewService(repo, &gatewayStub{}, &connectorStub{}, &publisherStub{}, locker, time.Hour, 0)
	jobs := newTestJobs(svc)

	// Must not panic or error; the overlap degrades to a logged skip.
	jobs.RunReconcileSweep()

	if repo.transitionCalled {
		t.Fatal("expected no ledger work while the lock is held elsewhere")
	}
}

func TestRunNotificationSweep_CompletesPass(t *testing.T) {
	accountID := uuid.New()
	repo := &notifierRepoStub{accountIDs: []uuid.UUID{accountID}}
	repo.account = notifyAccount(accountID)
	due := time.Now().UTC()
	repo.clients = []domain.Client{
		notifyClient(accountID, due, domain.NotificationConfig{OnDueDate: true}),
	}
	connector := &connectorStub{state: domain.SessionStateOpen}
	svc := newTestService(repo, &gatewayStub{}, connector, &publisherStub{})
	jobs := newTestJobs(svc)

	jobs.RunNotificationSweep()

	if len(connector.sent) != 1 {
		t.Fatalf("expected one reminder sent by the job, got %d", len(connector.sent))
	}
}
