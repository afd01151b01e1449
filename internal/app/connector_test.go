package app

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/zapfatura/billing-service/internal/domain"
	"github.com/zapfatura/billing-service/internal/store"
	"github.com/zapfatura/billing-service/pkg/waclient"
)

type sessionRepoStub struct {
	store.Repository

	upserted []*domain.Session
	deleted  int
}

func (s *sessionRepoStub) UpsertSession(ctx context.Context, session *domain.Session) error {
	s.upserted = append(s.upserted, session)
	return nil
}

func (s *sessionRepoStub) DeleteSession(ctx context.Context, accountID uuid.UUID) error {
	s.deleted++
	return nil
}

func (s *sessionRepoStub) lastState() domain.SessionState {
	if len(s.upserted) == 0 {
		return domain.SessionStateAbsent
	}
	return s.upserted[len(s.upserted)-1].State
}

type providerStub struct {
	statusResp *waclient.InstanceStatusResponse
	statusErr  error

	createErr   error
	recreateErr error
	deleteErr   error

	qrResp     *waclient.QRCodeResponse
	qrFailures int // this many leading QR fetches fail

	sendResp *waclient.SendMessageResponse
	sendErr  error

	createCalled   int
	recreateCalled int
	deleteCalled   int
	qrCalls        int
	webhookSet     string
}

func (p *providerStub) CreateInstance(ctx context.Context, name string) error {
	p.createCalled++
	return p.createErr
}

func (p *providerStub) ForceRecreateInstance(ctx context.Context, name string) error {
	p.recreateCalled++
	return p.recreateErr
}

func (p *providerStub) DeleteInstance(ctx context.Context, name string) error {
	p.deleteCalled++
	return p.deleteErr
}

func (p *providerStub) GetStatus(ctx context.Context, name string) (*waclient.InstanceStatusResponse, error) {
	if p.statusErr != nil {
		return nil, p.statusErr
	}
	return p.statusResp, nil
}

func (p *providerStub) GetQRCode(ctx context.Context, name string) (*waclient.QRCodeResponse, error) {
	p.qrCalls++
	if p.qrCalls <= p.qrFailures {
		return nil, errors.New("qr fetch failed")
	}
	if p.qrResp == nil {
		return &waclient.QRCodeResponse{Base64: "qr-payload"}, nil
	}
	return p.qrResp, nil
}

func (p *providerStub) SendMessage(ctx context.Context, name, phone, text string) (*waclient.SendMessageResponse, error) {
	if p.sendErr != nil {
		return nil, p.sendErr
	}
	return p.sendResp, nil
}

func (p *providerStub) SetWebhook(ctx context.Context, name, url string) error {
	p.webhookSet = url
	return nil
}

func notFoundErr() *waclient.ErrorResponse {
	return &waclient.ErrorResponse{StatusCode: http.StatusNotFound, Message: "instance not found"}
}

func statusResponse(state string) *waclient.InstanceStatusResponse {
	resp := &waclient.InstanceStatusResponse{}
	resp.Instance.State = state
	return resp
}

func newTestConnector(repo *sessionRepoStub, provider *providerStub) *Connector {
	c := NewConnector(repo, provider, "https://billing.example.com/webhook")
	c.recreateWait = 0
	return c
}

func TestConnect_CreatesFreshInstance(t *testing.T) {
	repo := &sessionRepoStub{}
	provider := &providerStub{statusErr: notFoundErr()}
	connector := newTestConnector(repo, provider)

	result, err := connector.Connect(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.State != domain.SessionStateQRPending {
		t.Fatalf("expected qr_pending, got %s", result.State)
	}
	if result.QRBase64 == "" {
		t.Fatal("expected a QR payload")
	}
	if provider.createCalled != 1 {
		t.Fatalf("expected one create call, got %d", provider.createCalled)
	}
	if provider.recreateCalled != 0 {
		t.Fatal("did not expect a recreate on the fresh path")
	}
	if repo.lastState() != domain.SessionStateQRPending {
		t.Fatalf("expected qr_pending persisted, got %s", repo.lastState())
	}
	if provider.webhookSet != "https://billing.example.com/webhook" {
		t.Fatalf("expected webhook registration, got %q", provider.webhookSet)
	}
}

func TestConnect_AlreadyOpenIsNoOp(t *testing.T) {
	repo := &sessionRepoStub{}
	provider := &providerStub{statusResp: statusResponse("open")}
	connector := newTestConnector(repo, provider)

	result, err := connector.Connect(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.State != domain.SessionStateOpen {
		t.Fatalf("expected open, got %s", result.State)
	}
	if provider.qrCalls != 0 {
		t.Fatal("did not expect a QR fetch for an open instance")
	}
	if repo.lastState() != domain.SessionStateOpen {
		t.Fatalf("expected open persisted, got %s", repo.lastState())
	}
}

func TestConnect_ExistingNotOpenFetchesFreshQR(t *testing.T) {
	repo := &sessionRepoStub{}
	provider := &providerStub{statusResp: statusResponse("connecting")}
	connector := newTestConnector(repo, provider)

	result, err := connector.Connect(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.State != domain.SessionStateQRPending {
		t.Fatalf("expected qr_pending, got %s", result.State)
	}
	if provider.recreateCalled != 0 {
		t.Fatal("did not expect a recreate when the soft QR fetch works")
	}
}

func TestConnect_SoftFailureEscalatesToOneRecreate(t *testing.T) {
	repo := &sessionRepoStub{}
	provider := &providerStub{
		statusResp: statusResponse("close"),
		qrFailures: 1, // soft fetch fails, post-recreate fetch succeeds
	}
	connector := newTestConnector(repo, provider)

	result, err := connector.Connect(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result.State != domain.SessionStateQRPending {
		t.Fatalf("expected qr_pending, got %s", result.State)
	}
	if provider.recreateCalled != 1 {
		t.Fatalf("expected exactly one recreate, got %d", provider.recreateCalled)
	}
}

func TestConnect_HardFailureIsUnrecoverable(t *testing.T) {
	repo := &sessionRepoStub{}
	provider := &providerStub{
		statusResp: statusResponse("close"),
		qrFailures: 2, // both the soft and post-recreate fetch fail
	}
	connector := newTestConnector(repo, provider)

	_, err := connector.Connect(context.Background(), uuid.New())
	if !errors.Is(err, ErrInstanceUnrecoverable) {
		t.Fatalf("expected ErrInstanceUnrecoverable, got %v", err)
	}
	if provider.recreateCalled != 1 {
		t.Fatalf("expected exactly one recreate before giving up, got %d", provider.recreateCalled)
	}
	if repo.lastState() != domain.SessionStateError {
		t.Fatalf("expected error state persisted, got %s", repo.lastState())
	}
}

func TestConnect_EmptyQRPayloadEscalates(t *testing.T) {
	repo := &sessionRepoStub{}
	provider := &providerStub{
		statusErr: notFoundErr(),
		qrResp:    &waclient.QRCodeResponse{Base64: ""},
	}
	connector := newTestConnector(repo, provider)

	_, err := connector.Connect(context.Background(), uuid.New())
	if !errors.Is(err, ErrInstanceUnrecoverable) {
		t.Fatalf("expected ErrInstanceUnrecoverable when the QR never arrives, got %v", err)
	}
	if provider.recreateCalled != 1 {
		t.Fatalf("expected one recreate attempt, got %d", provider.recreateCalled)
	}
}

func TestConnect_ProviderDown(t *testing.T) {
	repo := &sessionRepoStub{}
	provider := &providerStub{
		statusErr: &waclient.ErrorResponse{StatusCode: http.StatusInternalServerError, Message: "boom"},
	}
	connector := newTestConnector(repo, provider)

	_, err := connector.Connect(context.Background(), uuid.New())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if provider.createCalled != 0 || provider.recreateCalled != 0 {
		t.Fatal("did not expect instance mutations while the provider is down")
	}
}

func TestStatus_NotFoundClearsSession(t *testing.T) {
	repo := &sessionRepoStub{}
	provider := &providerStub{statusErr: notFoundErr()}
	connector := newTestConnector(repo, provider)

	state, err := connector.Status(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if state != domain.SessionStateAbsent {
		t.Fatalf("expected absent, got %s", state)
	}
	if repo.deleted != 1 {
		t.Fatalf("expected the stale session to be cleared, deleted=%d", repo.deleted)
	}
}

func TestStatus_RefreshesPersistedState(t *testing.T) {
	repo := &sessionRepoStub{}
	provider := &providerStub{statusResp: statusResponse("open")}
	connector := newTestConnector(repo, provider)

	state, err := connector.Status(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if state != domain.SessionStateOpen {
		t.Fatalf("expected open, got %s", state)
	}
	if repo.lastState() != domain.SessionStateOpen {
		t.Fatalf("expected open persisted, got %s", repo.lastState())
	}
}

func TestSend_ReturnsProviderMessageID(t *testing.T) {
	resp := &waclient.SendMessageResponse{}
	resp.Key.ID = "provider-msg-9"
	provider := &providerStub{sendResp: resp}
	connector := newTestConnector(&sessionRepoStub{}, provider)

	id, err := connector.Send(context.Background(), uuid.New(), "5511999990000", "oi")
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if id != "provider-msg-9" {
		t.Fatalf("expected the provider message id, got %q", id)
	}
}

func TestSend_WrapsFailure(t *testing.T) {
	provider := &providerStub{sendErr: errors.New("number not on whatsapp")}
	connector := newTestConnector(&sessionRepoStub{}, provider)

	_, err := connector.Send(context.Background(), uuid.New(), "5511999990000", "oi")
	if !errors.Is(err, ErrProviderSendFailure) {
		t.Fatalf("expected ErrProviderSendFailure, got %v", err)
	}
}

func TestDisconnect_NotFoundIsSuccess(t *testing.T) {
	repo := &sessionRepoStub{}
	provider := &providerStub{deleteErr: notFoundErr()}
	connector := newTestConnector(repo, provider)

	if err := connector.Disconnect(context.Background(), uuid.New()); err != nil {
		t.Fatalf("expected idempotent disconnect, got %v", err)
	}
	if repo.deleted != 1 {
		t.Fatalf("expected the local session to be cleared, deleted=%d", repo.deleted)
	}
}

func TestDisconnect_ProviderFailure(t *testing.T) {
	repo := &sessionRepoStub{}
	provider := &providerStub{deleteErr: errors.New("timeout")}
	connector := newTestConnector(repo, provider)

	err := connector.Disconnect(context.Background(), uuid.New())
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if repo.deleted != 0 {
		t.Fatal("expected the local session to survive a failed remote delete")
	}
}
