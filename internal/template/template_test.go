package template

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zapfatura/billing-service/internal/domain"
)

func TestRender(t *testing.T) {
	subs := map[string]string{
		"nome":  "Maria",
		"valor": "R$ 59,90",
	}

	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "substitutes known placeholders",
			text: "Oi {nome}, sua assinatura de {valor} vence em breve.",
			want: "Oi Maria, sua assinatura de R$ 59,90 vence em breve.",
		},
		{
			name: "unknown placeholder stays verbatim",
			text: "Pague com {pix_copia_cola}",
			want: "Pague com {pix_copia_cola}",
		},
		{
			name: "no placeholders",
			text: "mensagem fixa",
			want: "mensagem fixa",
		},
		{
			name: "unclosed brace left alone",
			text: "Oi {nome, tudo bem?",
			want: "Oi {nome, tudo bem?",
		},
		{
			name: "stray brace before placeholder",
			text: "a{b{nome}",
			want: "a{bMaria",
		},
		{
			name: "repeated placeholder substituted each time",
			text: "{nome} e {nome}",
			want: "Maria e Maria",
		},
		{
			name: "empty braces stay verbatim",
			text: "x{}y",
			want: "x{}y",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(tt.text, subs)
			if got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRenderNilSubs(t *testing.T) {
	text := "Oi {nome}"
	if got := Render(text, nil); got != text {
		t.Fatalf("expected text untouched, got %q", got)
	}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{5990, "R$ 59,90"},
		{100, "R$ 1,00"},
		{5, "R$ 0,05"},
		{0, "R$ 0,00"},
		{123456, "R$ 1234,56"},
		{-250, "-R$ 2,50"},
	}
	for _, tt := range tests {
		if got := FormatAmount(tt.cents); got != tt.want {
			t.Fatalf("FormatAmount(%d): expected %q, got %q", tt.cents, tt.want, got)
		}
	}
}

func TestClientSubsGatewayCharge(t *testing.T) {
	amount := int64(5990)
	due := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	account := &domain.Account{ID: uuid.New(), PaymentMethod: "gateway"}
	client := &domain.Client{
		ID:                 uuid.New(),
		Name:               "Maria",
		SubscriptionAmount: &amount,
		DueDate:            &due,
	}
	charge := &domain.Charge{CopyPasteCode: "00020126pix..."}

	subs := ClientSubs(account, client, charge)

	if subs[PlaceholderName] != "Maria" {
		t.Fatalf("expected name sub, got %q", subs[PlaceholderName])
	}
	if subs[PlaceholderAmount] != "R$ 59,90" {
		t.Fatalf("expected formatted amount, got %q", subs[PlaceholderAmount])
	}
	if subs[PlaceholderDueDate] != "15/03/2026" {
		t.Fatalf("expected dd/mm/yyyy due date, got %q", subs[PlaceholderDueDate])
	}
	if subs[PlaceholderCopyPasteCode] != "00020126pix..." {
		t.Fatalf("expected copy-paste code from charge, got %q", subs[PlaceholderCopyPasteCode])
	}
	if _, ok := subs[PlaceholderPixKey]; ok {
		t.Fatal("did not expect pix key sub for account without one")
	}
}

func TestClientSubsManualKeyWithoutCharge(t *testing.T) {
	account := &domain.Account{ID: uuid.New(), PaymentMethod: "manual_key", PixKey: "chave@exemplo.com"}
	client := &domain.Client{ID: uuid.New(), Name: "João"}

	subs := ClientSubs(account, client, nil)

	if subs[PlaceholderPixKey] != "chave@exemplo.com" {
		t.Fatalf("expected account pix key, got %q", subs[PlaceholderPixKey])
	}
	if _, ok := subs[PlaceholderCopyPasteCode]; ok {
		t.Fatal("did not expect copy-paste sub without a live charge")
	}
	if _, ok := subs[PlaceholderAmount]; ok {
		t.Fatal("did not expect amount sub for client without subscription amount")
	}
}

func TestConfirmationSubs(t *testing.T) {
	amount := int64(10000)
	client := &domain.Client{ID: uuid.New(), Name: "Maria", SubscriptionAmount: &amount}
	paidAt := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	newDue := time.Date(2026, 4, 9, 14, 30, 0, 0, time.UTC)

	subs := ConfirmationSubs(client, paidAt, newDue)

	if subs[PlaceholderPaymentDate] != "10/03/2026" {
		t.Fatalf("expected payment date, got %q", subs[PlaceholderPaymentDate])
	}
	if subs[PlaceholderNewDueDate] != "09/04/2026" {
		t.Fatalf("expected new due date, got %q", subs[PlaceholderNewDueDate])
	}
	if subs[PlaceholderAmount] != "R$ 100,00" {
		t.Fatalf("expected amount, got %q", subs[PlaceholderAmount])
	}
}
