package template

import (
	"fmt"
	"time"

	"github.com/zapfatura/billing-service/internal/domain"
)

const dateLayout = "02/01/2006"

// FormatAmount renders an amount in cents as a currency string, e.g. 5990 ->
// "R$ 59,90".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%sR$ %d,%02d", sign, cents/100, cents%100)
}

// ClientSubs builds the substitution map for a client's reminder messages.
// Gateway fields (copy-paste code) are filled from the live charge when one
// exists; the manual payment key comes from the account settings. Absent
// values are omitted so their placeholders stay verbatim in the rendered text.
func ClientSubs(account *domain.Account, client *domain.Client, charge *domain.Charge) map[string]string {
	subs := map[string]string{
		PlaceholderName: client.Name,
	}
	if client.SubscriptionAmount != nil {
		subs[PlaceholderAmount] = FormatAmount(*client.SubscriptionAmount)
	}
	if client.DueDate != nil {
		subs[PlaceholderDueDate] = client.DueDate.Format(dateLayout)
	}
	if client.LastPaymentDate != nil {
		subs[PlaceholderPaymentDate] = client.LastPaymentDate.Format(dateLayout)
	}
	if charge != nil && charge.CopyPasteCode != "" {
		subs[PlaceholderCopyPasteCode] = charge.CopyPasteCode
	}
	if account.PixKey != "" {
		subs[PlaceholderPixKey] = account.PixKey
	}
	return subs
}

// ConfirmationSubs builds the substitution map for a payment-confirmation
// message, including the advanced due date.
func ConfirmationSubs(client *domain.Client, paidAt, newDueDate time.Time) map[string]string {
	subs := map[string]string{
		PlaceholderName:        client.Name,
		PlaceholderPaymentDate: paidAt.Format(dateLayout),
		PlaceholderNewDueDate:  newDueDate.Format(dateLayout),
	}
	if client.SubscriptionAmount != nil {
		subs[PlaceholderAmount] = FormatAmount(*client.SubscriptionAmount)
	}
	return subs
}
