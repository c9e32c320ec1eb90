package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/laglue/storefront/pkg/money"
)

const whatsAppBaseURL = "https://wa.me/"

// MessageStyle carries the shop identity printed in the order message.
type MessageStyle struct {
	StoreName string
	Tagline   string
	Currency  string
}

// ComposeMessage renders the WhatsApp order summary.
func ComposeMessage(order Order, style MessageStyle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🛒 *Nouvelle commande - %s*\n\n", style.StoreName)
	fmt.Fprintf(&b, "📄 *CODE: %s*\n", order.Code)
	fmt.Fprintf(&b, "📅 %s à %s\n\n", order.Date, order.Time)

	b.WriteString("👤 *CLIENT:*\n")
	fmt.Fprintf(&b, "• Nom: %s\n", order.Customer.Name)
	fmt.Fprintf(&b, "• WhatsApp: %s\n", order.Customer.WhatsApp)
	fmt.Fprintf(&b, "• Adresse: %s\n\n", order.Customer.Address)

	b.WriteString("📦 *PRODUITS:*\n")
	for i, item := range order.Items {
		fmt.Fprintf(&b, "%d. %s\n", i+1, item.Name)
		fmt.Fprintf(&b, "   %s x %d = %s\n\n",
			money.Format(item.Price, style.Currency), item.Quantity, money.Format(item.Total, style.Currency))
	}

	fmt.Fprintf(&b, "💰 *TOTAL: %s*\n\n", money.Format(order.Totals.Total, style.Currency))
	b.WriteString("⚠️ Code requis pour toute réclamation\n")
	fmt.Fprintf(&b, "%s - %s", style.StoreName, style.Tagline)
	return b.String()
}

// WhatsAppURL builds the wa.me deep link carrying message.
func WhatsAppURL(number, message string) string {
	return whatsAppBaseURL + strings.TrimPrefix(strings.TrimSpace(number), "+") + "?text=" + EncodeURIComponent(message)
}

var componentUnescapes = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent escapes s like the browser function of the same name:
// spaces become %20 and !'()* stay literal.
func EncodeURIComponent(s string) string {
	return componentUnescapes.Replace(url.QueryEscape(s))
}
