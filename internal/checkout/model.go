package checkout

import (
	"time"

	"github.com/laglue/storefront/internal/auth"
	"github.com/laglue/storefront/internal/cart"
	"github.com/laglue/storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// Request is the delivery form submitted with an order.
type Request struct {
	Name      string
	WhatsApp  string
	Address   string
	ClearCart bool
}

// Customer is the buyer block of an order snapshot.
type Customer struct {
	Name            string `json:"name"`
	WhatsApp        string `json:"whatsapp"`
	Address         string `json:"address"`
	IsAuthenticated bool   `json:"isAuthenticated"`
}

// OrderTotals mirrors the cart totals at submission time.
type OrderTotals struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"deliveryFee"`
	Total       decimal.Decimal `json:"total"`
	ItemsCount  int             `json:"itemsCount"`
}

// Order is the snapshot appended to the admin order log and published as
// the order.submitted payload.
type Order struct {
	Code      string            `json:"code"`
	Timestamp time.Time         `json:"timestamp"`
	Date      string            `json:"date"`
	Time      string            `json:"time"`
	Customer  Customer          `json:"customer"`
	Items     []auth.OrderLine  `json:"items"`
	Totals    OrderTotals       `json:"totals"`
	Status    enums.OrderStatus `json:"status"`
}

// Receipt is everything the shopper needs after submitting.
type Receipt struct {
	Order        Order             `json:"order"`
	Message      string            `json:"message"`
	WhatsAppURL  string            `json:"whatsapp_url"`
	FallbackCode bool              `json:"fallback_code"`
	History      *auth.OrderRecord `json:"history,omitempty"`
	Cart         cart.Result       `json:"cart"`
}

func orderLines(items []cart.Item) []auth.OrderLine {
	lines := make([]auth.OrderLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, auth.OrderLine{
			ID:       item.ProductID,
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
			Total:    item.LineTotal(),
		})
	}
	return lines
}
