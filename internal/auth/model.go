package auth

import (
	"time"

	"github.com/laglue/storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// Profile is the record kept per normalized phone number.
type Profile struct {
	WhatsApp            string          `json:"whatsapp"`
	Name                string          `json:"name"`
	Address             string          `json:"address"`
	CreatedAt           time.Time       `json:"createdAt"`
	LastLogin           time.Time       `json:"lastLogin"`
	UpdatedAt           *time.Time      `json:"updatedAt,omitempty"`
	OrderCount          int             `json:"orderCount"`
	TotalSpent          decimal.Decimal `json:"totalSpent"`
	PreferredCategories []string        `json:"preferredCategories"`
}

func newProfile(phone string, now time.Time) Profile {
	return Profile{
		WhatsApp:            phone,
		CreatedAt:           now,
		LastLogin:           now,
		TotalSpent:          decimal.Zero,
		PreferredCategories: []string{},
	}
}

// OrderLine is a purchased line as kept in the order history.
type OrderLine struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Total    decimal.Decimal `json:"total"`
}

// CustomerInfo is the profile snapshot stamped on an order.
type CustomerInfo struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	WhatsApp string `json:"whatsapp"`
}

// OrderRecord is one entry of a shopper's order history.
type OrderRecord struct {
	ID           string            `json:"id"`
	Date         time.Time         `json:"date"`
	Items        []OrderLine       `json:"items"`
	Subtotal     decimal.Decimal   `json:"subtotal"`
	DeliveryFee  decimal.Decimal   `json:"deliveryFee"`
	Total        decimal.Decimal   `json:"total"`
	Status       enums.OrderStatus `json:"status"`
	CustomerInfo CustomerInfo      `json:"customerInfo"`
}

// OrderInput is what checkout hands over once the message link is built.
type OrderInput struct {
	Code        string
	Items       []OrderLine
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Total       decimal.Decimal
}

// sessionRecord is the persisted login marker, timestamp in epoch millis.
type sessionRecord struct {
	WhatsApp  string `json:"whatsapp"`
	Timestamp int64  `json:"timestamp"`
}
