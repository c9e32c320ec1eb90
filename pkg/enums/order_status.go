package enums

import "fmt"

// OrderStatus tracks an order snapshot. Admin log entries start pending;
// customer history entries are recorded once the message link is issued.
type OrderStatus string

const (
	OrderStatusPending      OrderStatus = "pending"
	OrderStatusSentWhatsApp OrderStatus = "sent_whatsapp"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusSentWhatsApp,
}

// String implements fmt.Stringer.
func (o OrderStatus) String() string {
	return string(o)
}

// IsValid reports whether the value is a known OrderStatus.
func (o OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseOrderStatus converts raw input into an OrderStatus.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
