package cart

import (
	"github.com/laglue/storefront/internal/catalog"
	"github.com/shopspring/decimal"
)

// Item is one cart line with the product fields denormalized at add time.
type Item struct {
	ProductID       int64            `json:"id"`
	Name            string           `json:"name"`
	Price           decimal.Decimal  `json:"price"`
	OriginalPrice   *decimal.Decimal `json:"original_price"`
	DiscountPercent int              `json:"discount_percent"`
	Image           string           `json:"image"`
	Category        string           `json:"category"`
	Quantity        int              `json:"quantity"`
}

// LineTotal is price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func itemFromProduct(p catalog.Product) Item {
	image := p.MainImage
	if image == "" && len(p.Images) > 0 {
		image = p.Images[0]
	}
	return Item{
		ProductID:       p.ID,
		Name:            p.Name,
		Price:           p.Price,
		OriginalPrice:   p.OriginalPrice,
		DiscountPercent: p.DiscountPercent,
		Image:           image,
		Category:        p.Category,
		Quantity:        1,
	}
}

// Pricing holds the delivery rule and the per-line quantity cap.
type Pricing struct {
	FreeDeliveryThreshold decimal.Decimal
	DeliveryFee           decimal.Decimal
	MaxQuantity           int
}

// DefaultPricing mirrors the shop's historical constants.
func DefaultPricing() Pricing {
	return Pricing{
		FreeDeliveryThreshold: decimal.NewFromInt(50000),
		DeliveryFee:           decimal.NewFromInt(1500),
		MaxQuantity:           10,
	}
}

// Totals summarises a cart.
type Totals struct {
	Count                 int             `json:"count"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	DeliveryFee           decimal.Decimal `json:"delivery_fee"`
	Total                 decimal.Decimal `json:"total"`
	FreeDeliveryRemaining decimal.Decimal `json:"free_delivery_remaining"`
}

// ComputeTotals sums the lines and applies the delivery rule: the flat fee
// is waived once the subtotal reaches the threshold. Negative prices or
// quantities count as zero for their line.
func ComputeTotals(items []Item, pricing Pricing) Totals {
	totals := Totals{Subtotal: decimal.Zero}
	for _, item := range items {
		quantity := item.Quantity
		if quantity < 0 {
			quantity = 0
		}
		price := item.Price
		if price.IsNegative() {
			price = decimal.Zero
		}
		totals.Count += quantity
		totals.Subtotal = totals.Subtotal.Add(price.Mul(decimal.NewFromInt(int64(quantity))))
	}

	totals.DeliveryFee = pricing.DeliveryFee
	if totals.Subtotal.GreaterThanOrEqual(pricing.FreeDeliveryThreshold) {
		totals.DeliveryFee = decimal.Zero
	}
	totals.Total = totals.Subtotal.Add(totals.DeliveryFee)
	totals.FreeDeliveryRemaining = decimal.Max(decimal.Zero, pricing.FreeDeliveryThreshold.Sub(totals.Subtotal))
	return totals
}
