package catalog

import (
	"github.com/laglue/storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

const (
	defaultCategory        = "autre"
	defaultDescription     = "Description non disponible"
	defaultFullDescription = "Description complète non disponible"
	placeholderImage       = "https://via.placeholder.com/300x200/667eea/white?text=Image"
)

// Stock is the availability block the admin tool maintains per product.
type Stock struct {
	Quantity int               `json:"quantity"`
	Status   enums.StockStatus `json:"status"`
}

// Product is a cleaned catalog record. The storefront never mutates it.
type Product struct {
	ID              int64                 `json:"id"`
	Name            string                `json:"name"`
	Category        string                `json:"category"`
	Price           decimal.Decimal       `json:"price"`
	OriginalPrice   *decimal.Decimal      `json:"original_price"`
	DiscountPercent int                   `json:"discount_percent"`
	Description     string                `json:"description"`
	FullDescription string                `json:"full_description"`
	Features        []string              `json:"features"`
	Images          []string              `json:"images"`
	MainImage       string                `json:"main_image"`
	Stock           Stock                 `json:"stock"`
	Tags            []string              `json:"tags"`
	Rating          float64               `json:"rating"`
	ReviewsCount    int                   `json:"reviews_count"`
	DisplayPriority enums.DisplayPriority `json:"display_priority"`
}

// EffectiveDiscount is the percentage shown on the card: derived from the
// original price when it is higher than the price, else the stored value.
func (p Product) EffectiveDiscount() int {
	if p.OriginalPrice != nil && p.OriginalPrice.GreaterThan(p.Price) {
		ratio := decimal.NewFromInt(1).Sub(p.Price.Div(*p.OriginalPrice))
		return int(ratio.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	}
	return p.DiscountPercent
}

// HasTag reports whether the product carries tag.
func (p Product) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Category is the display metadata for a category key.
type Category struct {
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
}

// Categories maps a category key to its display metadata.
type Categories map[string]Category

// Catalog is one resolved view of the store. Empty marks the "store in
// preparation" state: no product could be loaded.
type Catalog struct {
	Products         []Product  `json:"products"`
	Categories       Categories `json:"categories"`
	Empty            bool       `json:"empty"`
	ProductsSource   string     `json:"products_source,omitempty"`
	CategoriesSource string     `json:"categories_source,omitempty"`
	Dropped          int        `json:"-"`
	Snapshot         Snapshot   `json:"-"`
}

// Source labels for the tier that produced products or categories.
const (
	SourcePrimary  = "primary"
	SourceLegacy   = "legacy"
	SourceScan     = "scan"
	SourceDefaults = "defaults"
	SourceNone     = "none"
)

// Product returns the product with id.
func (c *Catalog) Product(id int64) (Product, bool) {
	if c == nil {
		return Product{}, false
	}
	for _, p := range c.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}
