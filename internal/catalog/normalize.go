package catalog

import (
	"encoding/json"
	"strings"

	"github.com/laglue/storefront/pkg/enums"
	"github.com/laglue/storefront/pkg/money"
	"github.com/shopspring/decimal"
)

const lowStockThreshold = 5

// CleanProducts keeps the records that have an id, a name and a strictly
// positive numeric price, and fills every other field with its default. It
// returns the accepted products and how many records were dropped. Duplicate
// ids keep the first occurrence.
func CleanProducts(raw []json.RawMessage) ([]Product, int) {
	products := make([]Product, 0, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	dropped := 0
	for _, record := range raw {
		product, ok := cleanProduct(record)
		if !ok {
			dropped++
			continue
		}
		if _, dup := seen[product.ID]; dup {
			dropped++
			continue
		}
		seen[product.ID] = struct{}{}
		products = append(products, product)
	}
	return products, dropped
}

func cleanProduct(record json.RawMessage) (Product, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(record, &fields); err != nil || fields == nil {
		return Product{}, false
	}

	id, ok := parseID(fields["id"])
	if !ok {
		return Product{}, false
	}
	name := stringField(fields["name"])
	if name == "" {
		return Product{}, false
	}
	price, ok := money.ParseNumber(fields["price"])
	if !ok || !price.IsPositive() {
		return Product{}, false
	}

	description := stringField(fields["description"])
	fullDescription := firstNonEmpty(stringField(fields["full_description"]), description, defaultFullDescription)
	images := stringList(fields["images"])

	product := Product{
		ID:              id,
		Name:            name,
		Category:        firstNonEmpty(stringField(fields["category"]), defaultCategory),
		Price:           price,
		DiscountPercent: int(money.Coerce(fields["discount_percent"]).IntPart()),
		Description:     firstNonEmpty(description, defaultDescription),
		FullDescription: fullDescription,
		Features:        stringList(fields["features"]),
		Images:          images,
		Stock:           parseStock(fields["stock"]),
		Tags:            stringList(fields["tags"]),
		Rating:          money.Coerce(fields["rating"]).InexactFloat64(),
		ReviewsCount:    int(money.Coerce(fields["reviews_count"]).IntPart()),
		DisplayPriority: enums.DisplayPriority(firstNonEmpty(stringField(fields["display_priority"]), string(enums.DisplayPriorityNormal))),
	}
	if original, ok := money.ParseNumber(fields["original_price"]); ok && !original.IsZero() {
		product.OriginalPrice = &original
	}
	firstImage := ""
	if len(images) > 0 {
		firstImage = images[0]
	}
	product.MainImage = firstNonEmpty(stringField(fields["main_image"]), firstImage, placeholderImage)
	return product, true
}

func parseID(raw json.RawMessage) (int64, bool) {
	value, ok := money.Parse(raw)
	if !ok || value.IsZero() || !value.Equal(value.Truncate(0)) {
		return 0, false
	}
	return value.IntPart(), true
}

func parseStock(raw json.RawMessage) Stock {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return Stock{Quantity: 0, Status: enums.StockStatusOutOfStock}
	}
	quantity := int(money.Coerce(fields["quantity"]).IntPart())
	status, err := enums.ParseStockStatus(stringField(fields["status"]))
	if err != nil {
		status = statusForQuantity(quantity)
	}
	return Stock{Quantity: quantity, Status: status}
}

func statusForQuantity(quantity int) enums.StockStatus {
	switch {
	case quantity <= 0:
		return enums.StockStatusOutOfStock
	case quantity < lowStockThreshold:
		return enums.StockStatusLowStock
	default:
		return enums.StockStatusInStock
	}
}

// stringField returns the trimmed string value, or "" for anything else.
func stringField(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// stringList keeps the non-empty string elements of a JSON array.
func stringList(raw json.RawMessage) []string {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := stringField(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// cleanCategories accepts any object whose values decode as categories.
// Entries that are not objects are skipped.
func cleanCategories(raw json.RawMessage) (Categories, bool) {
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil || len(entries) == 0 {
		return nil, false
	}
	out := make(Categories, len(entries))
	for key, entry := range entries {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
			continue
		}
		out[key] = Category{
			Name:        firstNonEmpty(stringField(fields["name"]), key),
			Icon:        firstNonEmpty(stringField(fields["icon"]), otherCategoryIcon),
			Description: stringField(fields["description"]),
		}
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}

func priceTimesQuantity(p Product) decimal.Decimal {
	return p.Price.Mul(decimal.NewFromInt(int64(p.Stock.Quantity)))
}
