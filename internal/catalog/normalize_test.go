package catalog

import (
	"encoding/json"
	"testing"

	"github.com/laglue/storefront/pkg/enums"
)

func rawRecords(t *testing.T, payload string) []json.RawMessage {
	t.Helper()
	var records []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &records); err != nil {
		t.Fatalf("bad fixture: %v", err)
	}
	return records
}

func TestCleanProductsDropsInvalidRecords(t *testing.T) {
	records := rawRecords(t, `[
		{"id": 1, "name": "Galaxy A15", "price": 85000},
		{"id": 2, "name": "No price"},
		{"id": 3, "name": "Quoted price", "price": "1500"},
		{"id": 4, "name": "Free", "price": 0},
		{"id": 5, "name": "", "price": 1000},
		{"name": "No id", "price": 1000},
		"not an object",
		null,
		{"id": 1, "name": "Duplicate", "price": 10}
	]`)

	products, dropped := CleanProducts(records)
	if len(products) != 1 || products[0].ID != 1 {
		t.Fatalf("expected only product 1, got %+v", products)
	}
	if dropped != 8 {
		t.Fatalf("expected 8 dropped records, got %d", dropped)
	}
}

func TestCleanProductsDefaults(t *testing.T) {
	products, _ := CleanProducts(rawRecords(t, `[{"id": 7, "name": "Casque", "price": 12000}]`))
	p := products[0]

	if p.Category != "autre" {
		t.Fatalf("expected default category, got %q", p.Category)
	}
	if p.Description != "Description non disponible" || p.FullDescription != "Description complète non disponible" {
		t.Fatalf("unexpected descriptions %q / %q", p.Description, p.FullDescription)
	}
	if p.MainImage != placeholderImage {
		t.Fatalf("expected placeholder image, got %q", p.MainImage)
	}
	if p.Stock.Quantity != 0 || p.Stock.Status != enums.StockStatusOutOfStock {
		t.Fatalf("unexpected default stock %+v", p.Stock)
	}
	if p.Features == nil || p.Images == nil || p.Tags == nil {
		t.Fatalf("missing arrays must default to empty slices")
	}
	if p.Rating != 0 || p.ReviewsCount != 0 || p.OriginalPrice != nil {
		t.Fatalf("unexpected numeric defaults %+v", p)
	}
	if p.DisplayPriority != enums.DisplayPriorityNormal {
		t.Fatalf("expected normal priority, got %q", p.DisplayPriority)
	}
}

func TestCleanProductsKeepsProvidedFields(t *testing.T) {
	products, _ := CleanProducts(rawRecords(t, `[{
		"id": "12", "name": " Tecno Spark ", "price": 65000, "original_price": 80000,
		"category": "smartphones", "description": "Court", "images": ["a.jpg", 3, "b.jpg"],
		"stock": {"quantity": 3, "status": "bogus"}, "tags": ["nouveau"], "rating": 4.5,
		"reviews_count": "18", "display_priority": "homepage"
	}]`))
	p := products[0]

	if p.ID != 12 || p.Name != "Tecno Spark" {
		t.Fatalf("unexpected identity %d %q", p.ID, p.Name)
	}
	if p.FullDescription != "Court" {
		t.Fatalf("full description falls back to description, got %q", p.FullDescription)
	}
	if p.MainImage != "a.jpg" || len(p.Images) != 2 {
		t.Fatalf("unexpected images %q %v", p.MainImage, p.Images)
	}
	if p.Stock.Status != enums.StockStatusLowStock {
		t.Fatalf("unknown status derives from quantity, got %q", p.Stock.Status)
	}
	if p.Rating != 4.5 || p.ReviewsCount != 18 {
		t.Fatalf("unexpected rating %v/%d", p.Rating, p.ReviewsCount)
	}
	if p.DisplayPriority != "homepage" {
		t.Fatalf("custom priorities are kept verbatim")
	}
	if p.EffectiveDiscount() != 19 {
		t.Fatalf("expected derived discount 19, got %d", p.EffectiveDiscount())
	}
}

func TestCleanCategories(t *testing.T) {
	categories, ok := cleanCategories(json.RawMessage(`{"mode": {"name": "Mode"}, "broken": 3}`))
	if !ok || len(categories) != 1 {
		t.Fatalf("unexpected categories %+v ok=%v", categories, ok)
	}
	if categories["mode"].Icon != "📦" {
		t.Fatalf("expected default icon")
	}
	if _, ok := cleanCategories(json.RawMessage(`{}`)); ok {
		t.Fatalf("empty map must not satisfy a tier")
	}
}
