package catalog

import (
	"sort"
	"strings"

	"github.com/laglue/storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

const (
	// FilterAll disables a category or display filter.
	FilterAll = "all"

	sectionSize = 6

	tagRecent  = "nouveau"
	tagPopular = "populaire"
)

// Filter narrows the product list. Empty fields and FilterAll match
// everything; Query matches case-insensitively on name, descriptions and
// category display name.
type Filter struct {
	Category string
	Display  string
	Query    string
}

// Filter returns the products matching f in catalog order.
func (c *Catalog) Filter(f Filter) []Product {
	category := strings.TrimSpace(f.Category)
	display := strings.TrimSpace(f.Display)
	term := strings.ToLower(strings.TrimSpace(f.Query))

	out := make([]Product, 0, len(c.Products))
	for _, p := range c.Products {
		if category != "" && category != FilterAll && p.Category != category {
			continue
		}
		if display != "" && display != FilterAll && string(p.DisplayPriority) != display {
			continue
		}
		if term != "" && !c.matches(p, term) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (c *Catalog) matches(p Product, term string) bool {
	return strings.Contains(strings.ToLower(p.Name), term) ||
		strings.Contains(strings.ToLower(p.Description), term) ||
		strings.Contains(strings.ToLower(p.FullDescription), term) ||
		strings.Contains(strings.ToLower(c.CategoryName(p.Category)), term)
}

// Sections are the two featured rows of the home page.
type Sections struct {
	Recent  []Product `json:"recent"`
	Popular []Product `json:"popular"`
}

// Sections picks up to six recent and six popular products.
func (c *Catalog) Sections() Sections {
	sections := Sections{Recent: []Product{}, Popular: []Product{}}
	for _, p := range c.Products {
		if len(sections.Recent) < sectionSize &&
			(p.DisplayPriority == enums.DisplayPriorityRecent || p.HasTag(tagRecent)) {
			sections.Recent = append(sections.Recent, p)
		}
		if len(sections.Popular) < sectionSize &&
			(p.DisplayPriority == enums.DisplayPriorityPopular || p.HasTag(tagPopular)) {
			sections.Popular = append(sections.Popular, p)
		}
	}
	return sections
}

// CategoryName resolves the display name for key: the loaded map first,
// then the built-in names, then a generic label.
func (c *Catalog) CategoryName(key string) string {
	if c != nil {
		if category, ok := c.Categories[key]; ok && category.Name != "" {
			return category.Name
		}
	}
	if key == defaultCategory {
		return otherCategoryName
	}
	if category, ok := DefaultCategories()[key]; ok {
		return category.Name
	}
	return unknownCategoryName
}

// CategoryIcon resolves the icon for key the same way as CategoryName.
func (c *Catalog) CategoryIcon(key string) string {
	if c != nil {
		if category, ok := c.Categories[key]; ok && category.Icon != "" {
			return category.Icon
		}
	}
	if category, ok := DefaultCategories()[key]; ok {
		return category.Icon
	}
	return otherCategoryIcon
}

// Stats summarises the catalog for the admin dashboard.
type Stats struct {
	Total      int             `json:"total"`
	Categories []string        `json:"categories"`
	TotalValue decimal.Decimal `json:"total_value"`
	LowStock   int             `json:"low_stock"`
	OutOfStock int             `json:"out_of_stock"`
}

// Stats counts products, distinct categories, stock value and the low
// (quantity under 5) and empty stock lines.
func (c *Catalog) Stats() Stats {
	stats := Stats{Categories: []string{}, TotalValue: decimal.Zero}
	seen := map[string]struct{}{}
	for _, p := range c.Products {
		stats.Total++
		if _, ok := seen[p.Category]; !ok {
			seen[p.Category] = struct{}{}
			stats.Categories = append(stats.Categories, p.Category)
		}
		stats.TotalValue = stats.TotalValue.Add(priceTimesQuantity(p))
		if p.Stock.Quantity < lowStockThreshold {
			stats.LowStock++
		}
		if p.Stock.Quantity == 0 {
			stats.OutOfStock++
		}
	}
	sort.Strings(stats.Categories)
	return stats
}
