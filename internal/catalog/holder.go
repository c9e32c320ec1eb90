package catalog

import (
	"sync/atomic"
)

// Holder shares the active catalog between request handlers and the sync
// poller. Readers always see a complete catalog; Replace swaps it whole.
type Holder struct {
	current atomic.Pointer[Catalog]
}

// NewHolder starts from initial, or from the empty catalog with the
// default categories when initial is nil. That placeholder is marked
// unread so the first reconcile loads the real catalog.
func NewHolder(initial *Catalog) *Holder {
	h := &Holder{}
	if initial == nil {
		initial = &Catalog{
			Products:         []Product{},
			Categories:       DefaultCategories(),
			Empty:            true,
			ProductsSource:   SourceNone,
			CategoriesSource: SourceDefaults,
			Snapshot:         Snapshot{},
		}
		for _, key := range watchedKeys(false) {
			initial.Snapshot[key] = Unreadable
		}
	}
	h.current.Store(initial)
	return h
}

// Current returns the active catalog. Callers must not mutate it.
func (h *Holder) Current() *Catalog {
	return h.current.Load()
}

// Replace installs next as the active catalog.
func (h *Holder) Replace(next *Catalog) {
	if next == nil {
		return
	}
	h.current.Store(next)
}

// Product looks id up in the active catalog.
func (h *Holder) Product(id int64) (Product, bool) {
	return h.Current().Product(id)
}
