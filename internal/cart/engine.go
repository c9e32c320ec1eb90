package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/laglue/storefront/internal/catalog"
	"github.com/laglue/storefront/pkg/enums"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
	"github.com/laglue/storefront/pkg/money"
	"github.com/laglue/storefront/pkg/types"
)

// ProductLookup resolves catalog products by id.
type ProductLookup interface {
	Product(id int64) (catalog.Product, bool)
}

// EngineParams groups dependencies for the cart engine.
type EngineParams struct {
	Store   kv.Store
	Key     string
	Catalog ProductLookup
	Pricing Pricing
	Logger  *logger.Logger
}

// Engine owns one shopper's cart. Every mutation writes the full list back
// to the store; a failed write is logged and the in-memory cart stays
// authoritative.
type Engine struct {
	mu      sync.Mutex
	items   []Item
	store   kv.Store
	key     string
	catalog ProductLookup
	pricing Pricing
	logg    *logger.Logger

	// fingerprint of the blob last read or written by this engine
	stored uint64
	synced bool
}

// Result is the cart state after an operation plus the notices to show.
type Result struct {
	Items   []Item         `json:"items"`
	Totals  Totals         `json:"totals"`
	Notices []types.Notice `json:"-"`
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store is required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog is required")
	}
	key := params.Key
	if key == "" {
		key = kv.KeyCart
	}
	pricing := params.Pricing
	if pricing.MaxQuantity <= 0 {
		pricing = DefaultPricing()
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Engine{
		items:   []Item{},
		store:   params.Store,
		key:     key,
		catalog: params.Catalog,
		pricing: pricing,
		logg:    logg,
	}, nil
}

// Add puts one unit of productID in the cart. An existing line is
// incremented and silently held at the quantity cap.
func (e *Engine) Add(ctx context.Context, productID int64) (Result, error) {
	product, ok := e.catalog.Product(productID)
	if !ok {
		return Result{}, pkgerrors.New(pkgerrors.CodeNotFound, "Produit non trouvé").
			WithDetails(map[string]any{"product_id": productID})
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	var notice types.Notice
	if idx := e.indexOf(productID); idx >= 0 {
		item := &e.items[idx]
		if item.Quantity < e.pricing.MaxQuantity {
			item.Quantity++
		}
		notice = types.NewNotice(enums.NoticeLevelSuccess, fmt.Sprintf("Quantité mise à jour : %s", item.Name))
	} else {
		e.items = append(e.items, itemFromProduct(product))
		notice = types.NewNotice(enums.NoticeLevelSuccess, fmt.Sprintf("%s ajouté au panier !", product.Name))
	}
	e.persist(ctx)
	return e.result(notice), nil
}

// SetQuantity sets the line quantity. n <= 0 removes the line; n above the
// cap is clamped with a warning. Products not in the cart are ignored.
func (e *Engine) SetQuantity(ctx context.Context, productID int64, n int) Result {
	if n <= 0 {
		return e.Remove(ctx, productID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOf(productID)
	if idx < 0 {
		return e.result()
	}
	var notices []types.Notice
	if n > e.pricing.MaxQuantity {
		notices = append(notices, types.NewNotice(enums.NoticeLevelWarning,
			fmt.Sprintf("Quantité maximale: %d articles par produit", e.pricing.MaxQuantity)))
		n = e.pricing.MaxQuantity
	}
	e.items[idx].Quantity = n
	e.persist(ctx)
	return e.result(notices...)
}

// Remove deletes the line for productID if present.
func (e *Engine) Remove(ctx context.Context, productID int64) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOf(productID)
	if idx < 0 {
		return e.result()
	}
	removed := e.items[idx]
	e.items = append(e.items[:idx], e.items[idx+1:]...)
	e.persist(ctx)
	return e.result(types.NewNotice(enums.NoticeLevelInfo, fmt.Sprintf("%s retiré du panier", removed.Name)))
}

// Clear empties the cart. Callers gate it behind an explicit confirmation.
func (e *Engine) Clear(ctx context.Context) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.items) == 0 {
		return e.result()
	}
	e.items = []Item{}
	e.persist(ctx)
	return e.result(types.NewNotice(enums.NoticeLevelInfo, "Panier vidé"))
}

// Snapshot returns a copy of the lines and the current totals.
func (e *Engine) Snapshot() Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.result()
}

// Totals computes the current totals.
func (e *Engine) Totals() Totals {
	return e.Snapshot().Totals
}

// RemoveLines takes ordered lines out of the cart. Each line loses the
// quantity it was ordered with, so units added since stay in the cart.
func (e *Engine) RemoveLines(ctx context.Context, ordered []Item) Result {
	e.mu.Lock()
	defer e.mu.Unlock()

	changed := false
	for _, line := range ordered {
		idx := e.indexOf(line.ProductID)
		if idx < 0 {
			continue
		}
		changed = true
		if remaining := e.items[idx].Quantity - line.Quantity; remaining > 0 {
			e.items[idx].Quantity = remaining
			continue
		}
		e.items = append(e.items[:idx], e.items[idx+1:]...)
	}
	if !changed {
		return e.result()
	}
	e.persist(ctx)
	if len(e.items) == 0 {
		return e.result(types.NewNotice(enums.NoticeLevelInfo, "Panier vidé"))
	}
	return e.result()
}

// Restore replaces the in-memory cart with the persisted one. A missing key
// leaves the cart empty; a corrupt blob empties it and is reported.
func (e *Engine) Restore(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.items = []Item{}
	e.synced = false
	value, found, err := e.store.Get(ctx, e.key)
	if err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+e.key)
		e.logg.Error(e.logg.WithKey(ctx, e.key), "cart.restore_failed", wrapped)
		return wrapped
	}
	return e.load(ctx, value, found)
}

// Refresh reloads the cart when the stored blob changed since this engine
// last read or wrote it, as happens when another process served the same
// device. It reports whether the cart was reloaded; read failures keep the
// in-memory cart.
func (e *Engine) Refresh(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	value, found, err := e.store.Get(ctx, e.key)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+e.key)
	}
	if e.synced && kv.Fingerprint(value, found) == e.stored {
		return false, nil
	}
	return true, e.load(ctx, value, found)
}

// load replaces the lines with the stored blob. Callers hold e.mu.
func (e *Engine) load(ctx context.Context, value string, found bool) error {
	e.items = []Item{}
	e.stored, e.synced = kv.Fingerprint(value, found), true
	if !found || value == "" {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		wrapped := pkgerrors.Wrap(pkgerrors.CodeCorruptData, err, "decode "+e.key)
		e.logg.Error(e.logg.WithKey(ctx, e.key), "cart.restore_failed", wrapped)
		return wrapped
	}
	e.items = restoreItems(raw, e.pricing.MaxQuantity)
	return nil
}

func (e *Engine) indexOf(productID int64) int {
	for i := range e.items {
		if e.items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func (e *Engine) persist(ctx context.Context) {
	payload, err := json.Marshal(e.items)
	if err == nil {
		err = e.store.Set(ctx, e.key, string(payload))
	}
	if err != nil {
		e.logg.Error(e.logg.WithKey(ctx, e.key), "cart.persist_failed", err)
		return
	}
	e.stored, e.synced = kv.Fingerprint(string(payload), true), true
}

func (e *Engine) result(notices ...types.Notice) Result {
	items := make([]Item, len(e.items))
	copy(items, e.items)
	return Result{
		Items:   items,
		Totals:  ComputeTotals(items, e.pricing),
		Notices: notices,
	}
}

// restoreItems reads loosely typed lines: non-numeric prices count as zero,
// lines without a usable id or quantity are dropped, quantities above the
// cap are clamped and repeated ids keep the first line.
func restoreItems(raw []json.RawMessage, maxQuantity int) []Item {
	items := make([]Item, 0, len(raw))
	seen := map[int64]struct{}{}
	for _, record := range raw {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(record, &fields); err != nil || fields == nil {
			continue
		}
		id, ok := money.Parse(fields["id"])
		if !ok || id.IsZero() {
			continue
		}
		quantity := int(money.Coerce(fields["quantity"]).IntPart())
		if quantity < 1 {
			continue
		}
		if quantity > maxQuantity {
			quantity = maxQuantity
		}
		productID := id.IntPart()
		if _, dup := seen[productID]; dup {
			continue
		}
		seen[productID] = struct{}{}

		item := Item{
			ProductID:       productID,
			Price:           money.Coerce(fields["price"]),
			DiscountPercent: int(money.Coerce(fields["discount_percent"]).IntPart()),
			Quantity:        quantity,
		}
		_ = json.Unmarshal(fields["name"], &item.Name)
		_ = json.Unmarshal(fields["image"], &item.Image)
		_ = json.Unmarshal(fields["category"], &item.Category)
		if original, ok := money.ParseNumber(fields["original_price"]); ok {
			item.OriginalPrice = &original
		}
		items = append(items, item)
	}
	return items
}
