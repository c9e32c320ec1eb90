package catalog

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
)

// SchemaVersion is stamped under kv.KeySchemaVersion once the legacy keys
// have been folded into the primary ones.
const SchemaVersion = "1"

// Unreadable marks a snapshot key whose read failed. A snapshot holding it
// never equals another one, so the next reconcile reloads.
const Unreadable = ^uint64(0)

// scanSnapshotKey stands for the key listing in a snapshot.
const scanSnapshotKey = "catalog:key_scan"

// Snapshot fingerprints the raw blobs a catalog was built from, keyed by
// store key. Keys that were absent are recorded as 0.
type Snapshot map[string]uint64

// Equal reports whether two snapshots saw byte-identical blobs.
func (s Snapshot) Equal(other Snapshot) bool {
	if len(s) != len(other) {
		return false
	}
	for key, sum := range s {
		otherSum, ok := other[key]
		if !ok || otherSum != sum || sum == Unreadable || otherSum == Unreadable {
			return false
		}
	}
	return true
}

// Stale reports whether a read failed while the snapshot was taken.
func (s Snapshot) Stale() bool {
	for _, sum := range s {
		if sum == Unreadable {
			return true
		}
	}
	return false
}

// watchedKeys are always fingerprinted so a catalog built while they were
// missing or unreadable is reloaded once they change.
func watchedKeys(versioned bool) []string {
	if versioned {
		return []string{kv.KeySchemaVersion, kv.KeyProducts, kv.KeyCategories}
	}
	return []string{kv.KeySchemaVersion, kv.KeyProducts, kv.KeyCategories, kv.KeyMainData}
}

// Keys returns the snapshot keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for key := range s {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Loader resolves the active catalog from the store. It never writes.
type Loader struct {
	store kv.Store
	logg  *logger.Logger
}

func NewLoader(store kv.Store, logg *logger.Logger) (*Loader, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Loader{store: store, logg: logg}, nil
}

type blobReader struct {
	ctx      context.Context
	store    kv.Store
	logg     *logger.Logger
	snapshot Snapshot
	cache    map[string]json.RawMessage
	failure  error
}

// read returns the blob at key, recording its fingerprint. Unreadable keys
// are reported as absent; the first store failure is kept.
func (r *blobReader) read(key string) (json.RawMessage, bool) {
	if raw, ok := r.cache[key]; ok {
		return raw, raw != nil
	}
	value, found, err := r.store.Get(r.ctx, key)
	if err != nil {
		r.logg.Error(r.logg.WithKey(r.ctx, key), "catalog.read_failed", err)
		if r.failure == nil {
			r.failure = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+key)
		}
		r.snapshot[key] = Unreadable
		r.cache[key] = nil
		return nil, false
	}
	if !found {
		r.snapshot[key] = 0
		r.cache[key] = nil
		return nil, false
	}
	r.snapshot[key] = xxhash.Sum64String(value)
	if !json.Valid([]byte(value)) {
		r.logg.Warn(r.logg.WithKey(r.ctx, key), "catalog.blob_unparseable")
		r.cache[key] = nil
		return nil, false
	}
	raw := json.RawMessage(value)
	r.cache[key] = raw
	return raw, true
}

// Load resolves products and categories. Corrupt or missing data degrades
// to an empty product list and the default categories; the returned error
// is non-nil only when the store itself could not be read, and the catalog
// is still usable in that case.
func (l *Loader) Load(ctx context.Context) (*Catalog, error) {
	reader := &blobReader{
		ctx:      ctx,
		store:    l.store,
		logg:     l.logg,
		snapshot: Snapshot{},
		cache:    map[string]json.RawMessage{},
	}

	versioned := false
	if raw, ok := reader.read(kv.KeySchemaVersion); ok {
		versioned = stringField(raw) == SchemaVersion || strings.TrimSpace(string(raw)) == SchemaVersion
	}

	catalog := &Catalog{}
	var scanKeys []string
	if !versioned {
		scanKeys = l.scanCandidates(ctx, reader)
	}

	catalog.Products, catalog.ProductsSource, catalog.Dropped = l.resolveProducts(reader, versioned, scanKeys)
	catalog.Categories, catalog.CategoriesSource = l.resolveCategories(reader, versioned, scanKeys)
	for _, key := range watchedKeys(versioned) {
		reader.read(key)
	}
	catalog.Empty = len(catalog.Products) == 0
	catalog.Snapshot = reader.snapshot

	if catalog.Dropped > 0 {
		l.logg.Warn(l.logg.WithField(ctx, "dropped", catalog.Dropped), "catalog.products_dropped")
	}
	l.logg.Info(l.logg.WithFields(ctx, map[string]any{
		"products":          len(catalog.Products),
		"products_source":   catalog.ProductsSource,
		"categories":        len(catalog.Categories),
		"categories_source": catalog.CategoriesSource,
		"versioned":         versioned,
	}), "catalog.loaded")
	return catalog, reader.failure
}

func (l *Loader) resolveProducts(r *blobReader, versioned bool, scanKeys []string) ([]Product, string, int) {
	if raw, ok := r.read(kv.KeyProducts); ok {
		if records, ok := productArray(raw); ok {
			products, dropped := CleanProducts(records)
			return products, SourcePrimary, dropped
		}
	}
	if versioned {
		return []Product{}, SourceNone, 0
	}
	if raw, ok := r.read(kv.KeyMainData); ok {
		if records, ok := productsField(raw); ok {
			products, dropped := CleanProducts(records)
			return products, SourceLegacy, dropped
		}
	}
	for _, key := range scanKeys {
		if !matchesScan(key, "product") {
			continue
		}
		raw, ok := r.read(key)
		if !ok {
			continue
		}
		records, ok := productArray(raw)
		if !ok {
			records, ok = productsField(raw)
		}
		if ok {
			products, dropped := CleanProducts(records)
			return products, SourceScan + ":" + key, dropped
		}
	}
	return []Product{}, SourceNone, 0
}

func (l *Loader) resolveCategories(r *blobReader, versioned bool, scanKeys []string) (Categories, string) {
	if raw, ok := r.read(kv.KeyCategories); ok {
		if categories, ok := cleanCategories(raw); ok {
			return categories, SourcePrimary
		}
	}
	if versioned {
		return DefaultCategories(), SourceDefaults
	}
	if raw, ok := r.read(kv.KeyMainData); ok {
		if categories, ok := categoriesField(raw); ok {
			return categories, SourceLegacy
		}
	}
	for _, key := range scanKeys {
		if !matchesScan(key, "categor") {
			continue
		}
		raw, ok := r.read(key)
		if !ok {
			continue
		}
		categories, ok := categoriesField(raw)
		if !ok {
			categories, ok = cleanCategories(raw)
		}
		if ok {
			return categories, SourceScan + ":" + key
		}
	}
	return DefaultCategories(), SourceDefaults
}

// scanCandidates lists store keys in sorted order, excluding the fixed keys
// the earlier tiers already tried.
func (l *Loader) scanCandidates(ctx context.Context, r *blobReader) []string {
	keys, err := l.store.Keys(ctx)
	if err != nil {
		l.logg.Error(ctx, "catalog.scan_failed", err)
		if r.failure == nil {
			r.failure = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list keys")
		}
		r.snapshot[scanSnapshotKey] = Unreadable
		return nil
	}
	out := make([]string, 0, len(keys))
	for _, key := range keys {
		switch key {
		case kv.KeyProducts, kv.KeyCategories, kv.KeyMainData:
			continue
		}
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// matchesScan applies the admin tool's naming convention: the key mentions
// laglue and the entity, and is not a demo or test fixture.
func matchesScan(key, entity string) bool {
	if strings.HasPrefix(key, "device:") {
		return false
	}
	return strings.Contains(key, "laglue") &&
		strings.Contains(key, entity) &&
		!strings.Contains(key, "demo") &&
		!strings.Contains(key, "test")
}

func productArray(raw json.RawMessage) ([]json.RawMessage, bool) {
	var records []json.RawMessage
	if err := json.Unmarshal(raw, &records); err != nil || len(records) == 0 {
		return nil, false
	}
	return records, true
}

func productsField(raw json.RawMessage) ([]json.RawMessage, bool) {
	var wrapper struct {
		Products json.RawMessage `json:"products"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}
	return productArray(wrapper.Products)
}

func categoriesField(raw json.RawMessage) (Categories, bool) {
	var wrapper struct {
		Categories json.RawMessage `json:"categories"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil || len(wrapper.Categories) == 0 {
		return nil, false
	}
	return cleanCategories(wrapper.Categories)
}

// Fingerprint re-reads keys and returns their current fingerprints in the
// same shape as Catalog.Snapshot.
func (l *Loader) Fingerprint(ctx context.Context, keys []string) (Snapshot, error) {
	snapshot := Snapshot{}
	for _, key := range keys {
		value, found, err := l.store.Get(ctx, key)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+key)
		}
		if !found {
			snapshot[key] = 0
			continue
		}
		snapshot[key] = xxhash.Sum64String(value)
	}
	return snapshot, nil
}
