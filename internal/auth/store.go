package auth

import (
	"context"
	"sync"

	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
)

// ProfileStore reads and writes the shared profile and order-history maps.
// Both maps are keyed by normalized phone; a corrupt map is logged and read
// as empty so one bad write never locks shoppers out.
type ProfileStore struct {
	mu    sync.Mutex
	store kv.Store
	logg  *logger.Logger
}

func NewProfileStore(store kv.Store, logg *logger.Logger) (*ProfileStore, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &ProfileStore{store: store, logg: logg}, nil
}

// Profile returns the profile for phone, if any.
func (s *ProfileStore) Profile(ctx context.Context, phone string) (Profile, bool, error) {
	profiles, err := s.profiles(ctx)
	if err != nil {
		return Profile{}, false, err
	}
	profile, ok := profiles[phone]
	return profile, ok, nil
}

// Orders returns the history for phone, newest first.
func (s *ProfileStore) Orders(ctx context.Context, phone string) ([]OrderRecord, error) {
	orders, err := s.orders(ctx)
	if err != nil {
		return nil, err
	}
	if history := orders[phone]; history != nil {
		return history, nil
	}
	return []OrderRecord{}, nil
}

// UpdateProfile applies fn to the stored profile for phone (or to fallback
// when none exists) and writes the map back.
func (s *ProfileStore) UpdateProfile(ctx context.Context, phone string, fallback Profile, fn func(*Profile)) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := s.profiles(ctx)
	if err != nil {
		return Profile{}, err
	}
	profile, ok := profiles[phone]
	if !ok {
		profile = fallback
	}
	if fn != nil {
		fn(&profile)
	}
	profiles[phone] = profile
	if err := kv.SetJSON(ctx, s.store, kv.KeyProfiles, profiles); err != nil {
		return Profile{}, err
	}
	return profile, nil
}

// PrependOrder puts record at the head of phone's history, trims it to
// limit and returns the new history length.
func (s *ProfileStore) PrependOrder(ctx context.Context, phone string, record OrderRecord, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.orders(ctx)
	if err != nil {
		return 0, err
	}
	history := append([]OrderRecord{record}, orders[phone]...)
	if limit > 0 && len(history) > limit {
		history = history[:limit]
	}
	orders[phone] = history
	if err := kv.SetJSON(ctx, s.store, kv.KeyOrders, orders); err != nil {
		return 0, err
	}
	return len(history), nil
}

func (s *ProfileStore) profiles(ctx context.Context) (map[string]Profile, error) {
	profiles := map[string]Profile{}
	if err := s.read(ctx, kv.KeyProfiles, &profiles); err != nil {
		return nil, err
	}
	if profiles == nil {
		profiles = map[string]Profile{}
	}
	return profiles, nil
}

func (s *ProfileStore) orders(ctx context.Context) (map[string][]OrderRecord, error) {
	orders := map[string][]OrderRecord{}
	if err := s.read(ctx, kv.KeyOrders, &orders); err != nil {
		return nil, err
	}
	if orders == nil {
		orders = map[string][]OrderRecord{}
	}
	return orders, nil
}

func (s *ProfileStore) read(ctx context.Context, key string, dest any) error {
	_, err := kv.GetJSON(ctx, s.store, key, dest)
	if pkgerrors.IsCode(err, pkgerrors.CodeCorruptData) {
		s.logg.Error(s.logg.WithKey(ctx, key), "auth.store.corrupt_blob", err)
		return nil
	}
	return err
}
