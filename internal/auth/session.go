package auth

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/laglue/storefront/pkg/enums"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
	"go.uber.org/multierr"
)

const (
	defaultSessionTTL   = 30 * 24 * time.Hour
	defaultHistoryLimit = 50
)

// SessionParams groups the dependencies of a device session.
type SessionParams struct {
	Store        kv.Store
	Profiles     *ProfileStore
	Key          string
	TTL          time.Duration
	HistoryLimit int
	Logger       *logger.Logger
	Now          func() time.Time
}

// Session is the phone identity logged in on one device. The profile and
// history maps are shared between devices; only the login marker is
// device-scoped.
type Session struct {
	mu           sync.Mutex
	store        kv.Store
	profiles     *ProfileStore
	key          string
	ttl          time.Duration
	historyLimit int
	logg         *logger.Logger
	now          func() time.Time

	phone   string
	profile Profile
	// fingerprint of the login marker last read or written here
	marker uint64
}

func NewSession(params SessionParams) (*Session, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store is required")
	}
	if params.Profiles == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile store is required")
	}
	key := params.Key
	if key == "" {
		key = kv.KeyAuth
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	limit := params.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Session{
		store:        params.Store,
		profiles:     params.Profiles,
		key:          key,
		ttl:          ttl,
		historyLimit: limit,
		logg:         logg,
		now:          now,
	}, nil
}

// Authenticate logs phone in: the profile is created on first sight (else
// its lastLogin refreshed) and the login marker is persisted.
func (s *Session) Authenticate(ctx context.Context, phone string) (Profile, error) {
	normalized, err := ParsePhone(phone)
	if err != nil {
		return Profile{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticate(ctx, normalized)
}

func (s *Session) authenticate(ctx context.Context, phone string) (Profile, error) {
	now := s.now().UTC()
	profile, err := s.profiles.UpdateProfile(ctx, phone, newProfile(phone, now), func(p *Profile) {
		p.LastLogin = now
	})
	if err != nil {
		return Profile{}, err
	}

	s.phone = phone
	s.profile = profile

	if err := s.writeMarker(ctx, sessionRecord{WhatsApp: phone, Timestamp: now.UnixMilli()}); err != nil {
		s.logg.Error(s.logg.WithKey(ctx, s.key), "auth.session.persist_failed", err)
	}
	s.logg.Info(s.logg.WithPhone(ctx, phone), "auth.login")
	return profile, nil
}

// Logout saves the profile snapshot and clears the login marker. The
// in-memory state is reset even when a write fails.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phone == "" {
		return nil
	}
	phone, snapshot := s.phone, s.profile
	s.phone, s.profile = "", Profile{}

	var err error
	if _, saveErr := s.profiles.UpdateProfile(ctx, phone, snapshot, nil); saveErr != nil {
		err = multierr.Append(err, saveErr)
	}
	if delErr := s.discard(ctx); delErr != nil {
		err = multierr.Append(err, delErr)
	}
	s.logg.Info(s.logg.WithPhone(ctx, phone), "auth.logout")
	return err
}

// Phone returns the logged in number, empty when anonymous.
func (s *Session) Phone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phone
}

// CurrentProfile returns the stored profile of the logged in shopper.
func (s *Session) CurrentProfile(ctx context.Context) (Profile, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phone == "" {
		return Profile{}, false, nil
	}
	profile, ok, err := s.profiles.Profile(ctx, s.phone)
	if err != nil {
		return Profile{}, false, err
	}
	if ok {
		s.profile = profile
	}
	return s.profile, true, nil
}

// UpdateProfile sets the display name (required) and delivery address.
func (s *Session) UpdateProfile(ctx context.Context, name, address string) (Profile, error) {
	name = strings.TrimSpace(name)
	address = strings.TrimSpace(address)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phone == "" {
		return Profile{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "Vous devez être connecté pour modifier votre profil")
	}
	if name == "" {
		return Profile{}, pkgerrors.New(pkgerrors.CodeValidation, "Veuillez saisir votre nom")
	}
	now := s.now().UTC()
	profile, err := s.profiles.UpdateProfile(ctx, s.phone, s.profile, func(p *Profile) {
		p.Name = name
		p.Address = address
		p.UpdatedAt = &now
	})
	if err != nil {
		return Profile{}, err
	}
	s.profile = profile
	return profile, nil
}

// History returns the logged in shopper's orders, newest first.
func (s *Session) History(ctx context.Context) ([]OrderRecord, error) {
	phone := s.Phone()
	if phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "not authenticated")
	}
	return s.profiles.Orders(ctx, phone)
}

// RecordOrder prepends the order to the shopper's history and updates the
// profile counters. Anonymous sessions record nothing and return nil.
func (s *Session) RecordOrder(ctx context.Context, input OrderInput) (*OrderRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phone == "" {
		return nil, nil
	}
	if stored, ok, err := s.profiles.Profile(ctx, s.phone); err == nil && ok {
		s.profile = stored
	}
	items := make([]OrderLine, len(input.Items))
	copy(items, input.Items)

	record := OrderRecord{
		ID:          input.Code,
		Date:        s.now().UTC(),
		Items:       items,
		Subtotal:    input.Subtotal,
		DeliveryFee: input.DeliveryFee,
		Total:       input.Total,
		Status:      enums.OrderStatusSentWhatsApp,
		CustomerInfo: CustomerInfo{
			Name:     s.profile.Name,
			Address:  s.profile.Address,
			WhatsApp: s.phone,
		},
	}

	count, err := s.profiles.PrependOrder(ctx, s.phone, record, s.historyLimit)
	if err != nil {
		return nil, err
	}
	profile, err := s.profiles.UpdateProfile(ctx, s.phone, s.profile, func(p *Profile) {
		p.OrderCount = count
		p.TotalSpent = p.TotalSpent.Add(input.Total)
	})
	if err != nil {
		return nil, err
	}
	s.profile = profile
	return &record, nil
}

// Restore re-authenticates from the persisted login marker when it is
// younger than the session TTL. Expired or unreadable markers are deleted.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, found, err := s.store.Get(ctx, s.key)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+s.key)
	}
	return s.restore(ctx, value, found, false)
}

// Refresh follows the login marker when it was rewritten by another
// process serving the same device: a login there logs this session in, a
// logout there logs it out. An unchanged marker costs one read.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, found, err := s.store.Get(ctx, s.key)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read "+s.key)
	}
	if kv.Fingerprint(value, found) == s.marker {
		return nil
	}
	s.phone, s.profile = "", Profile{}
	_, err = s.restore(ctx, value, found, true)
	return err
}

// restore applies a marker read from the store. A fresh login is adopted
// as written when adopt is set; otherwise it is re-authenticated, which
// slides the marker forward. Callers hold s.mu.
func (s *Session) restore(ctx context.Context, value string, found, adopt bool) (bool, error) {
	s.marker = kv.Fingerprint(value, found)
	if !found || value == "" {
		return false, nil
	}

	var record sessionRecord
	if err := json.Unmarshal([]byte(value), &record); err != nil || record.WhatsApp == "" || record.Timestamp == 0 {
		s.logg.Warn(s.logg.WithKey(ctx, s.key), "auth.session.unreadable")
		return false, s.discard(ctx)
	}

	age := s.now().Sub(time.UnixMilli(record.Timestamp))
	if age >= s.ttl {
		s.logg.Info(s.logg.WithPhone(ctx, record.WhatsApp), "auth.session.expired")
		return false, s.discard(ctx)
	}

	phone, parseErr := ParsePhone(record.WhatsApp)
	if parseErr != nil {
		return false, s.discard(ctx)
	}
	if adopt {
		profile, ok, err := s.profiles.Profile(ctx, phone)
		if err != nil {
			return false, err
		}
		if !ok {
			profile = newProfile(phone, time.UnixMilli(record.Timestamp).UTC())
		}
		s.phone, s.profile = phone, profile
		return true, nil
	}
	if _, err := s.authenticate(ctx, phone); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Session) writeMarker(ctx context.Context, record sessionRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode "+s.key)
	}
	if err := s.store.Set(ctx, s.key, string(payload)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write "+s.key)
	}
	s.marker = kv.Fingerprint(string(payload), true)
	return nil
}

func (s *Session) discard(ctx context.Context) error {
	if err := s.store.Delete(ctx, s.key); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete "+s.key)
	}
	s.marker = 0
	return nil
}
