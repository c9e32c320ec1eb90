// Package storefront wires the per-device state: every device token gets
// its own cart engine and auth session over the shared store.
package storefront

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/laglue/storefront/internal/auth"
	"github.com/laglue/storefront/internal/cart"
	"github.com/laglue/storefront/pkg/config"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
)

const defaultIdleTTL = 30 * time.Minute

// Session is one device's cart and login state.
type Session struct {
	DeviceID string
	Cart     *cart.Engine
	Auth     *auth.Session

	lastSeen time.Time
}

// RegistryParams groups the dependencies shared by all sessions.
type RegistryParams struct {
	Store      kv.Store
	Catalog    cart.ProductLookup
	Profiles   *auth.ProfileStore
	Storefront config.StorefrontConfig
	Logger     *logger.Logger
	IdleTTL    time.Duration
	Now        func() time.Time
}

// Registry hands out device sessions. A session is built and restored from
// the store the first time its device is seen by this process, then kept
// until it has been idle for IdleTTL. Cached sessions re-read their store
// keys on every lookup so replicas behind a load balancer stay in step.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	lastSweep time.Time

	store    kv.Store
	catalog  cart.ProductLookup
	profiles *auth.ProfileStore
	cfg      config.StorefrontConfig
	logg     *logger.Logger
	idleTTL  time.Duration
	now      func() time.Time
}

func NewRegistry(params RegistryParams) (*Registry, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store is required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog is required")
	}
	profiles := params.Profiles
	if profiles == nil {
		var err error
		if profiles, err = auth.NewProfileStore(params.Store, params.Logger); err != nil {
			return nil, err
		}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	idle := params.IdleTTL
	if idle <= 0 {
		idle = defaultIdleTTL
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		sessions: map[string]*Session{},
		store:    params.Store,
		catalog:  params.Catalog,
		profiles: profiles,
		cfg:      params.Storefront,
		logg:     logg,
		idleTTL:  idle,
		now:      now,
	}, nil
}

// Session returns the device session, creating and restoring it on first use.
// Restore problems (corrupt cart, expired login) degrade to an empty cart or
// an anonymous session and are only logged.
func (r *Registry) Session(ctx context.Context, deviceID string) (*Session, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "device id is required")
	}

	r.mu.Lock()
	now := r.now()
	if now.Sub(r.lastSweep) >= r.idleTTL {
		r.sweepLocked(now)
	}
	if session, ok := r.sessions[deviceID]; ok {
		session.lastSeen = now
		r.mu.Unlock()
		r.refresh(ctx, session)
		return session, nil
	}
	defer r.mu.Unlock()

	session, err := r.build(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	session.lastSeen = now
	r.sessions[deviceID] = session
	return session, nil
}

// refresh pulls in cart and login writes made by other processes sharing
// the store. A failed read keeps the in-memory state.
func (r *Registry) refresh(ctx context.Context, session *Session) {
	ctx = r.logg.WithDeviceID(ctx, session.DeviceID)
	if _, err := session.Cart.Refresh(ctx); err != nil {
		r.logg.Error(ctx, "storefront.cart_refresh_failed", err)
	}
	if err := session.Auth.Refresh(ctx); err != nil {
		r.logg.Error(ctx, "storefront.session_refresh_failed", err)
	}
}

func (r *Registry) build(ctx context.Context, deviceID string) (*Session, error) {
	ctx = r.logg.WithDeviceID(ctx, deviceID)

	engine, err := cart.NewEngine(cart.EngineParams{
		Store:   r.store,
		Key:     kv.DeviceKey(deviceID, kv.KeyCart),
		Catalog: r.catalog,
		Pricing: cart.Pricing{
			FreeDeliveryThreshold: r.cfg.FreeDeliveryThreshold,
			DeliveryFee:           r.cfg.DeliveryFee,
			MaxQuantity:           r.cfg.MaxItemQuantity,
		},
		Logger: r.logg,
	})
	if err != nil {
		return nil, err
	}
	identity, err := auth.NewSession(auth.SessionParams{
		Store:        r.store,
		Profiles:     r.profiles,
		Key:          kv.DeviceKey(deviceID, kv.KeyAuth),
		TTL:          r.cfg.SessionTTL,
		HistoryLimit: r.cfg.OrderHistoryLimit,
		Logger:       r.logg,
		Now:          r.now,
	})
	if err != nil {
		return nil, err
	}

	if err := engine.Restore(ctx); err != nil {
		r.logg.Warn(ctx, "storefront.cart_restore_degraded")
	}
	if _, err := identity.Restore(ctx); err != nil {
		r.logg.Error(ctx, "storefront.session_restore_failed", err)
	}
	return &Session{DeviceID: deviceID, Cart: engine, Auth: identity}, nil
}

// Sweep drops sessions idle for longer than the idle TTL and returns how
// many were dropped. Their state stays in the store.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked(r.now())
}

func (r *Registry) sweepLocked(now time.Time) int {
	r.lastSweep = now
	dropped := 0
	for id, session := range r.sessions {
		if now.Sub(session.lastSeen) >= r.idleTTL {
			delete(r.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
