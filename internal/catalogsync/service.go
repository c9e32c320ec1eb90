// Package catalogsync keeps the in-memory catalog in step with the store.
package catalogsync

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/laglue/storefront/internal/catalog"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
	"github.com/laglue/storefront/pkg/metrics"
)

const (
	defaultInterval = 10 * time.Second
	defaultThrottle = 30 * time.Second
)

// Triggers label what started a reconciliation.
const (
	TriggerTick     = "tick"
	TriggerNotify   = "notify"
	TriggerDeferred = "deferred"
)

type catalogLoader interface {
	Load(ctx context.Context) (*catalog.Catalog, error)
	Fingerprint(ctx context.Context, keys []string) (catalog.Snapshot, error)
}

// ServiceParams configure the sync service.
type ServiceParams struct {
	Logger   *logger.Logger
	Loader   catalogLoader
	Holder   *catalog.Holder
	Store    kv.Store
	Notifier kv.Notifier
	Metrics  *metrics.SyncMetrics
	Interval time.Duration
	Throttle time.Duration
	// StampKey is where the last reconciliation time (epoch millis) lives.
	StampKey string
	Now      func() time.Time
}

// Outcome describes one reconciliation attempt.
type Outcome struct {
	Result     string
	RetryAfter time.Duration
}

// Service reconciles the catalog on store change notifications, with a
// fallback ticker. At most one reconciliation runs per throttle window; a
// notification inside the window is deferred to the window end.
type Service struct {
	logg     *logger.Logger
	loader   catalogLoader
	holder   *catalog.Holder
	store    kv.Store
	notifier kv.Notifier
	metrics  *metrics.SyncMetrics
	interval time.Duration
	throttle time.Duration
	stampKey string
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]struct{}
}

// NewService builds a sync service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Loader == nil {
		return nil, fmt.Errorf("loader required")
	}
	if params.Holder == nil {
		return nil, fmt.Errorf("catalog holder required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	throttle := params.Throttle
	if throttle <= 0 {
		throttle = defaultThrottle
	}
	stampKey := params.StampKey
	if stampKey == "" {
		stampKey = kv.KeyLastSync
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		loader:   params.Loader,
		holder:   params.Holder,
		store:    params.Store,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		interval: interval,
		throttle: throttle,
		stampKey: stampKey,
		now:      now,
		pending:  map[string]struct{}{},
	}, nil
}

// Run starts the sync loop until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = s.logg.WithField(ctx, "event", "catalog.sync")

	var changes <-chan kv.Change
	if s.notifier != nil {
		ch, err := s.notifier.Subscribe(ctx)
		if err != nil {
			s.logg.Error(ctx, "change subscription failed; polling only", err)
		} else {
			changes = ch
		}
	}

	s.reconcile(ctx, TriggerTick)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var deferred *time.Timer
	var deferredC <-chan time.Time
	defer func() {
		if deferred != nil {
			deferred.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "catalog sync context canceled")
			return ctx.Err()
		case <-ticker.C:
			s.reconcile(ctx, TriggerTick)
		case change, ok := <-changes:
			if !ok {
				s.logg.Warn(ctx, "change subscription closed; polling only")
				changes = nil
				continue
			}
			if !kv.IsCatalogKey(change.Key) {
				continue
			}
			s.markPending(change.Key)
			outcome := s.reconcile(ctx, TriggerNotify)
			if outcome.Result == metrics.SyncResultThrottled && deferredC == nil {
				deferred = time.NewTimer(outcome.RetryAfter)
				deferredC = deferred.C
			}
		case <-deferredC:
			deferred, deferredC = nil, nil
			outcome := s.reconcile(ctx, TriggerDeferred)
			if outcome.Result == metrics.SyncResultThrottled {
				deferred = time.NewTimer(outcome.RetryAfter)
				deferredC = deferred.C
			}
		}
	}
}

func (s *Service) reconcile(ctx context.Context, trigger string) Outcome {
	runCtx := s.logg.WithField(ctx, "trigger", trigger)
	start := time.Now()
	outcome, err := s.Reconcile(runCtx, trigger)
	duration := time.Since(start)
	if outcome.Result != metrics.SyncResultThrottled {
		s.metrics.ObserveDuration(trigger, duration)
	}
	s.metrics.IncRun(trigger, outcome.Result)
	if err != nil {
		s.logg.Error(runCtx, "catalog sync failed", err)
		return outcome
	}
	if outcome.Result == metrics.SyncResultReloaded {
		runCtx = s.logg.WithField(runCtx, "duration_ms", duration.Milliseconds())
		s.logg.Info(runCtx, "catalog reloaded")
	}
	return outcome
}

// Reconcile runs one throttled comparison. The fingerprints of the blobs
// the active catalog was built from (plus any key announced since the last
// run) are compared against the store; any difference reloads the catalog
// through the loader. A failed load keeps the active catalog.
func (s *Service) Reconcile(ctx context.Context, trigger string) (Outcome, error) {
	now := s.now()
	if wait := s.throttled(ctx, now); wait > 0 {
		return Outcome{Result: metrics.SyncResultThrottled, RetryAfter: wait}, nil
	}
	if err := s.store.Set(ctx, s.stampKey, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		s.logg.Error(s.logg.WithKey(ctx, s.stampKey), "sync stamp write failed", err)
	}

	current := s.holder.Current()
	keys := s.takePending(current.Snapshot.Keys())
	fresh, err := s.loader.Fingerprint(ctx, keys)
	if err != nil {
		return Outcome{Result: metrics.SyncResultFailed}, err
	}
	if fresh.Equal(current.Snapshot) {
		return Outcome{Result: metrics.SyncResultUnchanged}, nil
	}

	next, err := s.loader.Load(ctx)
	if err != nil {
		return Outcome{Result: metrics.SyncResultFailed}, err
	}
	s.holder.Replace(next)
	s.metrics.SetProducts(len(next.Products))
	return Outcome{Result: metrics.SyncResultReloaded}, nil
}

// throttled returns how long to wait before the next allowed run. A missing
// or unreadable stamp never throttles.
func (s *Service) throttled(ctx context.Context, now time.Time) time.Duration {
	raw, found, err := s.store.Get(ctx, s.stampKey)
	if err != nil {
		s.logg.Error(s.logg.WithKey(ctx, s.stampKey), "sync stamp read failed", err)
		return 0
	}
	if !found {
		return 0
	}
	millis, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	elapsed := now.Sub(time.UnixMilli(millis))
	if elapsed < 0 || elapsed >= s.throttle {
		return 0
	}
	return s.throttle - elapsed
}

func (s *Service) markPending(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[key] = struct{}{}
}

func (s *Service) takePending(keys []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		seen[key] = struct{}{}
	}
	for key := range s.pending {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	s.pending = map[string]struct{}{}
	sort.Strings(keys)
	return keys
}
