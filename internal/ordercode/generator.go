// Package ordercode stamps submitted orders with a dated reference code and
// keeps the audit trail of every code handed out.
package ordercode

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/laglue/storefront/pkg/config"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
	"github.com/shopspring/decimal"
)

const (
	hashModulus     = 999999
	defaultLogLimit = 100
	fallbackDigits  = 8
)

// Line is the part of a cart line the code depends on.
type Line struct {
	ProductID int64
	Price     decimal.Decimal
	Quantity  int
}

// AuditEntry is one record of the code audit log.
type AuditEntry struct {
	Code         string          `json:"code"`
	Timestamp    string          `json:"timestamp"`
	ProductCount int             `json:"productCount"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
	GeneratedAt  int64           `json:"generatedAt"`
}

// Params groups the generator dependencies.
type Params struct {
	Store    kv.Store
	Prefix   string
	Secret   int64
	Location *time.Location
	LogLimit int
	Logger   *logger.Logger
	Now      func() time.Time
}

// ParamsFromConfig fills the storefront settings into Params.
func ParamsFromConfig(cfg config.StorefrontConfig, store kv.Store, logg *logger.Logger) Params {
	return Params{
		Store:    store,
		Prefix:   cfg.OrderCodePrefix,
		Secret:   cfg.OrderCodeSecret,
		Location: cfg.Location(),
		LogLimit: cfg.OrderCodeLogLimit,
		Logger:   logg,
	}
}

// Generator produces order codes of the form PREFIX YY MM DD "-" hash checksum.
type Generator struct {
	mu       sync.Mutex
	store    kv.Store
	prefix   string
	secret   int64
	loc      *time.Location
	logLimit int
	logg     *logger.Logger
	now      func() time.Time
}

func NewGenerator(params Params) (*Generator, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store is required")
	}
	prefix := strings.TrimSpace(params.Prefix)
	if prefix == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order code prefix is required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	limit := params.LogLimit
	if limit <= 0 {
		limit = defaultLogLimit
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Generator{
		store:    params.Store,
		prefix:   prefix,
		secret:   params.Secret,
		loc:      loc,
		logLimit: limit,
		logg:     logg,
		now:      now,
	}, nil
}

// Prefix returns the configured code prefix.
func (g *Generator) Prefix() string {
	return g.prefix
}

// Generate builds the code for lines and appends it to the audit log. When
// the audit log cannot be written the structured code is abandoned and the
// fallback PREFIX + last eight digits of the epoch milliseconds is returned
// with fallback=true.
func (g *Generator) Generate(ctx context.Context, lines []Line, totalAmount decimal.Decimal) (code string, fallback bool) {
	now := g.now()
	code = Compose(g.prefix, g.secret, lines, now.In(g.loc))

	if err := g.audit(ctx, AuditEntry{
		Code:         code,
		Timestamp:    now.UTC().Format(time.RFC3339Nano),
		ProductCount: len(lines),
		TotalAmount:  totalAmount,
		GeneratedAt:  now.UnixMilli(),
	}); err != nil {
		g.logg.Error(g.logg.WithKey(ctx, kv.KeyOrderCodes), "order_code.generate_failed", err)
		return g.fallback(now), true
	}
	return code, false
}

// Compose is the pure code computation.
func Compose(prefix string, secret int64, lines []Line, at time.Time) string {
	productKey := decimal.Zero
	for _, line := range lines {
		productKey = productKey.Add(decimal.NewFromInt(line.ProductID).
			Mul(decimal.NewFromInt(int64(line.Quantity))).
			Mul(line.Price))
	}

	dayHourMinute, _ := strconv.ParseInt(at.Format("021504"), 10, 64)
	raw := productKey.
		Add(decimal.NewFromInt(secret)).
		Add(decimal.NewFromInt(dayHourMinute)).
		Mod(decimal.NewFromInt(hashModulus)).
		Floor().
		IntPart()
	if raw < 0 {
		raw += hashModulus
	}

	year := at.Year() % 100
	checksum := (year*13 + int(at.Month())*7) % 100

	return fmt.Sprintf("%s%02d%02d%02d-%06d%02d", prefix, year, int(at.Month()), at.Day(), raw, checksum)
}

// AuditLog returns the stored audit entries, oldest first.
func (g *Generator) AuditLog(ctx context.Context) ([]AuditEntry, error) {
	var entries []AuditEntry
	if _, err := kv.GetJSON(ctx, g.store, kv.KeyOrderCodes, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (g *Generator) audit(ctx context.Context, entry AuditEntry) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	entries, err := g.AuditLog(ctx)
	if err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeCorruptData) {
			return err
		}
		g.logg.Warn(g.logg.WithKey(ctx, kv.KeyOrderCodes), "order_code.audit_log_reset")
		entries = nil
	}
	entries = append(entries, entry)
	if len(entries) > g.logLimit {
		entries = entries[len(entries)-g.logLimit:]
	}
	return kv.SetJSON(ctx, g.store, kv.KeyOrderCodes, entries)
}

func (g *Generator) fallback(now time.Time) string {
	millis := strconv.FormatInt(now.UnixMilli(), 10)
	if len(millis) > fallbackDigits {
		millis = millis[len(millis)-fallbackDigits:]
	}
	return g.prefix + millis
}
