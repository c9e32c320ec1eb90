package ordercode

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/laglue/storefront/pkg/kv"
	"github.com/shopspring/decimal"
)

var douala = time.FixedZone("WAT", 3600)

func sampleLines() []Line {
	return []Line{
		{ProductID: 1, Price: decimal.NewFromInt(30000), Quantity: 1},
		{ProductID: 2, Price: decimal.NewFromInt(25000), Quantity: 1},
	}
}

func newGenerator(t *testing.T, store kv.Store, now time.Time, limit int) *Generator {
	t.Helper()
	gen, err := NewGenerator(Params{
		Store:    store,
		Prefix:   "LAGLUE",
		Secret:   2407,
		Location: douala,
		LogLimit: limit,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return gen
}

func TestComposeKnownValue(t *testing.T) {
	at := time.Date(2025, time.January, 14, 10, 30, 0, 0, douala)
	got := Compose("LAGLUE", 2407, sampleLines(), at)
	// (80000 + 2407 + 141030) % 999999 = 223437, checksum (25*13 + 1*7) % 100 = 32
	if got != "LAGLUE250114-22343732" {
		t.Fatalf("unexpected code %s", got)
	}
}

func TestComposeEmptyCartStillPadded(t *testing.T) {
	at := time.Date(2026, time.March, 2, 0, 1, 0, 0, douala)
	got := Compose("LAGLUE", 0, nil, at)
	if got != "LAGLUE260302-02000159" {
		t.Fatalf("unexpected code %s", got)
	}
}

func TestGenerateThenVerify(t *testing.T) {
	now := time.Date(2025, time.June, 30, 23, 59, 0, 0, douala)
	gen := newGenerator(t, kv.NewMemoryStore(), now, 0)

	code, fallback := gen.Generate(context.Background(), sampleLines(), decimal.NewFromInt(55000))
	if fallback {
		t.Fatalf("unexpected fallback")
	}
	res := gen.Verify(code)
	if !res.Valid {
		t.Fatalf("fresh code must verify, got %+v", res)
	}
	if res.Date != "30/06/2025" || res.Year != 2025 || res.Month != 6 || res.Day != 30 {
		t.Fatalf("unexpected decoded date %+v", res)
	}
}

func TestVerifyReasons(t *testing.T) {
	now := time.Date(2025, time.January, 14, 12, 0, 0, 0, douala)
	cases := map[string]string{
		"ABC250114-00000000":    ReasonInvalidPrefix,
		"LAGLUE2501":            ReasonInvalidFormat,
		"LAGLUE2x0114-00000000": ReasonInvalidFormat,
		"LAGLUE251314-00000000": ReasonInvalidMonth,
		"LAGLUE250100-00000000": ReasonInvalidDay,
		"LAGLUE250132-00000000": ReasonInvalidDay,
		"LAGLUE250115-00000000": ReasonFutureDate,
	}
	for code, want := range cases {
		res := Verify("LAGLUE", code, now)
		if res.Valid || res.Reason != want {
			t.Fatalf("Verify(%s)=%+v want reason %q", code, res, want)
		}
	}
}

func TestVerifyIgnoresHash(t *testing.T) {
	now := time.Date(2025, time.January, 14, 12, 0, 0, 0, douala)
	if res := Verify("LAGLUE", "LAGLUE250114-99999999", now); !res.Valid {
		t.Fatalf("hash is not checked, expected valid, got %+v", res)
	}
}

func TestAuditLogKeepsLastEntries(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	base := time.Date(2025, time.January, 14, 10, 0, 0, 0, douala)

	var last string
	for i := 0; i < 5; i++ {
		gen := newGenerator(t, store, base.Add(time.Duration(i)*time.Minute), 3)
		last, _ = gen.Generate(ctx, sampleLines(), decimal.NewFromInt(55000))
	}

	gen := newGenerator(t, store, base, 3)
	entries, err := gen.AuditLog(ctx)
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[2].Code != last || entries[2].ProductCount != 2 || !entries[2].TotalAmount.Equal(decimal.NewFromInt(55000)) {
		t.Fatalf("unexpected newest entry %+v", entries[2])
	}
}

func TestCorruptAuditLogIsReset(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	_ = store.Set(ctx, kv.KeyOrderCodes, "not json")

	gen := newGenerator(t, store, time.Date(2025, time.January, 14, 10, 0, 0, 0, douala), 0)
	if _, fallback := gen.Generate(ctx, sampleLines(), decimal.Zero); fallback {
		t.Fatalf("corrupt audit log must not force the fallback code")
	}
	entries, err := gen.AuditLog(ctx)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected a fresh log, got %v err=%v", entries, err)
	}
}

type readOnlyStore struct{ *kv.MemoryStore }

func (readOnlyStore) Set(context.Context, string, string) error { return errors.New("quota exceeded") }

func TestGenerateFallsBackWhenAuditFails(t *testing.T) {
	now := time.UnixMilli(1736850600123).In(douala)
	gen := newGenerator(t, readOnlyStore{kv.NewMemoryStore()}, now, 0)

	code, fallback := gen.Generate(context.Background(), sampleLines(), decimal.Zero)
	if !fallback || code != "LAGLUE50600123" {
		t.Fatalf("unexpected fallback code %s (fallback=%v)", code, fallback)
	}
	if res := gen.Verify(code); res.Valid || !strings.Contains(res.Reason, "format") {
		t.Fatalf("fallback codes must not verify, got %+v", res)
	}
}

func TestNewGeneratorValidation(t *testing.T) {
	if _, err := NewGenerator(Params{Prefix: "LAGLUE"}); err == nil {
		t.Fatalf("expected missing store error")
	}
	if _, err := NewGenerator(Params{Store: kv.NewMemoryStore()}); err == nil {
		t.Fatalf("expected missing prefix error")
	}
}
