package checkout

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/laglue/storefront/internal/auth"
	"github.com/laglue/storefront/internal/cart"
	"github.com/laglue/storefront/internal/catalog"
	"github.com/laglue/storefront/internal/ordercode"
	"github.com/laglue/storefront/pkg/config"
	"github.com/laglue/storefront/pkg/enums"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/events"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type stubCodes struct {
	code     string
	fallback bool
	lines    []ordercode.Line
}

func (s *stubCodes) Generate(_ context.Context, lines []ordercode.Line, _ decimal.Decimal) (string, bool) {
	s.lines = lines
	return s.code, s.fallback
}

type recordingPublisher struct {
	mu        sync.Mutex
	envelopes []events.Envelope
	err       error
	release   chan struct{}
}

func (r *recordingPublisher) Publish(ctx context.Context, envelope events.Envelope) error {
	if r.release != nil {
		select {
		case <-r.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.envelopes = append(r.envelopes, envelope)
	return r.err
}

func (r *recordingPublisher) published() []events.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Envelope(nil), r.envelopes...)
}

func (r *recordingPublisher) Close() error { return nil }

type lookup map[int64]catalog.Product

func (l lookup) Product(id int64) (catalog.Product, bool) {
	p, ok := l[id]
	return p, ok
}

func storefrontConfig() config.StorefrontConfig {
	return config.StorefrontConfig{
		Name:               "La Glue !",
		Tagline:            "Votre boutique de confiance",
		WhatsAppNumber:     "237655912990",
		Currency:           "FCFA",
		Timezone:           "Africa/Douala",
		AdminOrderLogLimit: 2,
	}
}

type fixture struct {
	store     *kv.MemoryStore
	svc       Service
	cart      *cart.Engine
	codes     *stubCodes
	publisher *recordingPublisher
	registry  *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := kv.NewMemoryStore()
	engine, err := cart.NewEngine(cart.EngineParams{
		Store: store,
		Catalog: lookup{
			1: {ID: 1, Name: "Écouteurs", Price: decimal.NewFromInt(30000)},
			2: {ID: 2, Name: "Montre", Price: decimal.NewFromInt(25000)},
		},
	})
	require.NoError(t, err)

	f := &fixture{
		store:     store,
		cart:      engine,
		codes:     &stubCodes{code: "LAGLUE250114-22343732"},
		publisher: &recordingPublisher{},
		registry:  prometheus.NewRegistry(),
	}
	f.svc, err = NewService(ServiceParams{
		Store:      store,
		Codes:      f.codes,
		Publisher:  f.publisher,
		Metrics:    metrics.NewOrderMetrics(f.registry),
		Storefront: storefrontConfig(),
		Now:        func() time.Time { return time.Date(2025, 1, 14, 9, 30, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) fill(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	_, err := f.cart.Add(ctx, 1)
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, 2)
	require.NoError(t, err)
}

func validRequest() Request {
	return Request{Name: "Awa", WhatsApp: "655 91 29 90", Address: "Akwa, Douala"}
}

func TestSubmitValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.Submit(ctx, f.cart, nil, validRequest())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "empty cart must be rejected")

	f.fill(t)
	for _, req := range []Request{
		{WhatsApp: "655912990", Address: "Akwa"},
		{Name: "Awa", Address: "Akwa"},
		{Name: "Awa", WhatsApp: "655912990", Address: "  "},
		{Name: "Awa", WhatsApp: "12345", Address: "Akwa"},
	} {
		_, err := f.svc.Submit(ctx, f.cart, nil, req)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "request %+v", req)
	}
	f.svc.Wait()
	require.Empty(t, f.publisher.published())
}

func TestSubmitAnonymous(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t)

	receipt, err := f.svc.Submit(ctx, f.cart, nil, validRequest())
	require.NoError(t, err)

	order := receipt.Order
	require.Equal(t, "LAGLUE250114-22343732", order.Code)
	require.Equal(t, "14/01/2025", order.Date)
	require.Equal(t, "10:30", order.Time)
	require.Equal(t, "237655912990", order.Customer.WhatsApp)
	require.False(t, order.Customer.IsAuthenticated)
	require.Equal(t, enums.OrderStatusPending, order.Status)
	require.True(t, order.Totals.Total.Equal(decimal.NewFromInt(55000)))
	require.True(t, order.Totals.DeliveryFee.IsZero())
	require.Equal(t, 2, order.Totals.ItemsCount)
	require.Len(t, f.codes.lines, 2)
	require.Nil(t, receipt.History)
	require.Len(t, receipt.Cart.Items, 2, "cart is kept unless clear is requested")

	require.True(t, strings.HasPrefix(receipt.WhatsAppURL, "https://wa.me/237655912990?text="))
	require.NotContains(t, receipt.WhatsAppURL, "+")
	decoded, err := url.QueryUnescape(strings.TrimPrefix(receipt.WhatsAppURL, "https://wa.me/237655912990?text="))
	require.NoError(t, err)
	require.Equal(t, receipt.Message, decoded)

	f.svc.Wait()
	published := f.publisher.published()
	require.Len(t, published, 1)
	require.Equal(t, events.TypeOrderSubmitted, published[0].Type)
	require.Equal(t, order.Code, published[0].Key)

	logged, err := f.svc.AdminOrders(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	require.Equal(t, order.Code, logged[0].Code)
}

func TestSubmitAuthenticatedRecordsHistoryAndClearsCart(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t)

	profiles, err := auth.NewProfileStore(f.store, nil)
	require.NoError(t, err)
	session, err := auth.NewSession(auth.SessionParams{Store: f.store, Profiles: profiles})
	require.NoError(t, err)
	_, err = session.Authenticate(ctx, "699000111")
	require.NoError(t, err)

	req := validRequest()
	req.ClearCart = true
	receipt, err := f.svc.Submit(ctx, f.cart, session, req)
	require.NoError(t, err)
	require.True(t, receipt.Order.Customer.IsAuthenticated)
	require.NotNil(t, receipt.History)
	require.Equal(t, receipt.Order.Code, receipt.History.ID)
	require.True(t, receipt.History.Total.Equal(decimal.NewFromInt(55000)))
	require.Empty(t, receipt.Cart.Items)
	require.Empty(t, f.cart.Snapshot().Items)

	require.Equal(t, float64(1), counterValue(t, f.registry, "orders_submitted_total", "true"))
}

func TestSubmitSurvivesPublishFailureAndCountsFallback(t *testing.T) {
	f := newFixture(t)
	f.fill(t)
	f.publisher.err = errors.New("broker down")
	f.codes.fallback = true
	f.codes.code = "LAGLUE50600123"

	receipt, err := f.svc.Submit(context.Background(), f.cart, nil, validRequest())
	require.NoError(t, err)
	require.True(t, receipt.FallbackCode)
	require.Equal(t, float64(1), counterValue(t, f.registry, "order_code_fallbacks_total", ""))
	f.svc.Wait()
	require.Len(t, f.publisher.published(), 1)
}

func TestSubmitDoesNotWaitForPublisher(t *testing.T) {
	f := newFixture(t)
	f.fill(t)
	f.publisher.release = make(chan struct{})

	ctx, cancel := context.WithCancel(context.Background())
	receipt, err := f.svc.Submit(ctx, f.cart, nil, validRequest())
	require.NoError(t, err)
	require.NotEmpty(t, receipt.Order.Code)
	cancel()

	require.Empty(t, f.publisher.published())
	close(f.publisher.release)
	f.svc.Wait()
	require.Len(t, f.publisher.published(), 1, "publish outlives the request context")
}

func TestPublishGivesUpAfterTimeout(t *testing.T) {
	store := kv.NewMemoryStore()
	engine, err := cart.NewEngine(cart.EngineParams{
		Store:   store,
		Catalog: lookup{1: {ID: 1, Name: "Écouteurs", Price: decimal.NewFromInt(30000)}},
	})
	require.NoError(t, err)
	publisher := &recordingPublisher{release: make(chan struct{})}
	svc, err := NewService(ServiceParams{
		Store:          store,
		Codes:          &stubCodes{code: "C1"},
		Publisher:      publisher,
		PublishTimeout: 10 * time.Millisecond,
		Storefront:     storefrontConfig(),
	})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = engine.Add(ctx, 1)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, engine, nil, validRequest())
	require.NoError(t, err)
	svc.Wait()
	require.Empty(t, publisher.published())
}

// historyHook adds a product to the cart while the order is being recorded,
// like a second tab of the same device would.
type historyHook struct {
	basket *cart.Engine
	t      *testing.T
}

func (h *historyHook) Phone() string { return "237699000111" }

func (h *historyHook) RecordOrder(ctx context.Context, input auth.OrderInput) (*auth.OrderRecord, error) {
	_, err := h.basket.Add(ctx, 2)
	require.NoError(h.t, err)
	return &auth.OrderRecord{ID: input.Code}, nil
}

func TestClearCartKeepsLinesAddedDuringSubmit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.cart.Add(ctx, 1)
	require.NoError(t, err)
	_, err = f.cart.Add(ctx, 1)
	require.NoError(t, err)

	req := validRequest()
	req.ClearCart = true
	receipt, err := f.svc.Submit(ctx, f.cart, &historyHook{basket: f.cart, t: t}, req)
	require.NoError(t, err)
	require.Len(t, receipt.Order.Items, 1)

	items := f.cart.Snapshot().Items
	require.Len(t, items, 1)
	require.Equal(t, int64(2), items[0].ProductID)
	require.Equal(t, 1, items[0].Quantity)
	require.Equal(t, items, receipt.Cart.Items)
}

func TestAdminLogIsCappedNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t)

	for _, code := range []string{"C1", "C2", "C3"} {
		f.codes.code = code
		_, err := f.svc.Submit(ctx, f.cart, nil, validRequest())
		require.NoError(t, err)
	}
	orders, err := f.svc.AdminOrders(ctx, 0)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, "C3", orders[0].Code)
	require.Equal(t, "C2", orders[1].Code)

	orders, err = f.svc.AdminOrders(ctx, 1)
	require.NoError(t, err)
	require.Len(t, orders, 1)
}

func TestFindOrderAndQRCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fill(t)
	_, err := f.svc.Submit(ctx, f.cart, nil, validRequest())
	require.NoError(t, err)

	png, err := f.svc.QRCode(ctx, "LAGLUE250114-22343732")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(png, []byte("\x89PNG")))

	_, err = f.svc.QRCode(ctx, "LAGLUE000000-00000000")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestComposeMessage(t *testing.T) {
	order := Order{
		Code:     "LAGLUE250114-22343732",
		Date:     "14/01/2025",
		Time:     "10:30",
		Customer: Customer{Name: "Awa", WhatsApp: "237655912990", Address: "Akwa"},
		Items: []auth.OrderLine{
			{Name: "Écouteurs", Price: decimal.NewFromInt(30000), Quantity: 2, Total: decimal.NewFromInt(60000)},
		},
		Totals: OrderTotals{Total: decimal.NewFromInt(60000)},
	}
	got := ComposeMessage(order, MessageStyle{StoreName: "La Glue !", Tagline: "Votre boutique de confiance", Currency: "FCFA"})
	want := "🛒 *Nouvelle commande - La Glue !*\n\n" +
		"📄 *CODE: LAGLUE250114-22343732*\n" +
		"📅 14/01/2025 à 10:30\n\n" +
		"👤 *CLIENT:*\n" +
		"• Nom: Awa\n" +
		"• WhatsApp: 237655912990\n" +
		"• Adresse: Akwa\n\n" +
		"📦 *PRODUITS:*\n" +
		"1. Écouteurs\n" +
		"   30\u202f000 FCFA x 2 = 60\u202f000 FCFA\n\n" +
		"💰 *TOTAL: 60\u202f000 FCFA*\n\n" +
		"⚠️ Code requis pour toute réclamation\n" +
		"La Glue ! - Votre boutique de confiance"
	require.Equal(t, want, got)
}

func TestEncodeURIComponent(t *testing.T) {
	require.Equal(t, "a%20b!'()*-_.~%2B%26%0A", EncodeURIComponent("a b!'()*-_.~+&\n"))
}

func TestNewServiceValidation(t *testing.T) {
	_, err := NewService(ServiceParams{Codes: &stubCodes{}, Storefront: storefrontConfig()})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Store: kv.NewMemoryStore(), Storefront: storefrontConfig()})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Store: kv.NewMemoryStore(), Codes: &stubCodes{}})
	require.Error(t, err)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label == "" || (len(m.GetLabel()) > 0 && m.GetLabel()[0].GetValue() == label) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}
