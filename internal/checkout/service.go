package checkout

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/laglue/storefront/internal/auth"
	"github.com/laglue/storefront/internal/cart"
	"github.com/laglue/storefront/internal/ordercode"
	"github.com/laglue/storefront/pkg/config"
	"github.com/laglue/storefront/pkg/enums"
	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/events"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
	"github.com/laglue/storefront/pkg/metrics"
	"github.com/shopspring/decimal"
)

const (
	defaultAdminLogLimit  = 1000
	defaultPublishTimeout = 10 * time.Second
)

// Cart is the slice of the cart engine checkout needs.
type Cart interface {
	Snapshot() cart.Result
	RemoveLines(ctx context.Context, ordered []cart.Item) cart.Result
}

// Identity is the slice of the auth session checkout needs.
type Identity interface {
	Phone() string
	RecordOrder(ctx context.Context, input auth.OrderInput) (*auth.OrderRecord, error)
}

type codeGenerator interface {
	Generate(ctx context.Context, lines []ordercode.Line, totalAmount decimal.Decimal) (string, bool)
}

// Service submits orders and serves the admin order log.
type Service interface {
	Submit(ctx context.Context, basket Cart, identity Identity, req Request) (*Receipt, error)
	AdminOrders(ctx context.Context, limit int) ([]Order, error)
	FindOrder(ctx context.Context, code string) (*Order, error)
	QRCode(ctx context.Context, code string) ([]byte, error)
	CustomerQRCode(ctx context.Context, code, phone string) ([]byte, error)
	// Wait blocks until order events handed to the publisher are done.
	Wait()
}

// ServiceParams bundles the dependencies required to build a checkout service.
type ServiceParams struct {
	Store     kv.Store
	Codes     codeGenerator
	Publisher events.Publisher
	// PublishTimeout bounds one background event publish.
	PublishTimeout time.Duration
	Metrics        *metrics.OrderMetrics
	Storefront     config.StorefrontConfig
	Logger         *logger.Logger
	Now            func() time.Time
}

type service struct {
	mu        sync.Mutex
	store     kv.Store
	codes     codeGenerator
	publisher events.Publisher
	timeout   time.Duration
	inflight  sync.WaitGroup
	metrics   *metrics.OrderMetrics
	cfg       config.StorefrontConfig
	loc       *time.Location
	logg      *logger.Logger
	now       func() time.Time
}

// NewService constructs a checkout service with the provided dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store is required")
	}
	if params.Codes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order code generator is required")
	}
	if strings.TrimSpace(params.Storefront.WhatsAppNumber) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store whatsapp number is required")
	}
	publisher := params.Publisher
	if publisher == nil {
		publisher = events.Noop{}
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	timeout := params.PublishTimeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &service{
		store:     params.Store,
		codes:     params.Codes,
		publisher: publisher,
		timeout:   timeout,
		metrics:   params.Metrics,
		cfg:       params.Storefront,
		loc:       params.Storefront.Location(),
		logg:      logg,
		now:       now,
	}, nil
}

// Submit validates the delivery form, stamps the order with a code, logs it
// for the shop, builds the WhatsApp link and records it in the shopper's
// history. Side effects after the code is generated never fail the order,
// and the order event is published in the background.
func (s *service) Submit(ctx context.Context, basket Cart, identity Identity, req Request) (*Receipt, error) {
	if basket == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart is required")
	}
	snapshot := basket.Snapshot()
	if len(snapshot.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Votre panier est vide !")
	}

	name := strings.TrimSpace(req.Name)
	address := strings.TrimSpace(req.Address)
	if name == "" || address == "" || strings.TrimSpace(req.WhatsApp) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Veuillez remplir tous les champs obligatoires !")
	}
	phone, err := auth.ParsePhone(req.WhatsApp)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Numéro WhatsApp invalide !").
			WithDetails(map[string]any{"field": "whatsapp"})
	}

	authenticated := identity != nil && identity.Phone() != ""
	totals := snapshot.Totals

	codeLines := make([]ordercode.Line, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		codeLines = append(codeLines, ordercode.Line{ProductID: item.ProductID, Price: item.Price, Quantity: item.Quantity})
	}
	code, fallback := s.codes.Generate(ctx, codeLines, totals.Total)
	if fallback {
		s.metrics.IncFallbackCode()
	}

	now := s.now()
	local := now.In(s.loc)
	order := Order{
		Code:      code,
		Timestamp: now.UTC(),
		Date:      local.Format("02/01/2006"),
		Time:      local.Format("15:04"),
		Customer: Customer{
			Name:            name,
			WhatsApp:        phone,
			Address:         address,
			IsAuthenticated: authenticated,
		},
		Items: orderLines(snapshot.Items),
		Totals: OrderTotals{
			Subtotal:    totals.Subtotal,
			DeliveryFee: totals.DeliveryFee,
			Total:       totals.Total,
			ItemsCount:  totals.Count,
		},
		Status: enums.OrderStatusPending,
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"order_code": code, "authenticated": authenticated})
	if err := s.appendAdminLog(ctx, order); err != nil {
		s.logg.Error(s.logg.WithKey(ctx, kv.KeyAdminOrders), "checkout.admin_log_failed", err)
	}

	message := ComposeMessage(order, MessageStyle{
		StoreName: s.cfg.Name,
		Tagline:   s.cfg.Tagline,
		Currency:  s.cfg.Currency,
	})
	receipt := &Receipt{
		Order:        order,
		Message:      message,
		WhatsAppURL:  WhatsAppURL(s.cfg.WhatsAppNumber, message),
		FallbackCode: fallback,
	}

	if authenticated {
		record, err := identity.RecordOrder(ctx, auth.OrderInput{
			Code:        code,
			Items:       order.Items,
			Subtotal:    totals.Subtotal,
			DeliveryFee: totals.DeliveryFee,
			Total:       totals.Total,
		})
		if err != nil {
			s.logg.Error(ctx, "checkout.history_failed", err)
		}
		receipt.History = record
	}

	s.publish(ctx, order)
	s.metrics.ObserveSubmitted(authenticated, totals.Total.InexactFloat64())

	if req.ClearCart {
		receipt.Cart = basket.RemoveLines(ctx, snapshot.Items)
	} else {
		receipt.Cart = basket.Snapshot()
	}
	s.logg.Info(ctx, "checkout.submitted")
	return receipt, nil
}

// publish hands the order event to the publisher without holding up the
// shopper. The publish outlives the request context but not the timeout.
func (s *service) publish(ctx context.Context, order Order) {
	envelope, err := events.NewEnvelope(events.TypeOrderSubmitted, order.Code, order.Timestamp, order)
	if err != nil {
		s.logg.Error(ctx, "checkout.event_encode_failed", err)
		return
	}
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		if err := s.publisher.Publish(publishCtx, envelope); err != nil {
			s.logg.Error(publishCtx, "checkout.event_publish_failed", err)
		}
	}()
}

func (s *service) Wait() {
	s.inflight.Wait()
}

func (s *service) appendAdminLog(ctx context.Context, order Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders, err := s.adminLog(ctx)
	if err != nil {
		return err
	}
	orders = append([]Order{order}, orders...)
	limit := s.cfg.AdminOrderLogLimit
	if limit <= 0 {
		limit = defaultAdminLogLimit
	}
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return kv.SetJSON(ctx, s.store, kv.KeyAdminOrders, orders)
}

// adminLog reads the shop's order log; a corrupt log reads as empty.
func (s *service) adminLog(ctx context.Context) ([]Order, error) {
	var orders []Order
	if _, err := kv.GetJSON(ctx, s.store, kv.KeyAdminOrders, &orders); err != nil {
		if !pkgerrors.IsCode(err, pkgerrors.CodeCorruptData) {
			return nil, err
		}
		s.logg.Error(s.logg.WithKey(ctx, kv.KeyAdminOrders), "checkout.admin_log_corrupt", err)
		return []Order{}, nil
	}
	if orders == nil {
		orders = []Order{}
	}
	return orders, nil
}

// AdminOrders returns the newest orders first, up to limit (0 means all).
func (s *service) AdminOrders(ctx context.Context, limit int) ([]Order, error) {
	orders, err := s.adminLog(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

// FindOrder looks code up in the admin order log.
func (s *service) FindOrder(ctx context.Context, code string) (*Order, error) {
	code = strings.TrimSpace(code)
	orders, err := s.adminLog(ctx)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].Code == code {
			return &orders[i], nil
		}
	}
	return nil, orderNotFound(code)
}

func orderNotFound(code string) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "order not found").
		WithDetails(map[string]any{"code": code})
}
