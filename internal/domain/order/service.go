package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront-admin/internal/domain/coupon"
	"github.com/xenking/storefront-admin/internal/domain/product"
	"github.com/xenking/storefront-admin/internal/events"
	"github.com/xenking/storefront-admin/internal/validate"
)

// ErrEmptyItems is returned when an order has no line items.
var ErrEmptyItems = errors.New("items required")

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// ProductFinder batch-loads products for pricing.
type ProductFinder interface {
	GetByIDs(ctx context.Context, ids []int64) ([]product.Product, error)
}

// CouponResolver resolves a user-entered code to a rule. An empty code
// resolves to a nil rule.
type CouponResolver interface {
	Resolve(ctx context.Context, code string) (*coupon.Rule, error)
}

// Transactor runs fn inside a database transaction carried by ctx.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Publisher announces committed orders.
type Publisher interface {
	PublishOrderSubmitted(ctx context.Context, ev events.OrderSubmitted) error
}

// ItemRequest is a requested product and quantity.
type ItemRequest struct {
	ProductID int64
	Quantity  int
}

// SubmitRequest holds the input for submitting an order.
type SubmitRequest struct {
	UserID     int64
	Billing    Billing
	Items      []ItemRequest
	CouponCode string
}

// UpdateRequest changes an existing order. Nil fields are left unchanged;
// an empty CouponCode removes the coupon.
type UpdateRequest struct {
	Items      []ItemRequest
	CouponCode *string
}

// Config holds non-dependency settings for the Service.
type Config struct {
	Pricing        Pricing
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Service encapsulates order submission and maintenance.
type Service struct {
	products  ProductFinder
	coupons   CouponResolver
	orders    Repository
	tx        Transactor
	publisher Publisher
	pricing   Pricing
	now       func() time.Time

	tracer    trace.Tracer
	submitted metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products ProductFinder,
	coupons CouponResolver,
	orders Repository,
	tx Transactor,
	publisher Publisher,
	cfg Config,
) *Service {
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}

	const name = "github.com/xenking/storefront-admin/internal/domain/order"
	submitted, _ := cfg.MeterProvider.Meter(name).Int64Counter("orders.submitted",
		metric.WithDescription("Orders committed by Submit"),
	)

	return &Service{
		products:  products,
		coupons:   coupons,
		orders:    orders,
		tx:        tx,
		publisher: publisher,
		pricing:   cfg.Pricing,
		now:       time.Now,
		tracer:    cfg.TracerProvider.Tracer(name),
		submitted: submitted,
	}
}

// Submit validates the request, prices and persists the order in one
// transaction, then publishes OrderSubmitted. A publish failure is logged
// and does not fail the submission.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Submit")
	defer span.End()

	items, err := normalizeItems(req.Items)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(req.Billing); err != nil {
		return nil, err
	}

	o := &Order{
		UserID:  req.UserID,
		Billing: req.Billing,
	}
	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.price(ctx, o, items, req.CouponCode); err != nil {
			return err
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", o.ID))
	s.submitted.Add(ctx, 1)

	ev := events.OrderSubmitted{OrderID: o.ID, UserID: o.UserID, SubmittedAt: o.CreatedAt}
	if err := s.publisher.PublishOrderSubmitted(ctx, ev); err != nil {
		zctx.From(ctx).Warn("Order submitted event not published",
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}

	return o, nil
}

// Update applies req to order id, reprices it with current product prices,
// and persists it.
func (s *Service) Update(ctx context.Context, id int64, req UpdateRequest) (*Order, error) {
	ctx, span := s.tracer.Start(ctx, "order.Update",
		trace.WithAttributes(attribute.Int64("order.id", id)),
	)
	defer span.End()

	var o *Order
	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		o, err = s.orders.GetByID(ctx, id)
		if err != nil {
			return err
		}

		var items []ItemRequest
		if req.Items != nil {
			items, err = normalizeItems(req.Items)
			if err != nil {
				return err
			}
		} else {
			items = make([]ItemRequest, len(o.Items))
			for i, it := range o.Items {
				items[i] = ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
			}
		}

		code := o.CouponCode
		if req.CouponCode != nil {
			code = *req.CouponCode
		}

		if err := s.price(ctx, o, items, code); err != nil {
			return err
		}
		if err := s.orders.Update(ctx, o); err != nil {
			return errors.Wrap(err, "update order")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	return o, nil
}

// Get returns the order with the given id.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// price loads current product prices and the coupon rule, sets the order's
// items and coupon, and recomputes its totals.
func (s *Service) price(ctx context.Context, o *Order, items []ItemRequest, code string) error {
	ids := make([]int64, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}
	byID := make(map[int64]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	lines := make([]LineItem, len(items))
	for i, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			return &ProductNotFoundError{ProductID: it.ProductID}
		}
		lines[i] = LineItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    it.Quantity,
			UnitPrice:   p.Price,
		}
	}

	rule, err := s.coupons.Resolve(ctx, code)
	if err != nil {
		return err
	}

	o.Items = lines
	o.CouponCode = ""
	if rule != nil {
		o.CouponCode = rule.Code
	}
	o.Reprice(rule, s.now(), s.pricing)
	return nil
}

// normalizeItems rejects empty orders and non-positive quantities, and
// merges repeated products into one line in first-seen order.
func normalizeItems(items []ItemRequest) ([]ItemRequest, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}

	out := make([]ItemRequest, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: it.ProductID}
		}
		if i, ok := index[it.ProductID]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}
