// Package notify sends order emails to the customer and to a staff member
// chosen through a fallback chain of recipient lookups.
package notify

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront-admin/internal/domain/order"
	"github.com/xenking/storefront-admin/internal/domain/user"
	"github.com/xenking/storefront-admin/internal/events"
	"github.com/xenking/storefront-admin/internal/mail"
)

// ErrNoRecipient is returned when no resolver yields a staff recipient.
var ErrNoRecipient = errors.New("no staff recipient")

// OrderFinder loads submitted orders.
type OrderFinder interface {
	GetByID(ctx context.Context, id int64) (*order.Order, error)
}

// UserFinder looks up users for recipient resolution.
type UserFinder interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	FindByEmail(ctx context.Context, email string) (*user.User, error)
	FirstByRole(ctx context.Context, role user.Role) (*user.User, error)
}

// Renderer builds order emails.
type Renderer interface {
	OrderConfirmation(o mail.OrderSummary) (mail.Message, error)
	OrderNotification(o mail.OrderSummary) (mail.Message, error)
}

// Config holds non-dependency settings for the Dispatcher.
type Config struct {
	// OrdersEmail is the staff member in charge of orders.
	OrdersEmail string
	// DefaultEmail is the general staff contact.
	DefaultEmail string
	// Shipping is shown in order emails.
	Shipping      decimal.Decimal
	MeterProvider metric.MeterProvider
}

// Dispatcher sends the order submitted emails.
type Dispatcher struct {
	orders    OrderFinder
	users     UserFinder
	renderer  Renderer
	sender    mail.Sender
	resolvers []Resolver
	shipping  decimal.Decimal
	lg        *zap.Logger

	sent   metric.Int64Counter
	failed metric.Int64Counter
}

// NewDispatcher creates a Dispatcher resolving staff through OrdersEmail,
// then DefaultEmail, then the first super user.
func NewDispatcher(
	lg *zap.Logger,
	orders OrderFinder,
	users UserFinder,
	renderer Renderer,
	sender mail.Sender,
	cfg Config,
) *Dispatcher {
	mp := cfg.MeterProvider
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	meter := mp.Meter("github.com/xenking/storefront-admin/internal/domain/notify")
	sent, _ := meter.Int64Counter("notifications.sent", metric.WithDescription("Order emails delivered"))
	failed, _ := meter.Int64Counter("notifications.failed", metric.WithDescription("Order emails that could not be delivered"))

	return &Dispatcher{
		orders:   orders,
		users:    users,
		renderer: renderer,
		sender:   sender,
		resolvers: []Resolver{
			ByEmail("orders", cfg.OrdersEmail, users),
			ByEmail("default", cfg.DefaultEmail, users),
			FirstSuperUser(users),
		},
		shipping: cfg.Shipping,
		lg:       lg,
		sent:     sent,
		failed:   failed,
	}
}

// OrderSubmitted sends the customer confirmation and the staff notification
// for ev. Recipient misses are logged as warnings. Delivery failures are
// logged and not returned; the order stays submitted either way.
func (d *Dispatcher) OrderSubmitted(ctx context.Context, ev events.OrderSubmitted) error {
	lg := d.lg.With(zap.Int64("order_id", ev.OrderID))

	o, err := d.orders.GetByID(ctx, ev.OrderID)
	if err != nil {
		return errors.Wrap(err, "load order")
	}
	customer, err := d.users.GetByID(ctx, o.UserID)
	if err != nil {
		return errors.Wrap(err, "load customer")
	}
	staff, err := Resolve(ctx, lg, d.resolvers)
	if err != nil {
		return err
	}

	summary := Summarize(o, d.shipping)
	d.deliver(ctx, lg, "confirmation", *customer, summary, d.renderer.OrderConfirmation)
	d.deliver(ctx, lg, "notification", *staff, summary, d.renderer.OrderNotification)
	return nil
}

func (d *Dispatcher) deliver(
	ctx context.Context,
	lg *zap.Logger,
	kind string,
	to user.User,
	summary mail.OrderSummary,
	render func(mail.OrderSummary) (mail.Message, error),
) {
	attrs := metric.WithAttributes(attribute.String("mail.kind", kind))

	msg, err := render(summary)
	if err == nil {
		err = d.sender.Send(ctx, mail.Address{Name: to.Name, Email: to.Email}, msg)
	}
	if err != nil {
		d.failed.Add(ctx, 1, attrs)
		lg.Error("An error occurred while sending new order emails",
			zap.String("kind", kind),
			zap.String("to", to.Email),
			zap.Error(err),
			zap.Stack("stack"),
		)
		return
	}
	d.sent.Add(ctx, 1, attrs)
}

// Summarize formats o for order emails.
func Summarize(o *order.Order, shipping decimal.Decimal) mail.OrderSummary {
	t := o.Totals().Rounded()
	lines := make([]mail.OrderLine, len(o.Items))
	for i, it := range o.Items {
		name := it.ProductName
		if name == "" {
			name = fmt.Sprintf("Product #%d", it.ProductID)
		}
		lines[i] = mail.OrderLine{
			Name:      name,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.StringFixed(2),
			LineTotal: it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))).StringFixed(2),
		}
	}
	return mail.OrderSummary{
		OrderID:      o.ID,
		CustomerName: o.Billing.FullName(),
		Email:        o.Billing.Email,
		Phone:        o.Billing.Phone,
		Company:      o.Billing.Company,
		Address1:     o.Billing.Address1,
		Address2:     o.Billing.Address2,
		City:         o.Billing.City,
		Zip:          o.Billing.Zip,
		Country:      o.Billing.Country,
		CouponCode:   o.CouponCode,
		Lines:        lines,
		Cost:         t.Cost.StringFixed(2),
		Shipping:     shipping.StringFixed(2),
		Discount:     t.Discount.StringFixed(2),
		Total:        t.Total.StringFixed(2),
	}
}
