package notify

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xenking/storefront-admin/internal/domain/coupon"
	"github.com/xenking/storefront-admin/internal/domain/order"
	"github.com/xenking/storefront-admin/internal/domain/user"
	"github.com/xenking/storefront-admin/internal/events"
	"github.com/xenking/storefront-admin/internal/mail"
)

// --- Mock implementations ---

type mockUsers struct {
	byID    map[int64]*user.User
	byEmail map[string]*user.User
	super   *user.User
	err     error
}

func (m *mockUsers) GetByID(_ context.Context, id int64) (*user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *mockUsers) FindByEmail(_ context.Context, email string) (*user.User, error) {
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	return u, nil
}

func (m *mockUsers) FirstByRole(_ context.Context, role user.Role) (*user.User, error) {
	if m.super == nil || role != user.RoleSuper {
		return nil, user.ErrNotFound
	}
	return m.super, nil
}

type mockOrders struct {
	byID map[int64]*order.Order
}

func (m *mockOrders) GetByID(_ context.Context, id int64) (*order.Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return o, nil
}

type sentMail struct {
	to  mail.Address
	msg mail.Message
}

type mockSender struct {
	sent    []sentMail
	failFor map[string]error
}

func (m *mockSender) Send(_ context.Context, to mail.Address, msg mail.Message) error {
	if err := m.failFor[to.Email]; err != nil {
		return err
	}
	m.sent = append(m.sent, sentMail{to: to, msg: msg})
	return nil
}

// --- Helpers ---

var (
	customer    = &user.User{ID: 7, Name: "Ada", Email: "ada@example.com", Role: user.RoleCustomer}
	ordersStaff = &user.User{ID: 2, Name: "Orders", Email: "orders@shop.test", Role: user.RoleAdmin}
	defaultStaf = &user.User{ID: 3, Name: "Front desk", Email: "hello@shop.test", Role: user.RoleAdmin}
	superUser   = &user.User{ID: 1, Name: "Root", Email: "root@shop.test", Role: user.RoleSuper}
)

func testOrder() *order.Order {
	d := decimal.RequireFromString
	o := &order.Order{
		ID:     55,
		UserID: customer.ID,
		Billing: order.Billing{
			FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
			Address1: "1 Analytical St", City: "London", Zip: "N1", Country: "UK", Phone: "123",
		},
		Items: []order.LineItem{
			{ProductID: 1, ProductName: "Widget", Quantity: 2, UnitPrice: d("10.00")},
			{ProductID: 2, Quantity: 1, UnitPrice: d("5.00")},
		},
		CouponCode: "TEN",
	}
	o.Reprice(&coupon.Rule{Code: "TEN", Type: coupon.TypePercent, Amount: d("10")}, time.Now(), order.DefaultPricing())
	return o
}

type fixture struct {
	dispatcher *Dispatcher
	users      *mockUsers
	sender     *mockSender
	logs       *observer.ObservedLogs
}

func newFixture(t *testing.T, users *mockUsers) *fixture {
	t.Helper()
	tpl, err := mail.NewTemplates()
	require.NoError(t, err)

	if users.byID == nil {
		users.byID = map[int64]*user.User{}
	}
	users.byID[customer.ID] = customer

	core, logs := observer.New(zapcore.DebugLevel)
	sender := &mockSender{failFor: map[string]error{}}
	d := NewDispatcher(zap.New(core),
		&mockOrders{byID: map[int64]*order.Order{55: testOrder()}},
		users, tpl, sender,
		Config{OrdersEmail: ordersStaff.Email, DefaultEmail: defaultStaf.Email, Shipping: order.DefaultShipping},
	)
	return &fixture{dispatcher: d, users: users, sender: sender, logs: logs}
}

func recipients(s *mockSender) []string {
	out := make([]string, len(s.sent))
	for i, m := range s.sent {
		out[i] = m.to.Email
	}
	return out
}

func warnings(logs *observer.ObservedLogs) int {
	return logs.FilterLevelExact(zapcore.WarnLevel).Len()
}

// --- Tests ---

func TestOrderSubmitted_RecipientFallback(t *testing.T) {
	tests := []struct {
		name         string
		users        *mockUsers
		wantStaff    string
		wantWarnings int
	}{
		{
			name: "orders email found",
			users: &mockUsers{
				byEmail: map[string]*user.User{ordersStaff.Email: ordersStaff, defaultStaf.Email: defaultStaf},
				super:   superUser,
			},
			wantStaff:    ordersStaff.Email,
			wantWarnings: 0,
		},
		{
			name: "orders email missing, default found",
			users: &mockUsers{
				byEmail: map[string]*user.User{defaultStaf.Email: defaultStaf},
				super:   superUser,
			},
			wantStaff:    defaultStaf.Email,
			wantWarnings: 2,
		},
		{
			name:         "both emails missing, super user found",
			users:        &mockUsers{byEmail: map[string]*user.User{}, super: superUser},
			wantStaff:    superUser.Email,
			wantWarnings: 3,
		},
		{
			name:         "lookup errors fall through",
			users:        &mockUsers{err: errors.New("db timeout"), super: superUser},
			wantStaff:    superUser.Email,
			wantWarnings: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.users)

			err := f.dispatcher.OrderSubmitted(context.Background(), events.OrderSubmitted{OrderID: 55})
			require.NoError(t, err)

			assert.Equal(t, []string{customer.Email, tt.wantStaff}, recipients(f.sender))
			assert.Equal(t, tt.wantWarnings, warnings(f.logs))
		})
	}
}

func TestOrderSubmitted_NoRecipient(t *testing.T) {
	f := newFixture(t, &mockUsers{byEmail: map[string]*user.User{}})

	err := f.dispatcher.OrderSubmitted(context.Background(), events.OrderSubmitted{OrderID: 55})
	require.ErrorIs(t, err, ErrNoRecipient)
	assert.Empty(t, f.sender.sent)
	assert.Equal(t, 3, warnings(f.logs))
}

func TestOrderSubmitted_Subjects(t *testing.T) {
	f := newFixture(t, &mockUsers{byEmail: map[string]*user.User{ordersStaff.Email: ordersStaff}})

	require.NoError(t, f.dispatcher.OrderSubmitted(context.Background(), events.OrderSubmitted{OrderID: 55}))

	require.Len(t, f.sender.sent, 2)
	assert.Equal(t, "Please confirm details of order #55", f.sender.sent[0].msg.Subject)
	assert.Equal(t, "New order #55 submitted", f.sender.sent[1].msg.Subject)
	assert.Contains(t, f.sender.sent[0].msg.Text, "Total: 40.50")
}

func TestOrderSubmitted_SendFailureIsSwallowed(t *testing.T) {
	f := newFixture(t, &mockUsers{byEmail: map[string]*user.User{ordersStaff.Email: ordersStaff}})
	f.sender.failFor[customer.Email] = errors.New("mailbox unavailable")

	err := f.dispatcher.OrderSubmitted(context.Background(), events.OrderSubmitted{OrderID: 55})
	require.NoError(t, err)

	// The staff mail still goes out.
	assert.Equal(t, []string{ordersStaff.Email}, recipients(f.sender))

	errs := f.logs.FilterLevelExact(zapcore.ErrorLevel).All()
	require.Len(t, errs, 1)
	assert.Equal(t, "An error occurred while sending new order emails", errs[0].Message)
	assert.Equal(t, customer.Email, errs[0].ContextMap()["to"])
}

func TestOrderSubmitted_UnknownOrder(t *testing.T) {
	f := newFixture(t, &mockUsers{super: superUser})

	err := f.dispatcher.OrderSubmitted(context.Background(), events.OrderSubmitted{OrderID: 999})
	require.ErrorIs(t, err, order.ErrNotFound)
	assert.Empty(t, f.sender.sent)
}

func TestResolve_EmptyEmailMisses(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	users := &mockUsers{byEmail: map[string]*user.User{"": ordersStaff}, super: superUser}

	u, err := Resolve(context.Background(), zap.New(core), []Resolver{
		ByEmail("orders", "", users),
		FirstSuperUser(users),
	})
	require.NoError(t, err)
	assert.Equal(t, superUser.Email, u.Email)
	assert.Equal(t, 2, logs.Len())
}

func TestSummarize(t *testing.T) {
	s := Summarize(testOrder(), order.DefaultShipping)

	assert.Equal(t, int64(55), s.OrderID)
	assert.Equal(t, "Ada Lovelace", s.CustomerName)
	assert.Equal(t, "25.00", s.Cost)
	assert.Equal(t, "18.00", s.Shipping)
	assert.Equal(t, "2.50", s.Discount)
	assert.Equal(t, "40.50", s.Total)
	require.Len(t, s.Lines, 2)
	assert.Equal(t, "20.00", s.Lines[0].LineTotal)
	assert.Equal(t, "Product #2", s.Lines[1].Name)
}
