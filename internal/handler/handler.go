// Package handler exposes the catalog, order and login operations over HTTP.
package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-admin/internal/domain/auth"
	"github.com/xenking/storefront-admin/internal/domain/order"
	"github.com/xenking/storefront-admin/internal/domain/product"
	"github.com/xenking/storefront-admin/internal/domain/user"
)

// Catalog is the product service used by the handler.
type Catalog interface {
	List(ctx context.Context) ([]product.Product, error)
	Get(ctx context.Context, id int64) (*product.Product, error)
	FormOptions(ctx context.Context) (*product.FormOptions, error)
	Create(ctx context.Context, in product.Input) (*product.Product, error)
	Update(ctx context.Context, id int64, in product.Input) (*product.Product, error)
	Delete(ctx context.Context, id int64) error
}

// Orders is the order service used by the handler.
type Orders interface {
	Submit(ctx context.Context, req order.SubmitRequest) (*order.Order, error)
	Update(ctx context.Context, id int64, req order.UpdateRequest) (*order.Order, error)
	Get(ctx context.Context, id int64) (*order.Order, error)
}

// Authenticator signs users in and verifies their tokens.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (string, *user.User, error)
	Authenticate(token string) (auth.Principal, error)
}

var (
	_ Catalog       = (*product.Service)(nil)
	_ Orders        = (*order.Service)(nil)
	_ Authenticator = (*auth.Service)(nil)
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ProductListURL is where browser form posts land after a successful
	// catalog write.
	ProductListURL string
	// LoginLimit wraps the login route, typically with a rate limiter.
	LoginLimit func(http.Handler) http.Handler
	// MaxUploadBytes bounds multipart request bodies.
	MaxUploadBytes int64
	// Shipping is reported alongside order totals.
	Shipping decimal.Decimal
}

// Handler serves the /api routes.
type Handler struct {
	catalog Catalog
	orders  Orders
	auth    Authenticator

	listURL    string
	loginLimit func(http.Handler) http.Handler
	maxUpload  int64
	shipping   decimal.Decimal
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg Config, catalog Catalog, orders Orders, authn Authenticator) *Handler {
	if cfg.ProductListURL == "" {
		cfg.ProductListURL = "/api/products"
	}
	if cfg.LoginLimit == nil {
		cfg.LoginLimit = func(next http.Handler) http.Handler { return next }
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		catalog:    catalog,
		orders:     orders,
		auth:       authn,
		listURL:    cfg.ProductListURL,
		loginLimit: cfg.LoginLimit,
		maxUpload:  cfg.MaxUploadBytes,
		shipping:   cfg.Shipping,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.Handle("POST /api/login", h.loginLimit(http.HandlerFunc(h.login)))
	mux.HandleFunc("GET /api/flash", h.popFlash)

	mux.Handle("GET /api/products", h.staff(h.listProducts))
	mux.Handle("GET /api/products/form-options", h.staff(h.formOptions))
	mux.Handle("GET /api/products/{id}", h.staff(h.getProduct))
	mux.Handle("POST /api/products", h.staff(h.createProduct))
	mux.Handle("POST /api/products/{id}", h.staff(h.updateProduct))
	mux.Handle("PUT /api/products/{id}", h.staff(h.updateProduct))
	mux.Handle("DELETE /api/products/{id}", h.staff(h.deleteProduct))

	mux.Handle("POST /api/orders", h.authenticated(h.submitOrder))
	mux.Handle("GET /api/orders/{id}", h.authenticated(h.getOrder))
	mux.Handle("PUT /api/orders/{id}", h.staff(h.updateOrder))
}
