package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xenking/storefront-admin/internal/domain/auth"
	"github.com/xenking/storefront-admin/internal/domain/product"
	"github.com/xenking/storefront-admin/internal/domain/user"
	"github.com/xenking/storefront-admin/internal/storage/postgres"
)

type options struct {
	databaseURL  string
	catalogFile  string
	superEmail   string
	superPass    string
	staffEmail   string
	staffPass    string
	customerMail string
	customerPass string
}

func main() {
	var opts options

	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.catalogFile, "catalog-file", "db/seed/catalog.json", "path to catalog JSON file")
	flag.StringVar(&opts.superEmail, "super-email", "owner@example.com", "email of the super user")
	flag.StringVar(&opts.superPass, "super-password", "", "password of the super user (or SHOP_SEED_SUPER_PASSWORD env)")
	flag.StringVar(&opts.staffEmail, "staff-email", "", "email of an admin user to create")
	flag.StringVar(&opts.staffPass, "staff-password", "", "password of the admin user")
	flag.StringVar(&opts.customerMail, "customer-email", "", "email of a customer user to create")
	flag.StringVar(&opts.customerPass, "customer-password", "", "password of the customer user")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.superPass == "" {
		opts.superPass = os.Getenv("SHOP_SEED_SUPER_PASSWORD")
	}
	switch {
	case opts.databaseURL == "":
		lg.Fatal("database URL is required: set --database-url or DATABASE_URL")
	case opts.superPass == "":
		lg.Fatal("super user password is required: set --super-password or SHOP_SEED_SUPER_PASSWORD")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, opts); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}

	lg.Info("Seed completed successfully")
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	data, err := os.ReadFile(opts.catalogFile)
	if err != nil {
		return errors.Wrap(err, "read catalog file")
	}
	cat, err := parseCatalog(data)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, lg, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return postgres.NewTransactor(pool).WithinTx(ctx, func(ctx context.Context) error {
		if err := seedUsers(ctx, lg, postgres.NewUserRepository(pool), opts); err != nil {
			return errors.Wrap(err, "seed users")
		}
		if err := seedCatalog(ctx, lg, pool, cat); err != nil {
			return errors.Wrap(err, "seed catalog")
		}
		coupons := postgres.NewCouponRepository(pool)
		for _, r := range cat.Coupons {
			if err := coupons.Upsert(ctx, r); err != nil {
				return errors.Wrapf(err, "upsert coupon %s", r.Code)
			}
			lg.Info("Upserted coupon", zap.String("code", r.Code), zap.String("type", string(r.Type)))
		}
		return nil
	})
}

func seedUsers(ctx context.Context, lg *zap.Logger, users *postgres.UserRepository, opts options) error {
	accounts := []struct {
		name, email, password string
		role                  user.Role
	}{
		{"Store Owner", opts.superEmail, opts.superPass, user.RoleSuper},
		{"Store Admin", opts.staffEmail, opts.staffPass, user.RoleAdmin},
		{"Demo Customer", opts.customerMail, opts.customerPass, user.RoleCustomer},
	}
	for _, a := range accounts {
		if a.email == "" || a.password == "" {
			continue
		}
		hash, err := auth.HashPassword(a.password)
		if err != nil {
			return err
		}
		u := &user.User{Name: a.name, Email: a.email, Role: a.role, PasswordHash: hash}
		if err := users.Upsert(ctx, u); err != nil {
			return errors.Wrapf(err, "upsert user %s", a.email)
		}
		lg.Info("Upserted user", zap.Int64("id", u.ID), zap.String("email", u.Email), zap.String("role", string(u.Role)))
	}
	return nil
}

// seedCatalog upserts the reference tables and creates the sample products
// when the catalog is empty.
func seedCatalog(ctx context.Context, lg *zap.Logger, pool *pgxpool.Pool, cat *catalog) error {
	refs := postgres.NewReferenceRepository(pool)
	ids := map[product.RefKind]map[string]int64{}
	upsert := func(kind product.RefKind, ref product.Ref) error {
		if err := refs.Upsert(ctx, kind, &ref); err != nil {
			return err
		}
		if ids[kind] == nil {
			ids[kind] = map[string]int64{}
		}
		key := ref.Name
		if kind == product.RefUnit {
			key = ref.Label
		}
		ids[kind][key] = ref.ID
		return nil
	}

	for kind, names := range map[product.RefKind][]string{
		product.RefCategory: cat.Categories,
		product.RefType:     cat.Types,
		product.RefVendor:   cat.Vendors,
	} {
		for _, name := range names {
			if err := upsert(kind, product.Ref{Name: name}); err != nil {
				return err
			}
		}
	}
	for _, u := range cat.Units {
		if err := upsert(product.RefUnit, product.Ref{Name: u.Name, Label: u.Label}); err != nil {
			return err
		}
	}

	products := postgres.NewProductRepository(pool)
	existing, err := products.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		lg.Info("Catalog already has products, skipping", zap.Int("count", len(existing)))
		return nil
	}

	for _, sp := range cat.Products {
		p := &product.Product{
			Name:        sp.Name,
			Description: sp.Description,
			Category:    product.Ref{ID: ids[product.RefCategory][sp.Category]},
			Type:        product.Ref{ID: ids[product.RefType][sp.Type]},
			Vendor:      product.Ref{ID: ids[product.RefVendor][sp.Vendor]},
			Price:       sp.Price,
			Quantity:    sp.Quantity,
		}
		if sp.Custom != nil {
			p.CustomUnit = true
			p.Unit = product.Unit{Label: sp.Custom.Label, Name: sp.Custom.Name}
		} else {
			p.Unit = product.Unit{ID: ids[product.RefUnit][sp.Unit]}
		}
		if err := products.Create(ctx, p); err != nil {
			return err
		}
		lg.Info("Created product", zap.Int64("id", p.ID), zap.String("name", p.Name))
	}
	return nil
}
