package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Ref is a named row of a reference table (category, type, vendor, unit).
type Ref struct {
	ID   int64
	Name string
	// Label is the short unit symbol. Only units carry one.
	Label string
}

// Unit is how a product's quantity is measured: either a reference to a
// predefined unit or a custom label and name entered with the product.
type Unit struct {
	ID    int64
	Label string
	Name  string
}

// OwnerKind names the kind of entity an image belongs to.
type OwnerKind string

const (
	OwnerProduct OwnerKind = "product"
	OwnerPackage OwnerKind = "package"
)

// Owner identifies the entity an image is attached to.
type Owner struct {
	Kind OwnerKind
	ID   int64
}

// Image is a stored picture attached to an owner. URL is derived from Path
// by the blob store and is not persisted.
type Image struct {
	ID        int64
	Path      string
	Owner     Owner
	URL       string
	CreatedAt time.Time
}

// Product is a catalog item.
type Product struct {
	ID          int64
	Name        string
	Description string
	Category    Ref
	Type        Ref
	Vendor      Ref
	CustomUnit  bool
	Unit        Unit
	Price       decimal.Decimal
	Quantity    int
	Images      []Image
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository defines persistence operations for products. List and the Get
// methods return products with Category, Type, Vendor and Unit names
// populated and Images nil.
type Repository interface {
	// List returns all products ordered by name.
	List(ctx context.Context) ([]Product, error)
	// GetByID returns ErrNotFound when no product has the given id.
	GetByID(ctx context.Context, id int64) (*Product, error)
	// GetByIDs returns the products that exist among ids, in no particular order.
	GetByIDs(ctx context.Context, ids []int64) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	// Update returns ErrNotFound when no product has p.ID.
	Update(ctx context.Context, p *Product) error
	// Delete returns ErrNotFound when no product has the given id.
	Delete(ctx context.Context, id int64) error
}

// ImageRepository persists image rows for any owner kind.
type ImageRepository interface {
	Create(ctx context.Context, img *Image) error
	// ListByOwners returns images of all given owners, oldest first.
	ListByOwners(ctx context.Context, kind OwnerKind, ids []int64) ([]Image, error)
	// DeleteByOwner removes and returns all images of owner.
	DeleteByOwner(ctx context.Context, owner Owner) ([]Image, error)
}

// RefKind names a reference table.
type RefKind string

const (
	RefCategory RefKind = "category"
	RefType     RefKind = "type"
	RefVendor   RefKind = "vendor"
	RefUnit     RefKind = "unit"
)

// ReferenceRepository reads reference tables.
type ReferenceRepository interface {
	// List returns all rows of kind ordered by name.
	List(ctx context.Context, kind RefKind) ([]Ref, error)
	Exists(ctx context.Context, kind RefKind, id int64) (bool, error)
}
