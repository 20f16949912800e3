package product

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/storefront-admin/internal/storage/blob"
	"github.com/xenking/storefront-admin/internal/validate"
)

// Upload is an image file attached to a catalog write.
type Upload struct {
	Filename string
	Size     int64
	Body     io.ReadSeeker
}

// Input is the catalog create/update form. Pointer fields distinguish a
// missing value from a zero value.
type Input struct {
	Name        *string          `form:"name" validate:"required,max=255"`
	CategoryID  *int64           `form:"category_id" validate:"required"`
	CustomUnit  *bool            `form:"custom_unit" validate:"required"`
	Description string           `form:"description"`
	Price       *decimal.Decimal `form:"price" validate:"required,gte=0,lte=999999"`
	Quantity    *int             `form:"quantity" validate:"required,gte=0,lte=999999"`
	TypeID      *int64           `form:"type_id" validate:"required"`
	UnitID      *int64           `form:"unit_id"`
	UnitLabel   string           `form:"unit_label" validate:"required_without=UnitID,max=32"`
	UnitName    string           `form:"unit_name" validate:"required_without=UnitID,max=255"`
	VendorID    *int64           `form:"vendor_id" validate:"required"`
	Image       *Upload          `form:"image" validate:"-"`
}

// FormOptions lists the selectable references of the product form.
type FormOptions struct {
	Categories []Ref
	Types      []Ref
	Vendors    []Ref
	Units      []Ref
}

// Transactor runs fn inside a database transaction carried by ctx.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Service implements catalog CRUD. Product rows, image rows, and image
// uploads of one write commit or fail together.
type Service struct {
	products Repository
	images   ImageRepository
	refs     ReferenceRepository
	store    blob.Store
	tx       Transactor

	uploadsFailed metric.Int64Counter
}

// NewService creates a catalog Service. A nil meter provider disables metrics.
func NewService(
	products Repository,
	images ImageRepository,
	refs ReferenceRepository,
	store blob.Store,
	tx Transactor,
	mp metric.MeterProvider,
) *Service {
	if mp == nil {
		mp = metricnoop.NewMeterProvider()
	}
	failed, _ := mp.Meter("github.com/xenking/storefront-admin/internal/domain/product").
		Int64Counter("catalog.uploads.failed", metric.WithDescription("Product image uploads that failed"))

	return &Service{
		products:      products,
		images:        images,
		refs:          refs,
		store:         store,
		tx:            tx,
		uploadsFailed: failed,
	}
}

// List returns all products ordered by name with their images.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	list, err := s.products.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	if err := s.loadImages(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Get returns one product with its images, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	p, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	one := []Product{*p}
	if err := s.loadImages(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// FormOptions returns the references selectable on the product form.
func (s *Service) FormOptions(ctx context.Context) (*FormOptions, error) {
	var opts FormOptions
	for _, f := range []struct {
		kind RefKind
		dst  *[]Ref
	}{
		{RefCategory, &opts.Categories},
		{RefType, &opts.Types},
		{RefVendor, &opts.Vendors},
		{RefUnit, &opts.Units},
	} {
		refs, err := s.refs.List(ctx, f.kind)
		if err != nil {
			return nil, errors.Wrapf(err, "list %s", f.kind)
		}
		*f.dst = refs
	}
	return &opts, nil
}

// Create validates in, inserts the product, and stores its image if one is
// attached. An upload failure rolls the insert back and is returned as
// *blob.UploadError.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	contentType, err := s.check(ctx, in)
	if err != nil {
		return nil, err
	}

	p := &Product{}
	in.apply(p)

	var uploaded string
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.products.Create(ctx, p); err != nil {
			return errors.Wrap(err, "create product")
		}
		uploaded, err = s.attachImage(ctx, p, in.Image, contentType)
		return err
	})
	if err != nil {
		s.discard(ctx, uploaded)
		return nil, err
	}
	return p, nil
}

// Update validates in and overwrites product id. An attached image is
// added to the product's images. Failures roll back as for Create.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Product, error) {
	contentType, err := s.check(ctx, in)
	if err != nil {
		return nil, err
	}

	var (
		p        *Product
		uploaded string
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err = s.products.GetByID(ctx, id)
		if err != nil {
			return err
		}
		in.apply(p)
		if err := s.products.Update(ctx, p); err != nil {
			return errors.Wrap(err, "update product")
		}
		uploaded, err = s.attachImage(ctx, p, in.Image, contentType)
		return err
	})
	if err != nil {
		s.discard(ctx, uploaded)
		return nil, err
	}

	one := []Product{*p}
	if err := s.loadImages(ctx, one); err != nil {
		return nil, err
	}
	return &one[0], nil
}

// Delete removes product id and its image rows, then deletes the stored
// image files. File deletion failures are logged and ignored.
func (s *Service) Delete(ctx context.Context, id int64) error {
	var removed []Image
	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		removed, err = s.images.DeleteByOwner(ctx, Owner{Kind: OwnerProduct, ID: id})
		if err != nil {
			return errors.Wrap(err, "delete images")
		}
		return s.products.Delete(ctx, id)
	}); err != nil {
		return err
	}

	for _, img := range removed {
		s.discard(ctx, img.Path)
	}
	return nil
}

// check validates in and returns the sniffed content type of its image.
func (s *Service) check(ctx context.Context, in Input) (string, error) {
	verrs := &validate.Errors{}
	if err := validate.Struct(in); err != nil {
		var fieldErrs *validate.Errors
		if !errors.As(err, &fieldErrs) {
			return "", err
		}
		verrs.Merge(fieldErrs)
	}

	for _, ref := range []struct {
		field string
		kind  RefKind
		id    *int64
	}{
		{"category_id", RefCategory, in.CategoryID},
		{"type_id", RefType, in.TypeID},
		{"unit_id", RefUnit, in.UnitID},
		{"vendor_id", RefVendor, in.VendorID},
	} {
		if ref.id == nil {
			continue
		}
		ok, err := s.refs.Exists(ctx, ref.kind, *ref.id)
		if err != nil {
			return "", errors.Wrapf(err, "check %s", ref.kind)
		}
		if !ok {
			verrs.Add(ref.field, fmt.Sprintf("selected %s is invalid", ref.field))
		}
	}

	var contentType string
	if in.Image != nil {
		mt, err := mimetype.DetectReader(in.Image.Body)
		if err != nil {
			return "", errors.Wrap(err, "detect image type")
		}
		if _, err := in.Image.Body.Seek(0, io.SeekStart); err != nil {
			return "", errors.Wrap(err, "rewind image")
		}
		contentType = mt.String()
		if !strings.HasPrefix(contentType, "image/") {
			verrs.Add("image", "image must be an image")
		}
	}

	if err := verrs.Err(); err != nil {
		return "", err
	}
	return contentType, nil
}

// attachImage uploads up and links it to p, returning the stored path.
func (s *Service) attachImage(ctx context.Context, p *Product, up *Upload, contentType string) (string, error) {
	if up == nil {
		return "", nil
	}

	path, err := s.store.Put(ctx, fmt.Sprintf("products/%d", p.ID), blob.Object{
		Name:        up.Filename,
		ContentType: contentType,
		Size:        up.Size,
		Body:        up.Body,
	})
	if err != nil {
		s.uploadsFailed.Add(ctx, 1)
		return "", err
	}

	img := &Image{Path: path, Owner: Owner{Kind: OwnerProduct, ID: p.ID}}
	if err := s.images.Create(ctx, img); err != nil {
		return path, errors.Wrap(err, "create image")
	}
	img.URL = s.store.URL(path)
	p.Images = append(p.Images, *img)
	return path, nil
}

// discard deletes a stored file that is no longer referenced.
func (s *Service) discard(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := s.store.Delete(ctx, path); err != nil {
		zctx.From(ctx).Warn("Failed to delete stored image",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}

func (s *Service) loadImages(ctx context.Context, list []Product) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	for i := range list {
		ids[i] = list[i].ID
	}

	imgs, err := s.images.ListByOwners(ctx, OwnerProduct, ids)
	if err != nil {
		return errors.Wrap(err, "list images")
	}

	byOwner := make(map[int64][]Image, len(list))
	for _, img := range imgs {
		img.URL = s.store.URL(img.Path)
		byOwner[img.Owner.ID] = append(byOwner[img.Owner.ID], img)
	}
	for i := range list {
		list[i].Images = byOwner[list[i].ID]
	}
	return nil
}

func (in Input) apply(p *Product) {
	p.Name = *in.Name
	p.Description = in.Description
	p.Category = Ref{ID: *in.CategoryID}
	p.Type = Ref{ID: *in.TypeID}
	p.Vendor = Ref{ID: *in.VendorID}
	p.CustomUnit = *in.CustomUnit
	p.Price = *in.Price
	p.Quantity = *in.Quantity
	if in.UnitID != nil {
		p.Unit = Unit{ID: *in.UnitID}
	} else {
		p.Unit = Unit{Label: in.UnitLabel, Name: in.UnitName}
	}
}
