package handler

import (
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-admin/internal/domain/product"
	"github.com/xenking/storefront-admin/internal/validate"
)

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	list, err := h.catalog.List(r.Context())
	if err != nil {
		h.fail(w, r, err, msgUnexpected)
		return
	}
	writeJSON(w, http.StatusOK, productsBody(list))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.fail(w, r, product.ErrNotFound, msgUnexpected)
		return
	}
	p, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, msgUnexpected)
		return
	}
	writeJSON(w, http.StatusOK, productBody{p})
}

func (h *Handler) formOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := h.catalog.FormOptions(r.Context())
	if err != nil {
		h.fail(w, r, err, msgUnexpected)
		return
	}
	writeJSON(w, http.StatusOK, formOptionsBody{opts})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	in, cleanup, err := h.parseProductForm(w, r)
	defer cleanup()
	if err != nil {
		h.fail(w, r, err, msgProductNotSaved)
		return
	}
	p, err := h.catalog.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err, msgProductNotSaved)
		return
	}
	h.done(w, r, http.StatusCreated, "Product was created successfully.", productBody{p})
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.fail(w, r, product.ErrNotFound, msgProductNotUpdate)
		return
	}
	in, cleanup, err := h.parseProductForm(w, r)
	defer cleanup()
	if err != nil {
		h.fail(w, r, err, msgProductNotUpdate)
		return
	}
	p, err := h.catalog.Update(r.Context(), id, in)
	if err != nil {
		h.fail(w, r, err, msgProductNotUpdate)
		return
	}
	h.done(w, r, http.StatusOK, "Product was updated successfully.", productBody{p})
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.fail(w, r, product.ErrNotFound, msgProductNotDelete)
		return
	}
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err, msgProductNotDelete)
		return
	}
	h.done(w, r, http.StatusNoContent, "Product was deleted successfully.", nil)
}

// parseProductForm reads a multipart or urlencoded catalog form. Values
// that cannot be parsed are reported as field errors; absent values stay
// nil for the service to reject.
func (h *Handler) parseProductForm(w http.ResponseWriter, r *http.Request) (product.Input, func(), error) {
	cleanup := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(h.maxUpload)
		if r.MultipartForm != nil {
			cleanup = func() { _ = r.MultipartForm.RemoveAll() }
		}
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		var perr validate.Errors
		perr.Add("form", "The form could not be read.")
		return product.Input{}, cleanup, perr.Err()
	}

	var (
		in   product.Input
		verr validate.Errors
		get  = func(key string) (string, bool) {
			v, ok := r.PostForm[key]
			if !ok || len(v) == 0 || strings.TrimSpace(v[0]) == "" {
				return "", false
			}
			return strings.TrimSpace(v[0]), true
		}
		parseID = func(key string) *int64 {
			s, ok := get(key)
			if !ok {
				return nil
			}
			id, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				verr.Add(key, "selected "+key+" is invalid")
				return nil
			}
			return &id
		}
	)

	if s, ok := get("name"); ok {
		in.Name = &s
	}
	in.Description, _ = get("description")
	in.CategoryID = parseID("category_id")
	in.TypeID = parseID("type_id")
	in.VendorID = parseID("vendor_id")
	in.UnitID = parseID("unit_id")
	in.UnitLabel, _ = get("unit_label")
	in.UnitName, _ = get("unit_name")

	if s, ok := get("custom_unit"); ok {
		b, err := parseBool(s)
		if err != nil {
			verr.Add("custom_unit", "custom_unit field must be true or false")
		} else {
			in.CustomUnit = &b
		}
	}
	if s, ok := get("price"); ok {
		d, err := decimal.NewFromString(s)
		if err != nil {
			verr.Add("price", "price must be a number")
		} else {
			in.Price = &d
		}
	}
	if s, ok := get("quantity"); ok {
		n, err := strconv.Atoi(s)
		if err != nil {
			verr.Add("quantity", "quantity must be an integer")
		} else {
			in.Quantity = &n
		}
	}

	f, hdr, err := formImage(r)
	switch {
	case err != nil:
		verr.Add("image", "image could not be read")
	case f != nil:
		removeAll := cleanup
		cleanup = func() {
			_ = f.Close()
			removeAll()
		}
		in.Image = &product.Upload{Filename: hdr.Filename, Size: hdr.Size, Body: f}
	}

	return in, cleanup, verr.Err()
}

// formImage returns the uploaded image file, or nil when none was sent.
func formImage(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	if r.MultipartForm == nil {
		return nil, nil, nil
	}
	f, hdr, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	return f, hdr, err
}

// parseBool accepts HTML checkbox values in addition to strconv forms.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	return strconv.ParseBool(s)
}
