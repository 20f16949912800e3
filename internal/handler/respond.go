package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-admin/internal/domain/auth"
	"github.com/xenking/storefront-admin/internal/domain/coupon"
	"github.com/xenking/storefront-admin/internal/domain/order"
	"github.com/xenking/storefront-admin/internal/domain/product"
	"github.com/xenking/storefront-admin/internal/storage/blob"
	"github.com/xenking/storefront-admin/internal/validate"
)

// User-facing messages. Internal error text never reaches the client.
const (
	msgUploadFailed     = "Image could not be uploaded. Support staff have been notified"
	msgProductNotSaved  = "Product could not be saved. Support staff have been notified"
	msgProductNotUpdate = "Product could not be updated. Support staff have been notified"
	msgProductNotDelete = "Product could not be deleted. Support staff have been notified"
	msgProductNotFound  = "Specified product could not be found."
	msgOrderNotFound    = "Specified order could not be found."
	msgOrderFailed      = "Order could not be processed. Support staff have been notified"
	msgUnexpected       = "Request could not be processed. Support staff have been notified"
	msgInvalidCoupon    = "The coupon code is invalid."
	msgUnauthorized     = "Authentication required."
	msgForbidden        = "You are not allowed to perform this action."
	msgBadCredentials   = "These credentials do not match our records."
)

// apiError is the JSON error body {code, message[, fields]}.
type apiError struct {
	Code    int
	Message string
	Fields  []validate.FieldError
}

func (a apiError) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("code")
	e.Int(a.Code)
	e.FieldStart("message")
	e.Str(a.Message)
	if len(a.Fields) > 0 {
		e.FieldStart("fields")
		e.ObjStart()
		for _, f := range a.Fields {
			e.FieldStart(f.Field)
			e.Str(f.Message)
		}
		e.ObjEnd()
	}
	e.ObjEnd()
}

// classify maps err to a client response. Unexpected errors get failMsg.
func classify(err error, failMsg string) (apiError, bool) {
	var (
		verr *validate.Errors
		pnf  *order.ProductNotFoundError
		qty  *order.InvalidQuantityError
		up   *blob.UploadError
	)
	switch {
	case errors.As(err, &verr):
		return apiError{Code: http.StatusUnprocessableEntity, Message: verr.First(), Fields: verr.Fields}, false
	case errors.Is(err, product.ErrNotFound):
		return apiError{Code: http.StatusNotFound, Message: msgProductNotFound}, false
	case errors.Is(err, order.ErrNotFound):
		return apiError{Code: http.StatusNotFound, Message: msgOrderNotFound}, false
	case errors.Is(err, coupon.ErrInvalidCoupon):
		return apiError{
			Code:    http.StatusUnprocessableEntity,
			Message: msgInvalidCoupon,
			Fields:  []validate.FieldError{{Field: "coupon_code", Message: msgInvalidCoupon}},
		}, false
	case errors.Is(err, order.ErrEmptyItems):
		return apiError{Code: http.StatusUnprocessableEntity, Message: "At least one item is required."}, false
	case errors.As(err, &pnf), errors.As(err, &qty):
		return apiError{Code: http.StatusUnprocessableEntity, Message: err.Error()}, false
	case errors.Is(err, auth.ErrInvalidCredentials):
		return apiError{Code: http.StatusUnauthorized, Message: msgBadCredentials}, false
	case errors.Is(err, auth.ErrUnauthorized):
		return apiError{Code: http.StatusUnauthorized, Message: msgUnauthorized}, false
	case errors.Is(err, auth.ErrForbidden):
		return apiError{Code: http.StatusForbidden, Message: msgForbidden}, false
	case errors.As(err, &up):
		return apiError{Code: http.StatusInternalServerError, Message: msgUploadFailed}, true
	default:
		return apiError{Code: http.StatusInternalServerError, Message: failMsg}, true
	}
}

// fail reports err to the client. Browser form posts are redirected back
// with a flash message; API clients get a JSON error.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, failMsg string) {
	res, unexpected := classify(err, failMsg)
	if unexpected {
		zctx.From(r.Context()).Error(res.Message,
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
			zap.Stack("stack"),
		)
	}

	if wantsHTML(r) && res.Code != http.StatusUnauthorized {
		setFlash(w, flash{Level: flashError, Message: res.Message})
		http.Redirect(w, r, back(r, h.listURL), http.StatusSeeOther)
		return
	}
	writeJSON(w, res.Code, res)
}

// done reports a successful write. Browser form posts are redirected to
// the product list with a flash message.
func (h *Handler) done(w http.ResponseWriter, r *http.Request, status int, message string, body interface{ Encode(*jx.Encoder) }) {
	if wantsHTML(r) {
		setFlash(w, flash{Level: flashSuccess, Message: message})
		http.Redirect(w, r, h.listURL, http.StatusSeeOther)
		return
	}
	if body == nil {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{ Encode(*jx.Encoder) }) {
	var e jx.Encoder
	v.Encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// wantsHTML reports whether r comes from a browser form rather than an API
// client.
func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// back returns the same-origin Referer path of r, or fallback.
func back(r *http.Request, fallback string) string {
	ref := r.Referer()
	if ref == "" {
		return fallback
	}
	if strings.HasPrefix(ref, "/") && !strings.HasPrefix(ref, "//") {
		return ref
	}
	host := "://" + r.Host + "/"
	if i := strings.Index(ref, host); i > 0 && i <= len("https") {
		return ref[i+len(host)-1:]
	}
	return fallback
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}
