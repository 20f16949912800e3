package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-admin/internal/domain/auth"
	"github.com/xenking/storefront-admin/internal/validate"
)

// authenticated requires a valid bearer token and stores its principal in
// the request context.
func (h *Handler) authenticated(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			h.fail(w, r, auth.ErrUnauthorized, msgUnauthorized)
			return
		}
		p, err := h.auth.Authenticate(token)
		if err != nil {
			h.fail(w, r, err, msgUnauthorized)
			return
		}
		ctx := auth.WithPrincipal(r.Context(), p)
		ctx = zctx.With(ctx, zap.Int64("user_id", p.UserID))
		next(w, r.WithContext(ctx))
	})
}

// staff requires an authenticated admin or super user.
func (h *Handler) staff(next http.HandlerFunc) http.Handler {
	return h.authenticated(func(w http.ResponseWriter, r *http.Request) {
		if p, _ := auth.FromContext(r.Context()); !p.Role.Staff() {
			h.fail(w, r, auth.ErrForbidden, msgForbidden)
			return
		}
		next(w, r)
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var email, password string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		d, err := readDecoder(w, r)
		if err == nil {
			err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				var err error
				switch string(key) {
				case "email":
					email, err = d.Str()
				case "password":
					password, err = d.Str()
				default:
					err = d.Skip()
				}
				return err
			})
		}
		if err != nil {
			h.fail(w, r, malformed(err), msgUnexpected)
			return
		}
	} else {
		email, password = r.PostFormValue("email"), r.PostFormValue("password")
	}

	var verr validate.Errors
	if email == "" {
		verr.Add("email", "email is a required field")
	}
	if password == "" {
		verr.Add("password", "password is a required field")
	}
	if err := verr.Err(); err != nil {
		h.fail(w, r, err, msgUnexpected)
		return
	}

	token, u, err := h.auth.Login(r.Context(), email, password)
	if err != nil {
		h.fail(w, r, err, msgUnexpected)
		return
	}
	writeJSON(w, http.StatusOK, loginBody{token: token, u: u})
}
