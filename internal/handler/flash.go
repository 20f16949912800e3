package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

const flashCookie = "flash"

type flashLevel string

const (
	flashSuccess flashLevel = "success"
	flashError   flashLevel = "error"
)

// flash is a one-time message shown after a redirect.
type flash struct {
	Level   flashLevel
	Message string
}

func (f flash) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("level")
	e.Str(string(f.Level))
	e.FieldStart("message")
	e.Str(f.Message)
	e.ObjEnd()
}

func (f *flash) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "level":
			s, err := d.Str()
			f.Level = flashLevel(s)
			return err
		case "message":
			s, err := d.Str()
			f.Message = s
			return err
		default:
			return d.Skip()
		}
	})
}

func setFlash(w http.ResponseWriter, f flash) {
	var e jx.Encoder
	f.Encode(&e)
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(e.Bytes()),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func readFlash(r *http.Request) (flash, error) {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return flash{}, err
	}
	raw, err := base64.RawURLEncoding.DecodeString(c.Value)
	if err != nil {
		return flash{}, errors.Wrap(err, "decode flash cookie")
	}
	var f flash
	if err := f.Decode(jx.DecodeBytes(raw)); err != nil {
		return flash{}, errors.Wrap(err, "decode flash cookie")
	}
	return f, nil
}

// popFlash returns and clears the pending flash message. It responds with
// 204 when there is none.
func (h *Handler) popFlash(w http.ResponseWriter, r *http.Request) {
	f, err := readFlash(r)
	if !errors.Is(err, http.ErrNoCookie) {
		http.SetCookie(w, &http.Cookie{Name: flashCookie, Path: "/", MaxAge: -1})
	}
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
