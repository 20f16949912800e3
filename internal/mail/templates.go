package mail

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/go-faster/errors"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// OrderLine is one line item as shown in order emails.
type OrderLine struct {
	Name      string
	Quantity  int
	UnitPrice string
	LineTotal string
}

// OrderSummary is the order data rendered into order emails. Amounts are
// preformatted with two decimals.
type OrderSummary struct {
	OrderID      int64
	CustomerName string
	Email        string
	Phone        string
	Company      string
	Address1     string
	Address2     string
	City         string
	Zip          string
	Country      string
	CouponCode   string
	Lines        []OrderLine
	Cost         string
	Shipping     string
	Discount     string
	Total        string
}

// Templates renders order emails from the embedded templates.
type Templates struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

// NewTemplates parses the embedded templates.
func NewTemplates() (*Templates, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, errors.Wrap(err, "parse html templates")
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, errors.Wrap(err, "parse text templates")
	}
	return &Templates{html: html, text: text}, nil
}

// OrderConfirmation renders the customer's confirmation mail.
func (t *Templates) OrderConfirmation(o OrderSummary) (Message, error) {
	return t.render("order_confirmation", fmt.Sprintf("Please confirm details of order #%d", o.OrderID), o)
}

// OrderNotification renders the staff notification mail.
func (t *Templates) OrderNotification(o OrderSummary) (Message, error) {
	return t.render("order_notification", fmt.Sprintf("New order #%d submitted", o.OrderID), o)
}

func (t *Templates) render(name, subject string, data any) (Message, error) {
	var html, text bytes.Buffer
	if err := t.html.ExecuteTemplate(&html, name+".html.tmpl", data); err != nil {
		return Message{}, errors.Wrapf(err, "render %s html", name)
	}
	if err := t.text.ExecuteTemplate(&text, name+".txt.tmpl", data); err != nil {
		return Message{}, errors.Wrapf(err, "render %s text", name)
	}
	return Message{Subject: subject, HTML: html.String(), Text: text.String()}, nil
}
