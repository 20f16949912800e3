//go:build integration

package integration

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"testing"
)

var testBilling = billing{
	FirstName: "Ada",
	LastName:  "Lovelace",
	Email:     customerEmail,
	Address1:  "1 Analytical Way",
	Phone:     "+44 20 0000 0000",
	Country:   "United Kingdom",
	City:      "London",
	Zip:       "N1 9GU",
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

func basket(t *testing.T) []orderItemRequest {
	t.Helper()
	return []orderItemRequest{
		{ProductID: productID(t, "Apples"), Quantity: 2},     // 8.40
		{ProductID: productID(t, "Whole Milk"), Quantity: 3}, // 4.50
	}
}

func submit(t *testing.T, req orderRequest) orderResponse {
	t.Helper()

	resp := doJSON(t, http.MethodPost, "/api/orders", customerToken, req)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusCreated)
	return decodeJSON[orderResponse](t, resp)
}

func TestSubmitOrder_NoAuth(t *testing.T) {
	resp := doJSON(t, http.MethodPost, "/api/orders", "", orderRequest{Billing: testBilling})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestSubmitOrder_Totals(t *testing.T) {
	tests := []struct {
		name     string
		coupon   string
		discount float64
		total    float64
	}{
		{name: "no coupon", discount: 0, total: 30.90},
		{name: "percent coupon", coupon: "welcome10", discount: 1.29, total: 29.61},
		{name: "flat coupon", coupon: "FIVEOFF", discount: 5, total: 25.90},
		{name: "expired coupon", coupon: "SPRING24", discount: 0, total: 30.90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := submit(t, orderRequest{Billing: testBilling, Items: basket(t), CouponCode: tt.coupon})

			if !approx(o.Cost, 12.90) {
				t.Errorf("cost: got %v, want 12.90", o.Cost)
			}
			if !approx(o.Shipping, 18) {
				t.Errorf("shipping: got %v, want 18.00", o.Shipping)
			}
			if !approx(o.Discount, tt.discount) {
				t.Errorf("discount: got %v, want %v", o.Discount, tt.discount)
			}
			if !approx(o.Total, tt.total) {
				t.Errorf("total: got %v, want %v", o.Total, tt.total)
			}
			if len(o.Items) != 2 {
				t.Errorf("items: got %d, want 2", len(o.Items))
			}
		})
	}
}

func TestSubmitOrder_InvalidCoupon(t *testing.T) {
	resp := doJSON(t, http.MethodPost, "/api/orders", customerToken,
		orderRequest{Billing: testBilling, Items: basket(t), CouponCode: "NOPE"})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	e := decodeJSON[errorResponse](t, resp)
	if e.Fields["coupon_code"] != "The coupon code is invalid." {
		t.Errorf("coupon_code field: got %q", e.Fields["coupon_code"])
	}
}

func TestSubmitOrder_EmptyItems(t *testing.T) {
	resp := doJSON(t, http.MethodPost, "/api/orders", customerToken,
		orderRequest{Billing: testBilling, Items: []orderItemRequest{}})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnprocessableEntity)
}

func TestSubmitOrder_UnknownProduct(t *testing.T) {
	resp := doJSON(t, http.MethodPost, "/api/orders", customerToken, orderRequest{
		Billing: testBilling,
		Items:   []orderItemRequest{{ProductID: 999999, Quantity: 1}},
	})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnprocessableEntity)
}

func TestSubmitOrder_MissingBilling(t *testing.T) {
	resp := doJSON(t, http.MethodPost, "/api/orders", customerToken, orderRequest{Items: basket(t)})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusUnprocessableEntity)

	e := decodeJSON[errorResponse](t, resp)
	if len(e.Fields) == 0 {
		t.Error("expected field errors for missing billing details")
	}
}

func TestUpdateOrder_RecomputesTotals(t *testing.T) {
	o := submit(t, orderRequest{Billing: testBilling, Items: basket(t)})

	// Customers cannot modify orders.
	resp := doJSON(t, http.MethodPut, fmt.Sprintf("/api/orders/%d", o.ID), customerToken,
		map[string]any{"coupon_code": "FIVEOFF"})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusForbidden)

	resp = doJSON(t, http.MethodPut, fmt.Sprintf("/api/orders/%d", o.ID), superToken,
		map[string]any{"coupon_code": "FIVEOFF"})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	updated := decodeJSON[orderResponse](t, resp)
	if !approx(updated.Discount, 5) || !approx(updated.Total, 25.90) {
		t.Errorf("after coupon: discount %v total %v, want 5.00 and 25.90", updated.Discount, updated.Total)
	}

	resp = doJSON(t, http.MethodPut, fmt.Sprintf("/api/orders/%d", o.ID), superToken,
		map[string]any{"items": []orderItemRequest{{ProductID: productID(t, "Cheddar"), Quantity: 1}}})
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	updated = decodeJSON[orderResponse](t, resp)
	if !approx(updated.Cost, 7.95) || !approx(updated.Total, 20.95) {
		t.Errorf("after items: cost %v total %v, want 7.95 and 20.95", updated.Cost, updated.Total)
	}
}

func TestGetOrder_Ownership(t *testing.T) {
	o := submit(t, orderRequest{Billing: testBilling, Items: basket(t)})

	resp := doGet(t, fmt.Sprintf("/api/orders/%d", o.ID), customerToken)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[orderResponse](t, resp)
	if got.ID != o.ID || !approx(got.Total, o.Total) {
		t.Errorf("got order %d total %v, want %d total %v", got.ID, got.Total, o.ID, o.Total)
	}

	resp = doGet(t, fmt.Sprintf("/api/orders/%d", o.ID), superToken)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	resp = doGet(t, "/api/orders/999999", customerToken)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusNotFound)
}

func TestGetOrder_SubCentDiscountRoundTrip(t *testing.T) {
	resp := doGet(t, "/api/products/form-options", superToken)
	opts := decodeJSON[formOptionsResponse](t, resp)
	resp.Body.Close()

	body, ct := productForm(t, map[string]string{
		"name":        "Sample Sachet",
		"category_id": strconv.FormatInt(opts.Categories[0].ID, 10),
		"type_id":     strconv.FormatInt(opts.Types[0].ID, 10),
		"vendor_id":   strconv.FormatInt(opts.Vendors[0].ID, 10),
		"custom_unit": "false",
		"unit_id":     strconv.FormatInt(opts.Units[0].ID, 10),
		"price":       "2.99",
		"quantity":    "100",
	}, nil)
	resp = doRequest(t, http.MethodPost, "/api/products", superToken, body, ct)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusCreated)
	sachet := decodeJSON[productResponse](t, resp)
	t.Cleanup(func() {
		resp := doRequest(t, http.MethodDelete, fmt.Sprintf("/api/products/%d", sachet.ID), superToken, nil, "")
		resp.Body.Close()
	})

	// 0.50% of 2.99 is 0.01495, which shows as 0.01 only if storage keeps
	// every digit.
	o := submit(t, orderRequest{
		Billing:    testBilling,
		Items:      []orderItemRequest{{ProductID: sachet.ID, Quantity: 1}},
		CouponCode: "HALFPERCENT",
	})
	if !approx(o.Discount, 0.01) || !approx(o.Total, 20.98) {
		t.Fatalf("submit: discount %v total %v, want 0.01 and 20.98", o.Discount, o.Total)
	}

	resp = doGet(t, fmt.Sprintf("/api/orders/%d", o.ID), superToken)
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	got := decodeJSON[orderResponse](t, resp)
	if !approx(got.Discount, o.Discount) || !approx(got.Total, o.Total) {
		t.Errorf("get: discount %v total %v, want %v and %v", got.Discount, got.Total, o.Discount, o.Total)
	}
}
