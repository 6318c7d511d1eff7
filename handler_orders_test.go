package storefront

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/giantswarm/storefront/internal/testutil"
	"github.com/giantswarm/storefront/storage"
	"github.com/giantswarm/storefront/storage/mock"
)

func orderBody() map[string]any {
	return map[string]any{
		"firstName":    "Maria",
		"lastName":     "Ivanova",
		"address":      "ul. Vitosha 12",
		"phone":        "+359 88 123 4567",
		"municipality": "Stolichna",
		"city":         "Sofia",
		"items": []map[string]any{
			{"id": "p1", "name": "Rose Oud", "price": 89.9, "quantity": 2, "variant": "50ml"},
		},
		"totalPrice": 179.8,
	}
}

func TestOrders_PlaceRequiresCSRFOnly(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(testutil.NewHTTPRequest(http.MethodPost, "/api/orders").WithJSON(orderBody()))
	testutil.AssertStatus(t, rr, http.StatusForbidden)
	testutil.AssertJSONError(t, rr, MessageCSRFMismatch)

	rr = ts.do(testutil.NewHTTPRequest(http.MethodPost, "/api/orders").
		WithCSRF(ts.csrfToken(t)).
		WithJSON(orderBody()))
	testutil.AssertStatus(t, rr, http.StatusOK)

	body := testutil.DecodeJSON(t, rr)
	testutil.AssertEqual(t, body["success"], true)
	testutil.AssertEqual(t, body["message"], "Order placed successfully")
	id, _ := body["orderId"].(string)
	if id == "" {
		t.Fatal("expected orderId in response")
	}

	orders, err := ts.store.ListOrders(t.Context())
	testutil.AssertNoError(t, err)
	if len(orders) != 1 {
		t.Fatalf("stored %d orders, want 1", len(orders))
	}
	testutil.AssertEqual(t, orders[0].ID, id)
	testutil.AssertEqual(t, orders[0].Status, storage.OrderPending)
	testutil.AssertEqual(t, orders[0].Country, storage.DefaultCountry)
	if !orders[0].CreatedAt.Equal(ts.clock.Now()) {
		t.Errorf("CreatedAt = %v, want %v", orders[0].CreatedAt, ts.clock.Now())
	}
}

func TestOrders_PlaceFromCheckoutPageToken(t *testing.T) {
	ts := newTestServer(t, nil)

	// The checkout page hands out the token the form posts back.
	page := ts.do(testutil.NewHTTPRequest(http.MethodGet, "/order"))
	testutil.AssertStatus(t, page, http.StatusOK)
	token := page.Header().Get("X-CSRF-Token")

	rr := ts.do(testutil.NewHTTPRequest(http.MethodPost, "/api/orders").
		WithCSRF(token).
		WithJSON(orderBody()))
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestOrders_PlaceValidation(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name      string
		mutate    func(map[string]any)
		wantError string
	}{
		{
			name:      "no items",
			mutate:    func(b map[string]any) { b["items"] = []map[string]any{} },
			wantError: "At least one item is required",
		},
		{
			name:      "digits in name",
			mutate:    func(b map[string]any) { b["firstName"] = "M4ria" },
			wantError: "First name can only contain letters and spaces",
		},
		{
			name:      "short address",
			mutate:    func(b map[string]any) { b["address"] = "x" },
			wantError: "Address must be at least 5 characters",
		},
		{
			name:      "non-positive total",
			mutate:    func(b map[string]any) { b["totalPrice"] = 0 },
			wantError: "Total price must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := orderBody()
			tt.mutate(body)
			rr := ts.do(testutil.NewHTTPRequest(http.MethodPost, "/api/orders").
				WithCSRF(ts.csrfToken(t)).
				WithJSON(body))
			testutil.AssertStatus(t, rr, http.StatusBadRequest)
			testutil.AssertJSONError(t, rr, tt.wantError)
		})
	}
}

func TestOrders_ListRequiresAdmin(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(testutil.NewHTTPRequest(http.MethodGet, "/api/orders"))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	testutil.AssertJSONError(t, rr, MessageUnauthenticated)

	rr = ts.do(ts.adminRequest(t, http.MethodGet, "/api/orders"))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertEqual(t, rr.Body.String(), "[]\n")
}

func TestOrders_UpdateStatus(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(testutil.NewHTTPRequest(http.MethodPost, "/api/orders").
		WithCSRF(ts.csrfToken(t)).
		WithJSON(orderBody()))
	testutil.AssertStatus(t, rr, http.StatusOK)
	id, _ := testutil.DecodeJSON(t, rr)["orderId"].(string)

	ts.clock.Advance(time.Hour)
	rr = ts.do(ts.adminRequest(t, http.MethodPut, "/api/orders").
		WithJSON(map[string]string{"id": id, "status": "shipped"}))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertEqual(t, testutil.DecodeJSON(t, rr)["message"], "Order updated successfully")

	orders, err := ts.store.ListOrders(t.Context())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, orders[0].Status, storage.OrderShipped)
	if !orders[0].UpdatedAt.Equal(ts.clock.Now()) {
		t.Errorf("UpdatedAt = %v, want %v", orders[0].UpdatedAt, ts.clock.Now())
	}

	rr = ts.do(ts.adminRequest(t, http.MethodPut, "/api/orders").
		WithJSON(map[string]string{"id": "missing", "status": "shipped"}))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
	testutil.AssertJSONError(t, rr, "Order not found")

	rr = ts.do(ts.adminRequest(t, http.MethodPut, "/api/orders").
		WithJSON(map[string]string{"id": id, "status": "lost"}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertJSONError(t, rr, "Invalid order status")
}

func TestOrders_UpdateStatusRequiresCSRFThenAdmin(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(testutil.NewHTTPRequest(http.MethodPut, "/api/orders").
		WithJSON(map[string]string{"id": "o1", "status": "shipped"}))
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	rr = ts.do(testutil.NewHTTPRequest(http.MethodPut, "/api/orders").
		WithCSRF(ts.csrfToken(t)).
		WithJSON(map[string]string{"id": "o1", "status": "shipped"}))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestOrders_StorageFailures(t *testing.T) {
	orders := &mock.OrderStore{Err: errors.New("connection reset")}
	ts := newTestServer(t, func(_ *Config, d *Dependencies) {
		d.Orders = orders
	})

	rr := ts.do(testutil.NewHTTPRequest(http.MethodPost, "/api/orders").
		WithCSRF(ts.csrfToken(t)).
		WithJSON(orderBody()))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	testutil.AssertJSONError(t, rr, "Failed to save order to database")

	rr = ts.do(ts.adminRequest(t, http.MethodGet, "/api/orders"))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	testutil.AssertJSONError(t, rr, "Failed to fetch orders")

	rr = ts.do(ts.adminRequest(t, http.MethodPut, "/api/orders").
		WithJSON(map[string]string{"id": "o1", "status": "shipped"}))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	testutil.AssertJSONError(t, rr, "Failed to update order")
}

func TestOrders_AdminSessionStoreFailure(t *testing.T) {
	sessions := mock.NewSessionStore()
	ts := newTestServer(t, func(c *Config, d *Dependencies) {
		c.Session.ServerSide = true
		d.Sessions = sessions
	})
	session := ts.login(t)

	sessions.GetFunc = func(string) (*storage.Session, error) {
		return nil, errors.New("session store down")
	}
	rr := ts.do(testutil.NewHTTPRequest(http.MethodGet, "/api/orders").
		WithCookie("admin-session", session))
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	testutil.AssertJSONError(t, rr, MessageUnavailable)
}
