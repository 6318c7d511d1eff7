package storefront

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/giantswarm/storefront/internal/testutil"
	"github.com/giantswarm/storefront/security"
	"github.com/giantswarm/storefront/storage"
	"github.com/giantswarm/storefront/storage/mock"
)

func productBody() map[string]any {
	return map[string]any{
		"name":          "Rose Oud",
		"brand":         "Maison",
		"description":   "Warm rose over oud.",
		"concentration": "EDP",
		"image_urls":    []string{"https://cdn.example.com/rose.jpg"},
		"top_notes":     []string{"rose"},
		"heart_notes":   []string{"saffron"},
		"base_notes":    []string{"oud"},
		"variants":      []map[string]any{{"size": "50ml", "price": 89.9, "stock": 3}},
	}
}

// adminRequest returns a request carrying a CSRF token and an admin session.
// The session is minted once per server so the login throttle is not hit.
func (ts *testServer) adminRequest(t *testing.T, method, url string) *testutil.HTTPRequest {
	t.Helper()
	if ts.session == "" {
		ts.session = ts.login(t)
	}
	return testutil.NewHTTPRequest(method, url).
		WithCSRF(ts.csrfToken(t)).
		WithCookie(security.SessionCookieName, ts.session)
}

func TestCatalog_ListEmpty(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, c := range storage.Collections {
		rr := ts.do(testutil.NewHTTPRequest(http.MethodGet, "/api/"+string(c)))
		testutil.AssertStatus(t, rr, http.StatusOK)
		testutil.AssertEqual(t, rr.Body.String(), "[]\n")
	}
}

func TestCatalog_MutationsRequireCSRFThenAdmin(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			// No CSRF token: 403 even with a session.
			rr := ts.do(testutil.NewHTTPRequest(method, "/api/women-perfumes").
				WithCookie(security.SessionCookieName, ts.login(t)).
				WithJSON(productBody()))
			testutil.AssertStatus(t, rr, http.StatusForbidden)
			testutil.AssertJSONError(t, rr, MessageCSRFMismatch)

			// CSRF token but no session: 401.
			rr = ts.do(testutil.NewHTTPRequest(method, "/api/women-perfumes").
				WithCSRF(ts.csrfToken(t)).
				WithJSON(productBody()))
			testutil.AssertStatus(t, rr, http.StatusUnauthorized)
			testutil.AssertJSONError(t, rr, MessageUnauthenticated)
		})
	}
}

func TestCatalog_CreateListUpdateDelete(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(ts.adminRequest(t, http.MethodPost, "/api/women-perfumes").WithJSON(productBody()))
	testutil.AssertStatus(t, rr, http.StatusOK)

	body := testutil.DecodeJSON(t, rr)
	testutil.AssertEqual(t, body["success"], true)
	testutil.AssertEqual(t, body["message"], "Women's perfume added successfully")
	created, ok := body["perfume"].(map[string]any)
	if !ok {
		t.Fatalf("expected perfume object in response, got %v", body)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("created product has no id")
	}
	testutil.AssertEqual(t, created["image_url"], "https://cdn.example.com/rose.jpg")
	testutil.AssertEqual(t, created["collection"], string(storage.CollectionWomen))

	// Other collections are unaffected.
	rr = ts.do(testutil.NewHTTPRequest(http.MethodGet, "/api/men-perfumes"))
	testutil.AssertEqual(t, rr.Body.String(), "[]\n")

	product, err := ts.store.GetProduct(t.Context(), storage.CollectionWomen, id)
	testutil.AssertNoError(t, err)
	createdAt := product.CreatedAt

	ts.clock.Advance(time.Hour)
	update := productBody()
	update["id"] = id
	update["name"] = "Rose Oud Intense"
	rr = ts.do(ts.adminRequest(t, http.MethodPut, "/api/women-perfumes").WithJSON(update))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertEqual(t, testutil.DecodeJSON(t, rr)["message"], "Women's perfume updated successfully")

	product, err = ts.store.GetProduct(t.Context(), storage.CollectionWomen, id)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, product.Name, "Rose Oud Intense")
	if !product.CreatedAt.Equal(createdAt) {
		t.Errorf("CreatedAt changed from %v to %v", createdAt, product.CreatedAt)
	}
	if !product.UpdatedAt.Equal(ts.clock.Now()) {
		t.Errorf("UpdatedAt = %v, want %v", product.UpdatedAt, ts.clock.Now())
	}

	rr = ts.do(ts.adminRequest(t, http.MethodDelete, "/api/women-perfumes?id="+id))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertEqual(t, testutil.DecodeJSON(t, rr)["message"], "Women's perfume deleted successfully")

	rr = ts.do(ts.adminRequest(t, http.MethodDelete, "/api/women-perfumes?id="+id))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
	testutil.AssertJSONError(t, rr, "Perfume not found")
}

func TestCatalog_GiftSetWording(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(ts.adminRequest(t, http.MethodPost, "/api/gift-sets").WithJSON(productBody()))
	testutil.AssertStatus(t, rr, http.StatusOK)

	body := testutil.DecodeJSON(t, rr)
	testutil.AssertEqual(t, body["message"], "Gift set added successfully")
	if _, ok := body["giftSet"]; !ok {
		t.Errorf("expected giftSet key in response, got %v", body)
	}

	rr = ts.do(ts.adminRequest(t, http.MethodDelete, "/api/gift-sets"))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertJSONError(t, rr, "Gift set ID is required")
}

func TestCatalog_ValidationErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name      string
		method    string
		mutate    func(map[string]any)
		wantError string
	}{
		{
			name:      "missing name",
			method:    http.MethodPost,
			mutate:    func(b map[string]any) { delete(b, "name") },
			wantError: "Missing required field: name",
		},
		{
			name:      "invalid image URL",
			method:    http.MethodPost,
			mutate:    func(b map[string]any) { b["image_urls"] = []string{"not a url"} },
			wantError: "Must be a valid URL",
		},
		{
			name:      "update without id",
			method:    http.MethodPut,
			mutate:    func(map[string]any) {},
			wantError: "Perfume ID is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := productBody()
			tt.mutate(body)
			rr := ts.do(ts.adminRequest(t, tt.method, "/api/men-perfumes").WithJSON(body))
			testutil.AssertStatus(t, rr, http.StatusBadRequest)
			testutil.AssertJSONError(t, rr, tt.wantError)
		})
	}
}

func TestCatalog_UpdateUnknownProduct(t *testing.T) {
	ts := newTestServer(t, nil)

	body := productBody()
	body["id"] = "does-not-exist"
	rr := ts.do(ts.adminRequest(t, http.MethodPut, "/api/men-perfumes").WithJSON(body))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
	testutil.AssertJSONError(t, rr, "Perfume not found")
}

func TestCatalog_StorageFailures(t *testing.T) {
	products := &mock.ProductStore{Err: errors.New("database is locked")}
	ts := newTestServer(t, func(_ *Config, d *Dependencies) {
		d.Products = products
	})

	rr := ts.do(testutil.NewHTTPRequest(http.MethodGet, "/api/women-perfumes"))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	testutil.AssertJSONError(t, rr, "Failed to fetch women's perfumes")

	rr = ts.do(ts.adminRequest(t, http.MethodPost, "/api/gift-sets").WithJSON(productBody()))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	testutil.AssertJSONError(t, rr, "Failed to add gift set")

	rr = ts.do(ts.adminRequest(t, http.MethodDelete, "/api/men-perfumes?id=p1"))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	testutil.AssertJSONError(t, rr, "Failed to delete men's perfume")
}

func TestCatalog_MethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(testutil.NewHTTPRequest(http.MethodPatch, "/api/women-perfumes"))
	testutil.AssertStatus(t, rr, http.StatusMethodNotAllowed)
	testutil.AssertEqual(t, rr.Header().Get("Allow"), "GET, POST, PUT, DELETE")
}
