package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/laglue/storefront/internal/catalog"
	"github.com/laglue/storefront/internal/ordercode"
	"github.com/laglue/storefront/pkg/config"
)

type stubPinger struct{ err error }

func (s stubPinger) Ping(context.Context) error { return s.err }

type nilCatalog struct{}

func (nilCatalog) Current() *catalog.Catalog { return nil }

type stubVerifier struct{ got string }

func (s *stubVerifier) Verify(code string) ordercode.Verification {
	s.got = code
	return ordercode.Verification{Reason: ordercode.ReasonInvalidPrefix}
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestHealthReadyReportsStoreFailure(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}

	rec := httptest.NewRecorder()
	HealthReady(cfg, stubPinger{err: errors.New("down")}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	if rec.Header().Get(envHeader) != "test" {
		t.Fatalf("expected env header")
	}

	rec = httptest.NewRecorder()
	HealthReady(cfg, stubPinger{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestCatalogNotLoaded(t *testing.T) {
	rec := httptest.NewRecorder()
	CatalogOverview(nilCatalog{}, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}

func TestOrderVerifyPassesTrimmedCode(t *testing.T) {
	verifier := &stubVerifier{}
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/orders/x/verify", nil), "code", " LAGLUE250114-22343732 ")
	rec := httptest.NewRecorder()
	OrderVerify(verifier, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("an invalid code is still a 200, got %d", rec.Code)
	}
	if verifier.got != "LAGLUE250114-22343732" {
		t.Fatalf("unexpected code passed %q", verifier.got)
	}
}

func TestProductIDParam(t *testing.T) {
	cases := map[string]bool{"1": true, "42": true, "0": false, "-3": false, "abc": false, "": false}
	for raw, ok := range cases {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "productId", raw)
		_, err := productIDParam(req)
		if (err == nil) != ok {
			t.Fatalf("productIDParam(%q) err=%v", raw, err)
		}
	}
}

func TestSessionProviderRequired(t *testing.T) {
	rec := httptest.NewRecorder()
	CartGet(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
