package handlers

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricecompare/models"
	"pricecompare/services"
	"pricecompare/utils"
)

type fakeComparer struct {
	groups  []*models.ProductGroup
	cached  bool
	err     error
	query   string
	cleared int
}

func (f *fakeComparer) Compare(_ context.Context, q string) ([]*models.ProductGroup, bool, error) {
	f.query = q
	return f.groups, f.cached, f.err
}

func (f *fakeComparer) ClearCache() { f.cleared++ }

func kindleGroups() []*models.ProductGroup {
	return []*models.ProductGroup{{
		BaseModel: "Kindle Paperwhite",
		Products: []models.Product{
			{Listing: models.Listing{Country: "Germany", Domain: "amazon.de", Currency: "EUR", Title: "Kindle Paperwhite", Link: "https://amazon.de/dp/B0CFPJYX7P", Price: 159.99, ReferencePrice: 159.99}, IsBestPrice: true},
		},
		BestPrice: 159.99,
	}}
}

func newServer(t *testing.T, svc Comparer) http.Handler {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>compare</h1>"), 0o644))
	return NewHandlers(svc, 10000, dir, utils.NewDiscardLogger()).Router(0)
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCompareReturnsGroups(t *testing.T) {
	svc := &fakeComparer{groups: kindleGroups()}
	rec := get(newServer(t, svc), "/compare?q=kindle+paperwhite")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "kindle paperwhite", svc.query)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var groups []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &groups))
	require.Len(t, groups, 1)
	assert.Equal(t, "Kindle Paperwhite", groups[0]["baseModel"])
	products := groups[0]["products"].([]interface{})
	first := products[0].(map[string]interface{})
	assert.Equal(t, 159.99, first["priceEUR"])
	assert.Equal(t, true, first["isBestPrice"])
}

func TestCompareCachedHeader(t *testing.T) {
	rec := get(newServer(t, &fakeComparer{groups: kindleGroups(), cached: true}), "/compare?q=kindle")
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
}

func TestCompareEmptyResultIsArray(t *testing.T) {
	rec := get(newServer(t, &fakeComparer{}), "/compare?q=nothing")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestCompareErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
		body   string
	}{
		{"missing query", "/compare", nil, http.StatusBadRequest, "Missing query"},
		{"blank query", "/compare?q=%20%20", nil, http.StatusBadRequest, "Missing query"},
		{"timeout", "/compare?q=x", &services.OrchestratorError{Query: "x", Kind: services.ErrQueryTimeout, Cause: context.DeadlineExceeded}, http.StatusGatewayTimeout, "timeout"},
		{"session setup", "/compare?q=x", &services.OrchestratorError{Query: "x", Kind: services.ErrSessionSetup, Cause: errors.New("no chrome")}, http.StatusInternalServerError, "scrape_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(newServer(t, &fakeComparer{err: tt.err}), tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body, decode(t, rec)["error"])
		})
	}
}

func TestCompareCSV(t *testing.T) {
	rec := get(newServer(t, &fakeComparer{groups: kindleGroups()}), "/compare?q=kindle&format=csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "base_model", rows[0][0])
	assert.Equal(t, "Kindle Paperwhite", rows[1][0])
	assert.Equal(t, "true", rows[1][9])
}

func TestClearCache(t *testing.T) {
	svc := &fakeComparer{}
	rec := get(newServer(t, svc), "/clear-cache")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cache cleared", decode(t, rec)["message"])
	assert.Equal(t, 1, svc.cleared)
}

func TestHealthAndTest(t *testing.T) {
	h := newServer(t, &fakeComparer{})

	health := decode(t, get(h, "/api/health"))
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, float64(10000), health["port"])
	assert.NotEmpty(t, health["timestamp"])

	test := decode(t, get(h, "/api/test"))
	assert.Equal(t, "Server is working", test["message"])
}

func TestStaticFiles(t *testing.T) {
	rec := get(newServer(t, &fakeComparer{}), "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>compare</h1>")
}

func TestCompareRateLimited(t *testing.T) {
	h := NewHandlers(&fakeComparer{}, 10000, t.TempDir(), utils.NewDiscardLogger()).Router(1)
	assert.Equal(t, http.StatusOK, get(h, "/compare?q=a").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "/compare?q=a").Code)
	assert.Equal(t, http.StatusOK, get(h, "/api/health").Code)
}
