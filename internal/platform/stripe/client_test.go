package stripe

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/varunnayak/stripe-migrate/internal/platform"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "sk_test_123", PageSize: 2, BaseURL: srv.URL}, zap.NewNop())
}

func TestListFollowsPagination(t *testing.T) {
	var pages []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/products", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "true", r.URL.Query().Get("active"))
		after := r.URL.Query().Get("starting_after")
		pages = append(pages, after)

		w.Header().Set("Content-Type", "application/json")
		if after == "" {
			fmt.Fprint(w, `{"object":"list","url":"/v1/products","has_more":true,"data":[
				{"id":"P1","object":"product","name":"Pro","active":true,"metadata":{}},
				{"id":"P2","object":"product","name":"Team","active":true,"metadata":{}}]}`)
			return
		}
		fmt.Fprint(w, `{"object":"list","url":"/v1/products","has_more":false,"data":[
			{"id":"P3","object":"product","name":"Enterprise","active":true,"metadata":{"tier":"3"}}]}`)
	})

	products, err := platform.Collect(c.Products().List(context.Background(), platform.ActiveOnly()))
	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, []string{"P1", "P2", "P3"}, lo.Map(products, func(p *platform.Product, _ int) string { return p.ID }))
	assert.Equal(t, "3", products[2].Metadata["tier"])
	assert.Equal(t, []string{"", "P2"}, pages)
}

func TestCreateSendsIdempotencyKeyAndTag(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/prices", r.URL.Path)
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "P1", r.PostForm.Get("product"))
		assert.Equal(t, "1000", r.PostForm.Get("unit_amount"))
		assert.Equal(t, "month", r.PostForm.Get("recurring[interval]"))
		assert.Equal(t, "pr_1", r.PostForm.Get("metadata[source_price_id]"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"price_new","object":"price","product":"P1","currency":"usd",
			"unit_amount":1000,"unit_amount_decimal":"1000","active":true,"billing_scheme":"per_unit",
			"recurring":{"interval":"month","interval_count":1,"usage_type":"licensed"},
			"metadata":{"source_price_id":"pr_1"}}`)
	})

	created, err := c.Prices().Create(context.Background(), &platform.Price{
		ProductID:  "P1",
		Currency:   "usd",
		Active:     true,
		UnitAmount: lo.ToPtr(int64(1000)),
		Recurring:  &platform.Recurring{Interval: "month", IntervalCount: 1},
		Metadata:   platform.Metadata{"source_price_id": "pr_1"},
	}, platform.CreateOptions{IdempotencyKey: "key-1"})
	require.NoError(t, err)
	assert.Equal(t, "price_new", created.ID)
	assert.Equal(t, "P1", created.ProductID)
	require.NotNil(t, created.UnitAmount)
	assert.Equal(t, int64(1000), *created.UnitAmount)
	assert.Nil(t, created.UnitAmountDecimal)
	assert.True(t, created.IsRecurring())
}

func TestCreateConflictIsClassified(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","code":"resource_already_exists","message":"Product already exists."}}`)
	})

	_, err := c.Products().Create(context.Background(), &platform.Product{ID: "P1", Name: "Pro"}, platform.CreateOptions{})
	require.Error(t, err)
	assert.True(t, platform.IsConflict(err))

	var apiErr *platform.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, platform.KindProduct, apiErr.Kind)
	assert.Equal(t, "create", apiErr.Op)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
}

func TestRetrieveMissingIsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","code":"resource_missing","message":"No such coupon: 'C9'"}}`)
	})

	_, err := c.Coupons().Retrieve(context.Background(), "C9")
	assert.True(t, platform.IsNotFound(err))
}

func TestListErrorStopsIteration(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`)
	})

	_, err := platform.Collect(c.Subscriptions().List(context.Background(), platform.ListFilter{Status: "all"}))
	assert.ErrorIs(t, err, platform.ErrAuthentication)
}

func TestCustomerRetrieveReadsExpandedDefault(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/customers/cus_1", r.URL.Path)
		assert.Equal(t, "invoice_settings.default_payment_method", r.URL.Query().Get("expand[0]"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"cus_1","object":"customer",
			"invoice_settings":{"default_payment_method":{"id":"pm_1","object":"payment_method","type":"card"}}}`)
	})

	cus, err := c.Customers().Retrieve(context.Background(), "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "pm_1", cus.DefaultPaymentMethodID)
}
