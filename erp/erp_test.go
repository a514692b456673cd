package erp_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/orders/erp"
	"github.com/xraph/orders/id"
	"github.com/xraph/orders/order"
	"github.com/xraph/orders/types"
)

func sampleOrder() *order.Order {
	line := order.NewLine("SKU-1", "Widget", 2, types.COP(50000))
	return &order.Order{
		ID:          id.NewOrderID(),
		UserID:      "u1",
		Lines:       []order.Line{line},
		TotalAmount: line.Subtotal,
		Status:      order.StatusConfirmed,
		Snapshot: &order.FinancialSnapshot{
			NetAmount:   types.COP(100000),
			IvaAmount:   types.COP(19000),
			TotalAmount: types.COP(119000),
			Client:      order.ClientSnapshot{ID: "u1", Name: "Ana"},
			Items:       []order.Line{line},
			CapturedAt:  time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestNewDocument(t *testing.T) {
	o := sampleOrder()
	doc := erp.NewDocument(o)

	assert.Equal(t, o.ID.String(), doc.OrderID)
	assert.Equal(t, "cop", doc.Currency)
	assert.Equal(t, types.COP(119000), doc.TotalAmount)
	assert.Equal(t, "Ana", doc.Client.Name)
	assert.Len(t, doc.Items, 1)
}

func TestFake(t *testing.T) {
	ctx := context.Background()
	f := erp.NewFake()
	doc := erp.NewDocument(sampleOrder())

	res, err := f.SendInvoice(ctx, doc)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "ERP-000001", res.Reference)

	boom := errors.New("connection refused")
	f.FailNext(boom)
	_, err = f.SendInvoice(ctx, doc)
	assert.ErrorIs(t, err, boom)

	f.RejectNext("bad tax id")
	res, err = f.SendInvoice(ctx, doc)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "bad tax id", res.Message)

	assert.Len(t, f.Sent(), 2)

	f.SetStatus("ERP-000001", erp.StatusInvoiced)
	res, err = f.CheckStatus(ctx, "ERP-000001")
	require.NoError(t, err)
	assert.Equal(t, erp.StatusInvoiced, res.Status)

	_, err = f.CheckStatus(ctx, "ERP-999999")
	assert.ErrorIs(t, err, erp.ErrUnknownReference)
}

func TestHTTPAdapterSendInvoice(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/documents", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}

		var doc erp.Document
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&doc))
		_ = json.NewEncoder(w).Encode(erp.Result{
			Success:   true,
			Reference: "REF-" + doc.UserID,
			Status:    erp.StatusAccepted,
		})
	}))
	defer srv.Close()

	a, err := erp.NewHTTPAdapter(srv.URL+"/api/",
		erp.WithAPIKey("secret"),
		erp.WithRetryInterval(time.Millisecond),
	)
	require.NoError(t, err)

	res, err := a.SendInvoice(context.Background(), erp.NewDocument(sampleOrder()))
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "REF-u1", res.Reference)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPAdapterRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(erp.Result{Message: "client blocked"})
	}))
	defer srv.Close()

	a, err := erp.NewHTTPAdapter(srv.URL, erp.WithRetryInterval(time.Millisecond))
	require.NoError(t, err)

	res, err := a.SendInvoice(context.Background(), erp.NewDocument(sampleOrder()))
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, erp.StatusRejected, res.Status)
	assert.Equal(t, "client blocked", res.Message)
}

func TestHTTPAdapterGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	a, err := erp.NewHTTPAdapter(srv.URL,
		erp.WithMaxRetries(2),
		erp.WithRetryInterval(time.Millisecond),
	)
	require.NoError(t, err)

	_, err = a.CheckStatus(context.Background(), "REF-1")
	assert.ErrorIs(t, err, erp.ErrUnexpectedResponse)
	assert.Equal(t, int32(2), calls.Load())
}

func TestHTTPAdapterCheckStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/REF-7", r.URL.Path)
		_ = json.NewEncoder(w).Encode(erp.Result{Success: true, Reference: "REF-7", Status: erp.StatusInvoiced})
	}))
	defer srv.Close()

	a, err := erp.NewHTTPAdapter(srv.URL)
	require.NoError(t, err)

	res, err := a.CheckStatus(context.Background(), "REF-7")
	require.NoError(t, err)
	assert.Equal(t, erp.StatusInvoiced, res.Status)
}

func TestNewHTTPAdapterRejectsRelativeURL(t *testing.T) {
	_, err := erp.NewHTTPAdapter("erp.local/api")
	assert.Error(t, err)
}
