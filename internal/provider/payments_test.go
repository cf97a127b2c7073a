package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go-funnel-metrics/internal/pipeline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentClient_Paginates(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/charges", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, fmt.Sprint(fileWindow.Since.Unix()), r.URL.Query().Get("created[gte]"))
		assert.Equal(t, fmt.Sprint(fileWindow.Until.Unix()), r.URL.Query().Get("created[lte]"))

		after := r.URL.Query().Get("starting_after")
		seen = append(seen, after)
		w.Header().Set("Content-Type", "application/json")
		if after == "" {
			fmt.Fprint(w, `{"data":[{"id":"ch_1","status":"succeeded","amount":100,"currency":"brl","created":1710000000,"metadata":{"jobId":"j1"}}],"has_more":true}`)
			return
		}
		fmt.Fprint(w, `{"data":[{"id":"ch_2","status":"failed","amount":200,"currency":"brl","created":1710003600}],"has_more":false}`)
	}))
	defer srv.Close()

	client := NewPaymentClient(srv.URL+"/", "sk_test", srv.Client())
	payments, err := client.FetchPayments(context.Background(), fileWindow)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "ch_1"}, seen)
	require.Len(t, payments, 2)
	assert.Equal(t, "ch_1", payments[0].ID)
	assert.Equal(t, "j1", payments[0].JobRef)
	assert.Equal(t, time.Unix(1710000000, 0).UTC(), payments[0].CreatedAt)
	assert.Equal(t, "failed", payments[1].Status)
	assert.Equal(t, int64(200), payments[1].Amount)
}

func TestPaymentClient_PageLimitFailsFetch(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":[{"id":"ch_%d","status":"succeeded","amount":100,"currency":"brl","created":1710000000}],"has_more":true}`, requests)
	}))
	defer srv.Close()

	client := NewPaymentClient(srv.URL, "sk_test", srv.Client())
	client.maxPages = 3
	payments, err := client.FetchPayments(context.Background(), fileWindow)
	require.Error(t, err)
	assert.Nil(t, payments)
	assert.True(t, errors.Is(err, pipeline.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "page limit of 3")
	assert.Equal(t, 3, requests)
}

func TestPaymentClient_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "maintenance")
	}))
	defer srv.Close()

	_, err := NewPaymentClient(srv.URL, "sk_test", srv.Client()).FetchPayments(context.Background(), fileWindow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, pipeline.ErrSourceUnavailable))
	assert.Contains(t, err.Error(), "status 503")
}

func TestPaymentClient_NotConfigured(t *testing.T) {
	_, err := NewPaymentClient("", "", nil).FetchPayments(context.Background(), fileWindow)
	assert.True(t, errors.Is(err, pipeline.ErrSourceNotConfigured))
}

func TestPaymentClient_RespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := NewPaymentClient(srv.URL, "sk_test", srv.Client()).FetchPayments(ctx, fileWindow)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
