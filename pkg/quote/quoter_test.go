package quote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestGetQuoteComputesEstimatedFiat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/offramp/quote", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"rate":"1500","fees":[{"name":"settlement","amount":"0.5"}]}`))
	}))
	defer server.Close()

	quoter := NewQuoter(server.URL, "test-token")
	q, err := quoter.GetQuote(context.Background(), "USDC", decimal.RequireFromString("100"), "NGN", "base")
	require.NoError(t, err)

	require.True(t, q.EstimatedFiat.Equal(decimal.RequireFromString("150000")),
		"expected 150000, got %s", q.EstimatedFiat)
	require.True(t, q.Rate.Equal(decimal.RequireFromString("1500")))
	require.Len(t, q.Fees, 1)
	require.False(t, q.Stale(time.Minute))
}

func TestGetQuoteUnpriceablePair(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	quoter := NewQuoter(server.URL, "test-token")
	_, err := quoter.GetQuote(context.Background(), "USDT", decimal.RequireFromString("5"), "XYZ", "base")
	require.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestGetQuoteRejectsZeroAmount(t *testing.T) {
	quoter := NewQuoter("http://unused.example.com", "test-token")
	_, err := quoter.GetQuote(context.Background(), "USDC", decimal.Zero, "NGN", "base")
	require.Error(t, err)
}

func TestQuoteStaleness(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rate":"1500"}`))
	}))
	defer server.Close()

	quoter := NewQuoter(server.URL, "test-token")
	q, err := quoter.GetQuote(context.Background(), "USDC", decimal.RequireFromString("1"), "NGN", "base")
	require.NoError(t, err)

	q.FetchedAt = time.Now().Add(-5 * time.Minute)
	require.True(t, q.Stale(2*time.Minute))
	require.False(t, q.Stale(10*time.Minute))
}
