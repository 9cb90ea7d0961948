package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"offramp/pkg/types"
)

func TestCreateOrder(t *testing.T) {
	var received CreateOrderRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/offramp/orders", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Write([]byte(`{"order_id":"ord-9","counterparty_id":"cp-1","receive_address":"0xABCabcABCabcABCabcABCabcABCabcABCabcABCa"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	order, err := client.CreateOrder(context.Background(), CreateOrderRequest{
		Amount:         decimal.RequireFromString("100"),
		Token:          "USDC",
		Chain:          "base",
		BankAccount:    types.BankAccount{BankName: "GTB", AccountNumber: "0123456789", HolderName: "Ada"},
		ReturnAddress:  "0x1111111111111111111111111111111111111111",
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)

	require.Equal(t, "ord-9", order.OrderID)
	require.Equal(t, types.OrderPending, order.Status)
	require.NotEmpty(t, order.ReceiveAddress)
	require.Equal(t, "key-1", received.IdempotencyKey)
	require.Equal(t, "0123456789", received.BankAccount.AccountNumber)
}

func TestCreateOrderIncompleteResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"order_id":"ord-9"}`)) // no receive address
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "incomplete order")
}

func TestAttachTxHash(t *testing.T) {
	var patched map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPatch, r.Method)
		require.Equal(t, "/offramp/orders/ord-9", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	require.NoError(t, client.AttachTxHash(context.Background(), "ord-9", "0xdead"))
	require.Equal(t, "0xdead", patched["tx_hash"])
}

func TestAPIErrorMessageSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"unsupported destination currency"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	_, err := client.CreateOrder(context.Background(), CreateOrderRequest{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported destination currency")
}
