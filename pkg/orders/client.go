package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"offramp/pkg/types"
)

// CreateOrderRequest carries everything the counterparty needs to open a
// settlement order.
type CreateOrderRequest struct {
	Amount         decimal.Decimal   `json:"amount"`
	Token          string            `json:"token"`
	Chain          string            `json:"chain"`
	BankAccount    types.BankAccount `json:"bank_account"`
	ReturnAddress  string            `json:"return_address"`  // refund destination if settlement fails
	IdempotencyKey string            `json:"idempotency_key"` // client-generated, one per saga attempt
}

// LedgerEntry records a broadcast transfer in the backend ledger. Logging
// it is best-effort; the saga never fails because of it.
type LedgerEntry struct {
	OrderID string          `json:"order_id"`
	TxHash  string          `json:"tx_hash"`
	Token   string          `json:"token"`
	Chain   string          `json:"chain"`
	Amount  decimal.Decimal `json:"amount"`
}

// Client talks to the settlement counterparty through the backend proxy.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a settlement counterparty client.
func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateOrder opens a settlement order. The returned receive address is
// chosen by the counterparty for this order only and must never be reused
// across orders. A failure here means no funds have moved.
func (c *Client) CreateOrder(ctx context.Context, req CreateOrderRequest) (*types.SettlementOrder, error) {
	var order types.SettlementOrder
	if err := c.do(ctx, http.MethodPost, "/offramp/orders", req, &order); err != nil {
		return nil, fmt.Errorf("failed to create settlement order: %w", err)
	}
	if order.OrderID == "" || order.ReceiveAddress == "" {
		return nil, fmt.Errorf("counterparty returned an incomplete order")
	}
	if order.Status == "" {
		order.Status = types.OrderPending
	}
	return &order, nil
}

// GetOrder reads the current state of an order.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*types.SettlementOrder, error) {
	var order types.SettlementOrder
	if err := c.do(ctx, http.MethodGet, "/offramp/orders/"+orderID, nil, &order); err != nil {
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	return &order, nil
}

// AttachTxHash records the broadcast transaction hash on the order.
func (c *Client) AttachTxHash(ctx context.Context, orderID, txHash string) error {
	body := map[string]string{"tx_hash": txHash}
	if err := c.do(ctx, http.MethodPatch, "/offramp/orders/"+orderID, body, nil); err != nil {
		return fmt.Errorf("failed to attach tx hash to order %s: %w", orderID, err)
	}
	return nil
}

// LogTransfer writes the transfer to the backend ledger.
func (c *Client) LogTransfer(ctx context.Context, entry LedgerEntry) error {
	if err := c.do(ctx, http.MethodPost, "/offramp/ledger", entry, nil); err != nil {
		return fmt.Errorf("failed to log transfer: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		var errResp struct {
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(bodyBytes, &errResp); jsonErr == nil && errResp.Message != "" {
			return fmt.Errorf("API error (status %d): %s", resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("API returned status code %d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
