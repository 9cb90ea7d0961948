package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"offramp/pkg/types"
)

// RelayClient talks to the bridge relay backend.
type RelayClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRelayClient creates a relay backend client.
func NewRelayClient(baseURL string) *RelayClient {
	return &RelayClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Quote prices a bridge of the given token amount to the settlement chain.
func (c *RelayClient) Quote(ctx context.Context, token string, amount decimal.Decimal) (*types.BridgeQuote, error) {
	endpoint := fmt.Sprintf("%s/bridge/quote?token=%s&amount=%s",
		c.baseURL, url.QueryEscape(token), url.QueryEscape(amount.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}

	var quote types.BridgeQuote
	if err := c.do(req, &quote); err != nil {
		return nil, fmt.Errorf("failed to get bridge quote: %w", err)
	}
	quote.FetchedAt = time.Now()

	return &quote, nil
}

type buildRequest struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Token  string          `json:"token"`
	Amount decimal.Decimal `json:"amount"`
}

// Build asks the relay for an unsigned, serialized source-chain
// transaction moving the funds.
func (c *RelayClient) Build(ctx context.Context, from, to, token string, amount decimal.Decimal) (*types.BridgeTransaction, error) {
	body, err := json.Marshal(buildRequest{From: from, To: to, Token: token, Amount: amount})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bridge/build", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var tx types.BridgeTransaction
	if err := c.do(req, &tx); err != nil {
		return nil, fmt.Errorf("failed to build bridge transaction: %w", err)
	}
	if tx.SerializedTx == "" {
		return nil, fmt.Errorf("relay returned an empty transaction")
	}

	return &tx, nil
}

func (c *RelayClient) do(req *http.Request, out interface{}) error {
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
			return fmt.Errorf("relay error (status %d): %s", resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("relay returned status code %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode relay response: %w", err)
	}
	return nil
}
