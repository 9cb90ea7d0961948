package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"offramp/pkg/types"
)

// ErrQuoteUnavailable is returned when the counterparty cannot price the
// requested token/currency pair.
var ErrQuoteUnavailable = errors.New("quote unavailable for pair")

// Quoter fetches advisory fiat exchange quotes from the counterparty via
// the backend proxy.
type Quoter struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewQuoter creates a rate quoter.
func NewQuoter(baseURL, apiToken string) *Quoter {
	return &Quoter{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type quoteRequest struct {
	Token        string          `json:"token"`
	Amount       decimal.Decimal `json:"amount"`
	FiatCurrency string          `json:"fiat_currency"`
	SourceChain  string          `json:"source_chain"`
}

type quoteResponse struct {
	Rate decimal.Decimal `json:"rate"`
	Fees []struct {
		Name   string          `json:"name"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"fees"`
}

// GetQuote prices the given (token, amount, currency) tuple. The returned
// quote is advisory; the settled fiat amount is fixed by the counterparty
// at settlement time.
func (q *Quoter) GetQuote(ctx context.Context, token string, amount decimal.Decimal, fiatCurrency, sourceChain string) (*types.Quote, error) {
	if amount.Sign() <= 0 {
		return nil, fmt.Errorf("amount must be greater than 0")
	}

	body, err := json.Marshal(quoteRequest{
		Token:        token,
		Amount:       amount,
		FiatCurrency: fiatCurrency,
		SourceChain:  sourceChain,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quote request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.baseURL+"/offramp/quote", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+q.apiToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get quote: %w", err)
	}
	defer resp.Body.Close()

	// 422 is the counterparty's "pair not priceable" answer.
	if resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s/%s", ErrQuoteUnavailable, token, fiatCurrency)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		var errResp struct {
			Message string `json:"message"`
		}
		if jsonErr := json.Unmarshal(bodyBytes, &errResp); jsonErr == nil && errResp.Message != "" {
			return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, errResp.Message)
		}
		return nil, fmt.Errorf("API returned status code %d", resp.StatusCode)
	}

	var qr quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	if qr.Rate.Sign() <= 0 {
		return nil, fmt.Errorf("%w: counterparty returned no rate", ErrQuoteUnavailable)
	}

	quote := &types.Quote{
		Token:         token,
		Amount:        amount,
		Rate:          qr.Rate,
		EstimatedFiat: amount.Mul(qr.Rate),
		FetchedAt:     time.Now(),
	}
	for _, fee := range qr.Fees {
		quote.Fees = append(quote.Fees, types.FeeComponent{Name: fee.Name, Amount: fee.Amount})
	}

	return quote, nil
}
