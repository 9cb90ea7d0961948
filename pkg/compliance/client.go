package compliance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"offramp/pkg/types"
)

// VerificationSession is the entry point into the KYC provider's document
// flow. Depending on the provider mode the backend returns a hosted URL or
// an SDK token for the embedded flow.
type VerificationSession struct {
	URL      string `json:"url,omitempty"`
	SDKToken string `json:"sdk_token,omitempty"`
}

// Client talks to the compliance provider through the backend proxy.
type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// NewClient creates a compliance API client.
func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:  baseURL,
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchStatus reads the current verification status from the backend.
func (c *Client) FetchStatus(ctx context.Context) (types.ComplianceStatus, error) {
	var resp struct {
		Status types.ComplianceStatus `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/kyc/status", nil, &resp); err != nil {
		return "", fmt.Errorf("failed to fetch verification status: %w", err)
	}
	return resp.Status, nil
}

// ForceCheck asks the backend to re-sync with the provider before
// returning the status.
func (c *Client) ForceCheck(ctx context.Context) (types.ComplianceStatus, error) {
	var resp struct {
		Status types.ComplianceStatus `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/kyc/check", nil, &resp); err != nil {
		return "", fmt.Errorf("failed to re-check verification status: %w", err)
	}
	return resp.Status, nil
}

// StartVerification opens a new verification session with the provider.
func (c *Client) StartVerification(ctx context.Context) (*VerificationSession, error) {
	var session VerificationSession
	if err := c.do(ctx, http.MethodPost, "/kyc/start", nil, &session); err != nil {
		return nil, fmt.Errorf("failed to start verification session: %w", err)
	}
	if session.URL == "" && session.SDKToken == "" {
		return nil, fmt.Errorf("verification session has neither URL nor SDK token")
	}
	return &session, nil
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
