package razorpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// BaseURL is the Razorpay API base URL
	BaseURL = "https://api.razorpay.com/v1"
	// DefaultTimeout bounds every gateway call. Calls are never retried: order
	// creation mutates gateway state and payments are looked up after the
	// signature already proved them.
	DefaultTimeout = 15 * time.Second
)

// Client handles Razorpay API interactions
type Client struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

// Config holds configuration for the Razorpay client
type Config struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

// NewClient creates a new Razorpay API client
func NewClient(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}

	return &Client{
		keyID:     config.KeyID,
		keySecret: config.KeySecret,
		baseURL:   strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// OrderRequest is the body of POST /orders. Amount is in the minor unit.
type OrderRequest struct {
	Amount   int64                  `json:"amount"`
	Currency string                 `json:"currency"`
	Receipt  string                 `json:"receipt"`
	Notes    map[string]interface{} `json:"notes,omitempty"`
}

// Order is a gateway order. Raw keeps the exact gateway response so it can
// be handed back to the caller untouched.
type Order struct {
	ID        string                 `json:"id"`
	Entity    string                 `json:"entity"`
	Amount    int64                  `json:"amount"`
	AmountDue int64                  `json:"amount_due"`
	Currency  string                 `json:"currency"`
	Receipt   string                 `json:"receipt"`
	Status    string                 `json:"status"`
	Notes     map[string]interface{} `json:"notes"`
	CreatedAt int64                  `json:"created_at"`

	Raw json.RawMessage `json:"-"`
}

// Payment is a gateway payment as returned by GET /payments/:id
type Payment struct {
	ID        string          `json:"id"`
	Entity    string          `json:"entity"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	OrderID   string          `json:"order_id"`
	Method    string          `json:"method"`
	Email     string          `json:"email"`
	Captured  bool            `json:"captured"`
	Notes     json.RawMessage `json:"notes"`
	CreatedAt int64           `json:"created_at"`

	Raw json.RawMessage `json:"-"`
}

// CreateOrder opens a gateway order for the given amount
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	raw, err := c.doRequest(ctx, http.MethodPost, "/orders", req)
	if err != nil {
		return nil, err
	}

	var order Order
	if err := json.Unmarshal(raw, &order); err != nil {
		return nil, fmt.Errorf("failed to decode order: %w", err)
	}
	order.Raw = raw
	return &order, nil
}

// FetchPayment retrieves a payment by id
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if paymentID == "" {
		return nil, fmt.Errorf("payment id is required")
	}

	raw, err := c.doRequest(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}

	var payment Payment
	if err := json.Unmarshal(raw, &payment); err != nil {
		return nil, fmt.Errorf("failed to decode payment: %w", err)
	}
	payment.Raw = raw
	return &payment, nil
}

// doRequest performs an authenticated request and returns the raw 2xx body
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Error APIError `json:"error"`
		}
		if err := json.Unmarshal(respBody, &envelope); err != nil || envelope.Error.Description == "" {
			return nil, &APIError{
				StatusCode:  resp.StatusCode,
				Description: strings.TrimSpace(string(respBody)),
			}
		}
		envelope.Error.StatusCode = resp.StatusCode
		return nil, &envelope.Error
	}

	return respBody, nil
}

// APIError represents a Razorpay API error response
type APIError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Source      string `json:"source"`
	Step        string `json:"step"`
	Reason      string `json:"reason"`
	StatusCode  int    `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("razorpay API error (status %d): %s", e.StatusCode, e.Description)
	}
	return fmt.Sprintf("razorpay API error %s (status %d): %s", e.Code, e.StatusCode, e.Description)
}
