// Package client is the commerce-side caller of the reservation protocol:
// reserve at checkout, commit after payment succeeds, release when it fails.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/openmart/inventory/infra/tracing"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

type Line struct {
	SKU      string `json:"sku"`
	Quantity int    `json:"quantity"`
}

type reserveRequest struct {
	OrderID string `json:"order_id"`
	Items   []Line `json:"items"`
}

type resolveRequest struct {
	OrderID string `json:"order_id"`
}

type reserveResponse struct {
	Success       bool   `json:"success"`
	ReservationID string `json:"reservation_id"`
	Message       string `json:"message"`
}

type resolveResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Stock struct {
	SKU       string `json:"sku"`
	Quantity  int    `json:"quantity"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

// Reserve places a hold for the order. The order id doubles as the idempotency
// key: retrying after a timeout is safe.
func (c *Client) Reserve(ctx context.Context, orderID string, lines []Line) (string, error) {
	var out reserveResponse
	if err := c.post(ctx, "/inventory/reserve", reserveRequest{OrderID: orderID, Items: lines}, &out); err != nil {
		return "", err
	}
	return out.ReservationID, nil
}

func (c *Client) Commit(ctx context.Context, orderID string) error {
	var out resolveResponse
	return c.post(ctx, "/inventory/commit", resolveRequest{OrderID: orderID}, &out)
}

func (c *Client) Release(ctx context.Context, orderID string) error {
	var out resolveResponse
	return c.post(ctx, "/inventory/release", resolveRequest{OrderID: orderID}, &out)
}

func (c *Client) Stock(ctx context.Context, sku string) (*Stock, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/inventory/"+sku, nil)
	if err != nil {
		return nil, err
	}
	tracing.Inject(ctx, req.Header)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp); err != nil {
		return nil, err
	}
	var stock Stock
	if err := json.NewDecoder(resp.Body).Decode(&stock); err != nil {
		return nil, err
	}
	return &stock, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	tracing.Inject(ctx, req.Header)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := classifyStatus(resp); err != nil {
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func classifyStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}
	if resp.StatusCode == http.StatusGatewayTimeout {
		return NewTimeoutError("timeout calling inventory service")
	}
	if resp.StatusCode >= 500 && resp.StatusCode <= 599 {
		return NewNetworkError("network error calling inventory service")
	}
	var body struct {
		Message string `json:"message"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	return &APIError{StatusCode: resp.StatusCode, Message: body.Message}
}
