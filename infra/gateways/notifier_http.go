package gateways

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// NotifierHttp posts low-stock events to the notifications service. The caller
// treats delivery as best-effort; this gateway just reports what happened.
type NotifierHttp struct {
	url        string
	httpClient *http.Client
}

func NewNotifierHttp(url string, httpClient *http.Client) *NotifierHttp {
	return &NotifierHttp{url: url, httpClient: httpClient}
}

type notificationEvent struct {
	Type string           `json:"type"`
	Data lowStockEventData `json:"data"`
}

type lowStockEventData struct {
	SKU       string `json:"sku"`
	Available int    `json:"available"`
}

func (n *NotifierHttp) LowStock(ctx context.Context, sku string, available int) error {
	payload := notificationEvent{
		Type: "LOW_STOCK",
		Data: lowStockEventData{SKU: sku, Available: available},
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}
	return nil
}
