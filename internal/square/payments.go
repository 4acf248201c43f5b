package square

import (
	"context"
	"errors"
)

const (
	PaymentCompleted = "COMPLETED"
	PaymentApproved  = "APPROVED"
)

type PaymentInput struct {
	SourceID    string
	CustomerID  string
	AmountMinor int64
	Currency    string
	ReferenceID string
	OrderID     string
}

type OrderInput struct {
	LocationID  string
	CustomerID  string
	Name        string
	AmountMinor int64
	Currency    string
}

func (c *Client) CreatePayment(ctx context.Context, in PaymentInput, idempotencyKey string) (string, string, error) {
	payload := map[string]any{
		"idempotency_key": idempotencyKey,
		"source_id":       in.SourceID,
		"amount_money":    Money{Amount: in.AmountMinor, Currency: in.Currency},
		"location_id":     c.locationID,
	}
	if in.CustomerID != "" {
		payload["customer_id"] = in.CustomerID
	}
	if in.ReferenceID != "" {
		payload["reference_id"] = in.ReferenceID
	}
	if in.OrderID != "" {
		payload["order_id"] = in.OrderID
	}
	var resp struct {
		Payment struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"payment"`
	}
	if err := c.post(ctx, "create_payment", "/v2/payments", payload, &resp); err != nil {
		return "", "", err
	}
	if resp.Payment.ID == "" {
		return "", "", errors.New("square create_payment: empty payment id")
	}
	return resp.Payment.ID, resp.Payment.Status, nil
}

func (c *Client) CreateOrder(ctx context.Context, in OrderInput, idempotencyKey string) (string, error) {
	location := in.LocationID
	if location == "" {
		location = c.locationID
	}
	order := map[string]any{
		"location_id": location,
		"line_items": []map[string]any{{
			"name":             in.Name,
			"quantity":         "1",
			"base_price_money": Money{Amount: in.AmountMinor, Currency: in.Currency},
		}},
	}
	if in.CustomerID != "" {
		order["customer_id"] = in.CustomerID
	}
	payload := map[string]any{
		"idempotency_key": idempotencyKey,
		"order":           order,
	}
	var resp struct {
		Order struct {
			ID string `json:"id"`
		} `json:"order"`
	}
	if err := c.post(ctx, "create_order", "/v2/orders", payload, &resp); err != nil {
		return "", err
	}
	if resp.Order.ID == "" {
		return "", errors.New("square create_order: empty order id")
	}
	return resp.Order.ID, nil
}
