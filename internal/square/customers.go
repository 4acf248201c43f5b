package square

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

type CustomerInput struct {
	Email       string
	ReferenceID string
}

type CardInput struct {
	SourceID   string
	CustomerID string
}

func (c *Client) CreateCustomer(ctx context.Context, in CustomerInput) (string, error) {
	payload := map[string]any{
		"idempotency_key": uuid.NewString(),
		"email_address":   in.Email,
		"reference_id":    in.ReferenceID,
	}
	var resp struct {
		Customer struct {
			ID string `json:"id"`
		} `json:"customer"`
	}
	if err := c.post(ctx, "create_customer", "/v2/customers", payload, &resp); err != nil {
		return "", err
	}
	if resp.Customer.ID == "" {
		return "", errors.New("square create_customer: empty customer id")
	}
	return resp.Customer.ID, nil
}

// CreateCard stores a one-time payment source token as a card on file.
func (c *Client) CreateCard(ctx context.Context, in CardInput) (string, error) {
	payload := map[string]any{
		"idempotency_key": uuid.NewString(),
		"source_id":       in.SourceID,
		"card": map[string]string{
			"customer_id": in.CustomerID,
		},
	}
	var resp struct {
		Card struct {
			ID string `json:"id"`
		} `json:"card"`
	}
	if err := c.post(ctx, "create_card", "/v2/cards", payload, &resp); err != nil {
		return "", err
	}
	if resp.Card.ID == "" {
		return "", errors.New("square create_card: empty card id")
	}
	return resp.Card.ID, nil
}
