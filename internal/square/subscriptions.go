package square

import (
	"context"
	"errors"
	"net/url"
)

const (
	StatusActive   = "ACTIVE"
	StatusCanceled = "CANCELED"
)

type SubscriptionInput struct {
	CustomerID      string
	CardID          string
	PlanVariationID string
	LocationID      string
}

type subscriptionResponse struct {
	Subscription struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"subscription"`
}

func (c *Client) CreateSubscription(ctx context.Context, in SubscriptionInput, idempotencyKey string) (string, string, error) {
	location := in.LocationID
	if location == "" {
		location = c.locationID
	}
	payload := map[string]any{
		"idempotency_key":   idempotencyKey,
		"location_id":       location,
		"plan_variation_id": in.PlanVariationID,
		"customer_id":       in.CustomerID,
		"card_id":           in.CardID,
	}
	var resp subscriptionResponse
	if err := c.post(ctx, "create_subscription", "/v2/subscriptions", payload, &resp); err != nil {
		return "", "", err
	}
	if resp.Subscription.ID == "" {
		return "", "", errors.New("square create_subscription: empty subscription id")
	}
	return resp.Subscription.ID, resp.Subscription.Status, nil
}

// CancelSubscription schedules cancellation at the end of the paid period.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (string, error) {
	var resp subscriptionResponse
	path := "/v2/subscriptions/" + url.PathEscape(subscriptionID) + "/cancel"
	if err := c.post(ctx, "cancel_subscription", path, nil, &resp); err != nil {
		return "", err
	}
	return resp.Subscription.Status, nil
}
