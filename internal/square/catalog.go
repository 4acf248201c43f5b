package square

import (
	"context"
	"errors"
)

const (
	objectPlan          = "SUBSCRIPTION_PLAN"
	objectPlanVariation = "SUBSCRIPTION_PLAN_VARIATION"

	tempPlanID      = "#plan"
	tempVariationID = "#variation"
)

type PlanInput struct {
	Name       string
	PriceMinor int64
	Currency   string
}

type catalogObject struct {
	ID               string `json:"id"`
	Type             string `json:"type"`
	SubscriptionPlan *struct {
		Name       string          `json:"name"`
		Variations []catalogObject `json:"subscription_plan_variations"`
	} `json:"subscription_plan_data,omitempty"`
}

// SearchCatalogPlan looks up a subscription plan by exact name and returns the
// id of its first variation.
func (c *Client) SearchCatalogPlan(ctx context.Context, name string) (string, bool, error) {
	payload := map[string]any{
		"object_types": []string{objectPlan},
		"query": map[string]any{
			"exact_query": map[string]string{
				"attribute_name":  "name",
				"attribute_value": name,
			},
		},
		"limit": 1,
	}
	var resp struct {
		Objects []catalogObject `json:"objects"`
	}
	if err := c.post(ctx, "search_catalog", "/v2/catalog/search", payload, &resp); err != nil {
		return "", false, err
	}
	for _, obj := range resp.Objects {
		if obj.Type != objectPlan || obj.SubscriptionPlan == nil || obj.SubscriptionPlan.Name != name {
			continue
		}
		for _, variation := range obj.SubscriptionPlan.Variations {
			if variation.ID != "" {
				return variation.ID, true, nil
			}
		}
	}
	return "", false, nil
}

// UpsertPlan creates a plan and one monthly static-price variation in a single
// batch and returns the variation id.
func (c *Client) UpsertPlan(ctx context.Context, in PlanInput, idempotencyKey string) (string, error) {
	plan := map[string]any{
		"type": objectPlan,
		"id":   tempPlanID,
		"subscription_plan_data": map[string]any{
			"name": in.Name,
		},
	}
	variation := map[string]any{
		"type": objectPlanVariation,
		"id":   tempVariationID,
		"subscription_plan_variation_data": map[string]any{
			"name":                 in.Name + " monthly",
			"subscription_plan_id": tempPlanID,
			"phases": []map[string]any{{
				"ordinal": 0,
				"cadence": "MONTHLY",
				"pricing": map[string]any{
					"type":        "STATIC",
					"price_money": Money{Amount: in.PriceMinor, Currency: in.Currency},
				},
			}},
		},
	}
	payload := map[string]any{
		"idempotency_key": idempotencyKey,
		"batches": []map[string]any{{
			"objects": []any{plan, variation},
		}},
	}
	var resp struct {
		Objects    []catalogObject `json:"objects"`
		IDMappings []struct {
			ClientObjectID string `json:"client_object_id"`
			ObjectID       string `json:"object_id"`
		} `json:"id_mappings"`
	}
	if err := c.post(ctx, "upsert_plan", "/v2/catalog/batch-upsert", payload, &resp); err != nil {
		return "", err
	}
	for _, m := range resp.IDMappings {
		if m.ClientObjectID == tempVariationID && m.ObjectID != "" {
			return m.ObjectID, nil
		}
	}
	for _, obj := range resp.Objects {
		if obj.Type == objectPlanVariation && obj.ID != "" {
			return obj.ID, nil
		}
	}
	return "", errors.New("square upsert_plan: no variation id in response")
}
