package handlers

import (
	"errors"
	"strings"
	"time"

	"creatorpay/internal/money"
)

var errInvalidAmount = errors.New("amount must be a positive value with at most two decimals")
var errInvalidExpiry = errors.New("expiresAt must be an RFC 3339 timestamp in the future")

func parseAmountMinor(raw string) (int64, error) {
	amount, err := money.ParseMinor(strings.TrimSpace(raw))
	if err != nil || amount <= 0 {
		return 0, errInvalidAmount
	}
	return amount, nil
}

func parseExpiry(raw string, now time.Time) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil || !at.After(now) {
		return nil, errInvalidExpiry
	}
	at = at.UTC()
	return &at, nil
}
