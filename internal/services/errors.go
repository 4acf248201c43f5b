package services

import "errors"

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountNotFound   = errors.New("account not found")

	// ErrUpstream wraps every failure returned by the payment processor.
	ErrUpstream         = errors.New("payment processor error")
	ErrPlanProvisioning = errors.New("plan provisioning failed")

	ErrTierNotFound         = errors.New("tier not found")
	ErrPriceMismatch        = errors.New("price does not match tier")
	ErrSelfSubscription     = errors.New("cannot subscribe to yourself")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrNotSubscriptionOwner = errors.New("subscription belongs to another user")

	ErrWebhookNotConfigured = errors.New("webhook signature key not configured")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrInvalidPayload       = errors.New("invalid webhook payload")

	ErrResourceNotFound    = errors.New("resource not found")
	ErrUnknownAccessType   = errors.New("unknown access type")
	ErrNotPurchasable      = errors.New("resource is not for sale")
	ErrAlreadyPurchased    = errors.New("resource already purchased")
	ErrPaymentNotCompleted = errors.New("payment not completed")

	ErrCouponNotFound = errors.New("coupon not found or no longer valid")
	ErrCouponExists   = errors.New("coupon already exists")
	ErrInvalidCoupon  = errors.New("invalid coupon")

	ErrPayoutNotFound     = errors.New("payout not found")
	ErrPayoutNotPending   = errors.New("payout already reviewed")
	ErrInvalidBankDetails = errors.New("invalid bank details")

	ErrCreatorNotFound    = errors.New("creator not found")
	ErrCreatorHasHistory  = errors.New("creator has financial history")
	ErrAdminMismatch      = errors.New("admin uid does not match caller")
	ErrInvalidAction      = errors.New("invalid action")
	ErrCreatorNotApproved = errors.New("creator not approved")
)
