package app

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrStaleUpdate          = errors.New("update is for a replaced subscription")
	ErrInvalidPlan          = errors.New("invalid plan type")
	ErrBillingNotConfigured = errors.New("billing not configured")
	ErrNoCustomer           = errors.New("billing customer missing for user")
	ErrNoSubscription       = errors.New("no processor subscription for user")
	ErrAINotConfigured      = errors.New("ai not configured")
)
