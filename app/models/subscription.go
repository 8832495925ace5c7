// Package models defines the subscription record and its lifecycle vocabulary.
package models

import "time"

type PlanType string

const (
	PlanMonthly PlanType = "monthly"
	PlanAnnual  PlanType = "annual"
)

// Valid reports whether p is a plan we sell.
func (p PlanType) Valid() bool {
	return p == PlanMonthly || p == PlanAnnual
}

type SubscriptionStatus string

const (
	StatusNone     SubscriptionStatus = "none"
	StatusPending  SubscriptionStatus = "pending"
	StatusActive   SubscriptionStatus = "active"
	StatusPastDue  SubscriptionStatus = "past_due"
	StatusPaused   SubscriptionStatus = "paused"
	StatusCanceled SubscriptionStatus = "canceled"
)

// Subscription mirrors a row of the subscriptions table.
type Subscription struct {
	UserID            string             `db:"user_id"`
	PlanType          PlanType           `db:"plan_type"`
	Status            SubscriptionStatus `db:"status"`
	CustomerID        string             `db:"stripe_customer_id"`
	SubscriptionID    string             `db:"stripe_subscription_id"`
	CheckoutSessionID string             `db:"checkout_session_id"`
	LastPaymentAt     *time.Time         `db:"last_payment_at"`
	NextPaymentAt     *time.Time         `db:"next_payment_at"`
	CanceledAt        *time.Time         `db:"canceled_at"`
	CancelAtPeriodEnd bool               `db:"cancel_at_period_end"`
	CreatedAt         time.Time          `db:"created_at"`
	UpdatedAt         time.Time          `db:"updated_at"`
}

// SubscriptionUpdate is a partial change reported by the billing processor.
// Nil fields are left untouched.
type SubscriptionUpdate struct {
	CustomerID        string
	UserID            string
	// CheckoutSessionID is set when the update completes a checkout.
	CheckoutSessionID string
	Status            SubscriptionStatus
	SubscriptionID    *string
	LastPaymentAt     *time.Time
	NextPaymentAt     *time.Time
	CanceledAt        *time.Time
	CancelAtPeriodEnd *bool
}

// AppliedUpdate is what the store reports back after persisting an update.
type AppliedUpdate struct {
	UserID         string             `db:"user_id"`
	PlanType       PlanType           `db:"plan_type"`
	PreviousStatus SubscriptionStatus `db:"previous_status"`
	Status         SubscriptionStatus `db:"status"`
}

// StatusChanged reports whether the update moved the subscription to a new status.
func (a AppliedUpdate) StatusChanged() bool {
	return a.PreviousStatus != a.Status
}

// BillingEvent is a verified webhook event reduced to what we act on.
// Update is nil for events we ignore.
type BillingEvent struct {
	ID     string
	Type   string
	Update *SubscriptionUpdate
}

// SubscriptionStatusView is the polling response.
type SubscriptionStatusView struct {
	Status            SubscriptionStatus `json:"status"`
	PlanType          PlanType           `json:"plan_type,omitempty"`
	IsActive          bool               `json:"is_active"`
	LastPaymentAt     *time.Time         `json:"last_payment_at,omitempty"`
	NextPaymentAt     *time.Time         `json:"next_payment_at,omitempty"`
	CancelAtPeriodEnd bool               `json:"cancel_at_period_end"`
}

// View builds the polling response for a subscription row.
func (s Subscription) View() SubscriptionStatusView {
	return SubscriptionStatusView{
		Status:            s.Status,
		PlanType:          s.PlanType,
		IsActive:          s.Status == StatusActive,
		LastPaymentAt:     s.LastPaymentAt,
		NextPaymentAt:     s.NextPaymentAt,
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
}

// PaymentMethod is a saved card as shown to the user.
type PaymentMethod struct {
	ID        string `json:"id"`
	Brand     string `json:"brand"`
	Last4     string `json:"last4"`
	ExpMonth  int64  `json:"exp_month"`
	ExpYear   int64  `json:"exp_year"`
	IsDefault bool   `json:"is_default"`
}
