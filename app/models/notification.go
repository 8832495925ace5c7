package models

import "time"

const NotificationSubscriptionStatusChanged = "subscription.status_changed"

// SubscriptionNotification is the queue message consumed by the notifications feed.
type SubscriptionNotification struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	UserID     string             `json:"user_id"`
	Status     SubscriptionStatus `json:"status"`
	PlanType   PlanType           `json:"plan_type,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}
