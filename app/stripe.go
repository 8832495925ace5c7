package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example/meal-planner-api/app/config"
	"example/meal-planner-api/app/models"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
)

// CheckoutRequest describes a subscription checkout for one user.
type CheckoutRequest struct {
	UserID     string
	CustomerID string
	PlanType   models.PlanType
}

// CheckoutResult is where the client should send the user to pay.
type CheckoutResult struct {
	URL       string
	SessionID string
}

// BillingProvider is the subset of the payment processor this service uses.
type BillingProvider interface {
	CreateCustomer(ctx context.Context, userID, email string) (string, error)
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
	CreatePortal(ctx context.Context, customerID string) (string, error)
	FetchSubscription(ctx context.Context, subscriptionID, checkoutSessionID string) (*models.SubscriptionUpdate, error)
	ListPaymentMethods(ctx context.Context, customerID string) ([]models.PaymentMethod, error)
	CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*models.SubscriptionUpdate, error)
	ParseEvent(payload []byte, signature string) (*models.BillingEvent, error)
}

type stripeBilling struct {
	api *client.API
	cfg config.StripeConfig
}

// NewStripeBilling builds a Stripe-backed BillingProvider.
func NewStripeBilling(cfg config.StripeConfig) (BillingProvider, error) {
	if !cfg.Configured() {
		return nil, ErrBillingNotConfigured
	}
	return &stripeBilling{
		api: client.New(cfg.SecretKey, nil),
		cfg: cfg,
	}, nil
}

// CreateCustomer creates a Stripe Customer tagged with metadata user_id = <userID>.
func (s *stripeBilling) CreateCustomer(ctx context.Context, userID, email string) (string, error) {
	if userID == "" {
		return "", errors.New("missing user id")
	}
	params := &stripe.CustomerParams{
		Metadata: map[string]string{
			"user_id": userID,
		},
	}
	if email != "" {
		params.Email = stripe.String(email)
	}
	params.Context = ctx

	cust, err := s.api.Customers.New(params)
	if err != nil {
		return "", err
	}
	return cust.ID, nil
}

func (s *stripeBilling) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	priceID := s.cfg.PriceID(string(req.PlanType))
	if priceID == "" || s.cfg.FrontendURL == "" {
		return nil, fmt.Errorf("%w: price_id=%t frontend_url=%t", ErrBillingNotConfigured, priceID != "", s.cfg.FrontendURL != "")
	}

	metadata := map[string]string{
		"user_id":   req.UserID,
		"plan_type": string(req.PlanType),
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(req.CustomerID),
		ClientReferenceID: stripe.String(req.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
		Metadata:   metadata,
		SuccessURL: stripe.String(s.cfg.FrontendURL + "/subscription/thank-you?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(s.cfg.FrontendURL + "/subscription"),
	}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutResult{URL: sess.URL, SessionID: sess.ID}, nil
}

func (s *stripeBilling) CreatePortal(ctx context.Context, customerID string) (string, error) {
	if s.cfg.FrontendURL == "" {
		return "", fmt.Errorf("%w: frontend_url=false", ErrBillingNotConfigured)
	}
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.cfg.FrontendURL + "/settings/billing"),
	}
	params.Context = ctx

	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", err
	}
	return sess.URL, nil
}

// FetchSubscription reads the processor's view of a subscription. A checkout
// session wins over subscriptionID and is resolved first; a session that has
// not produced a subscription yet yields (nil, nil).
func (s *stripeBilling) FetchSubscription(ctx context.Context, subscriptionID, checkoutSessionID string) (*models.SubscriptionUpdate, error) {
	if checkoutSessionID != "" {
		sessParams := &stripe.CheckoutSessionParams{}
		sessParams.Context = ctx
		sess, err := s.api.CheckoutSessions.Get(checkoutSessionID, sessParams)
		if err != nil {
			return nil, err
		}
		if sess.Subscription == nil || sess.Subscription.ID == "" {
			return nil, nil
		}
		subscriptionID = sess.Subscription.ID
	}
	if subscriptionID == "" {
		return nil, nil
	}

	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := s.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, err
	}
	update := subscriptionUpdate(sub)
	update.CheckoutSessionID = checkoutSessionID
	return update, nil
}

func (s *stripeBilling) ListPaymentMethods(ctx context.Context, customerID string) ([]models.PaymentMethod, error) {
	custParams := &stripe.CustomerParams{}
	custParams.Context = ctx
	cust, err := s.api.Customers.Get(customerID, custParams)
	if err != nil {
		return nil, err
	}
	defaultID := ""
	if cust.InvoiceSettings != nil && cust.InvoiceSettings.DefaultPaymentMethod != nil {
		defaultID = cust.InvoiceSettings.DefaultPaymentMethod.ID
	}

	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String(string(stripe.PaymentMethodTypeCard)),
	}
	params.Context = ctx

	out := []models.PaymentMethod{}
	iter := s.api.PaymentMethods.List(params)
	for iter.Next() {
		pm := iter.PaymentMethod()
		method := models.PaymentMethod{
			ID:        pm.ID,
			IsDefault: pm.ID == defaultID,
		}
		if pm.Card != nil {
			method.Brand = string(pm.Card.Brand)
			method.Last4 = pm.Card.Last4
			method.ExpMonth = pm.Card.ExpMonth
			method.ExpYear = pm.Card.ExpYear
		}
		out = append(out, method)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *stripeBilling) CancelAtPeriodEnd(ctx context.Context, subscriptionID string) (*models.SubscriptionUpdate, error) {
	params := &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	}
	params.Context = ctx
	sub, err := s.api.Subscriptions.Update(subscriptionID, params)
	if err != nil {
		return nil, err
	}
	return subscriptionUpdate(sub), nil
}

func (s *stripeBilling) ParseEvent(payload []byte, signature string) (*models.BillingEvent, error) {
	return parseStripeEvent(payload, signature, s.cfg.WebhookSecret)
}

// parseStripeEvent verifies the webhook signature and reduces the event to a
// subscription update.
func parseStripeEvent(payload []byte, signature, secret string) (*models.BillingEvent, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: webhook secret missing", ErrBillingNotConfigured)
	}
	event, err := webhook.ConstructEventWithOptions(
		payload,
		signature,
		secret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}

	update, err := eventToUpdate(event)
	if err != nil {
		return nil, err
	}
	return &models.BillingEvent{
		ID:     event.ID,
		Type:   string(event.Type),
		Update: update,
	}, nil
}

// eventToUpdate maps processor lifecycle events onto our statuses.
// Events we do not act on return (nil, nil).
func eventToUpdate(event stripe.Event) (*models.SubscriptionUpdate, error) {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, nil
	}
	occurred := time.Unix(event.Created, 0).UTC()

	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("invalid session payload: %w", err)
		}
		if sess.Mode != stripe.CheckoutSessionModeSubscription {
			return nil, nil
		}
		update := &models.SubscriptionUpdate{
			UserID:            sess.ClientReferenceID,
			CheckoutSessionID: sess.ID,
			Status:            models.StatusActive,
		}
		if sess.Customer != nil {
			update.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil && sess.Subscription.ID != "" {
			update.SubscriptionID = stripe.String(sess.Subscription.ID)
		}
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			update.Status = models.StatusPending
		} else {
			update.LastPaymentAt = &occurred
		}
		return update, nil

	case "invoice.paid", "invoice.payment_succeeded", "invoice.payment_failed":
		var inv stripe.Invoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("invalid invoice payload: %w", err)
		}
		if inv.Subscription == nil || inv.Subscription.ID == "" {
			return nil, nil
		}
		update := &models.SubscriptionUpdate{
			SubscriptionID: stripe.String(inv.Subscription.ID),
		}
		if inv.Customer != nil {
			update.CustomerID = inv.Customer.ID
		}
		if event.Type == "invoice.payment_failed" {
			update.Status = models.StatusPastDue
			return update, nil
		}

		update.Status = models.StatusActive
		paidAt := occurred
		if inv.StatusTransitions != nil && inv.StatusTransitions.PaidAt > 0 {
			paidAt = time.Unix(inv.StatusTransitions.PaidAt, 0).UTC()
		}
		update.LastPaymentAt = &paidAt
		if end := invoicePeriodEnd(&inv); end > 0 {
			next := time.Unix(end, 0).UTC()
			update.NextPaymentAt = &next
		}
		return update, nil

	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.paused",
		"customer.subscription.resumed",
		"customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("invalid subscription payload: %w", err)
		}
		update := subscriptionUpdate(&sub)
		if event.Type == "customer.subscription.deleted" {
			update.Status = models.StatusCanceled
			if update.CanceledAt == nil {
				update.CanceledAt = &occurred
			}
		}
		return update, nil
	}

	return nil, nil
}

func subscriptionUpdate(sub *stripe.Subscription) *models.SubscriptionUpdate {
	update := &models.SubscriptionUpdate{
		UserID:            sub.Metadata["user_id"],
		Status:            mapSubscriptionStatus(sub.Status),
		SubscriptionID:    stripe.String(sub.ID),
		CancelAtPeriodEnd: stripe.Bool(sub.CancelAtPeriodEnd),
	}
	if sub.Customer != nil {
		update.CustomerID = sub.Customer.ID
	}
	if sub.CurrentPeriodEnd > 0 {
		next := time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		update.NextPaymentAt = &next
	}
	if sub.CanceledAt > 0 {
		canceled := time.Unix(sub.CanceledAt, 0).UTC()
		update.CanceledAt = &canceled
	}
	return update
}

// invoicePeriodEnd returns the end of the period the invoice pays for.
// The invoice-level period describes the previous cycle, so the line item wins.
func invoicePeriodEnd(inv *stripe.Invoice) int64 {
	if inv.Lines != nil {
		for _, line := range inv.Lines.Data {
			if line != nil && line.Period != nil && line.Period.End > 0 {
				return line.Period.End
			}
		}
	}
	return 0
}

func mapSubscriptionStatus(status stripe.SubscriptionStatus) models.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.StatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return models.StatusPastDue
	case stripe.SubscriptionStatusPaused:
		return models.StatusPaused
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return models.StatusCanceled
	default:
		return models.StatusPending
	}
}
