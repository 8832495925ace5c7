package app

import (
	"context"
	"errors"
	"io"
	"net/http"

	"example/meal-planner-api/app/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const maxWebhookBytes = int64(65536)

type createSubscriptionRequest struct {
	PlanType models.PlanType `json:"plan_type" binding:"required,oneof=monthly annual"`
}

// CreateSubscription starts a checkout for the authenticated user and records
// the attempt as pending.
func (h *Handlers) CreateSubscription(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	if !h.billingReady(c) {
		return
	}
	var req createSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrInvalidPlan.Error())
		return
	}

	ctx := c.Request.Context()
	logger := loggerFor(h.log, c).WithFields(logrus.Fields{"user_id": claims.Subject, "plan_type": req.PlanType})

	existing, err := h.store.GetByUserID(ctx, claims.Subject)
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		logger.WithError(err).Error("create subscription: lookup failed")
		respondError(c, http.StatusInternalServerError, "failed to load subscription")
		return
	}
	if existing != nil && existing.Status == models.StatusActive {
		respondError(c, http.StatusConflict, "subscription already active")
		return
	}

	customerID := ""
	if existing != nil {
		customerID = existing.CustomerID
	}
	if customerID == "" {
		customerID, err = h.billing.CreateCustomer(ctx, claims.Subject, claims.Email)
		if err != nil {
			logger.WithError(err).Error("create subscription: customer creation failed")
			respondError(c, http.StatusInternalServerError, "failed to prepare billing")
			return
		}
	}

	checkout, err := h.billing.CreateCheckout(ctx, CheckoutRequest{
		UserID:     claims.Subject,
		CustomerID: customerID,
		PlanType:   req.PlanType,
	})
	if err != nil {
		logger.WithError(err).Error("create subscription: checkout failed")
		if errors.Is(err, ErrBillingNotConfigured) {
			respondError(c, http.StatusServiceUnavailable, "billing not configured")
			return
		}
		respondError(c, http.StatusInternalServerError, "failed to create checkout session")
		return
	}

	err = h.store.SavePending(ctx, &models.Subscription{
		UserID:            claims.Subject,
		PlanType:          req.PlanType,
		Status:            models.StatusPending,
		CustomerID:        customerID,
		CheckoutSessionID: checkout.SessionID,
	})
	if err != nil {
		logger.WithError(err).Error("create subscription: save failed")
		respondError(c, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	h.invalidate(ctx, logger, claims.Subject)

	logger.WithField("session_id", checkout.SessionID).Info("checkout session created")
	c.JSON(http.StatusOK, gin.H{
		"checkout_url": checkout.URL,
		"session_id":   checkout.SessionID,
		"plan_type":    req.PlanType,
		"status":       models.StatusPending,
	})
}

// GetSubscriptionStatus answers the client's polling loop after checkout.
// A pending row is reconciled with the processor so the client does not
// depend on webhook latency.
func (h *Handlers) GetSubscriptionStatus(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	if h.store == nil {
		respondError(c, http.StatusServiceUnavailable, "subscriptions not configured")
		return
	}

	ctx := c.Request.Context()
	logger := loggerFor(h.log, c).WithField("user_id", claims.Subject)

	cached, err := h.cache.Get(ctx, claims.Subject)
	if err != nil {
		logger.WithError(err).Warn("status cache read failed")
	}
	if cached != nil {
		c.JSON(http.StatusOK, cached)
		return
	}

	sub, err := h.store.GetByUserID(ctx, claims.Subject)
	if errors.Is(err, ErrSubscriptionNotFound) {
		c.JSON(http.StatusOK, models.SubscriptionStatusView{Status: models.StatusNone})
		return
	}
	if err != nil {
		logger.WithError(err).Error("status: lookup failed")
		respondError(c, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	if sub.Status == models.StatusPending && h.billing != nil && (sub.SubscriptionID != "" || sub.CheckoutSessionID != "") {
		sub = h.reconcile(ctx, logger, sub)
	}

	view := sub.View()
	// Pending rows are being polled and change on the next webhook.
	if view.Status != models.StatusPending {
		if err := h.cache.Set(ctx, claims.Subject, view); err != nil {
			logger.WithError(err).Warn("status cache write failed")
		}
	}
	c.JSON(http.StatusOK, view)
}

// reconcile pulls the processor's state for a pending row. The row's checkout
// session is authoritative over any linked subscription. Failures keep the
// stored row.
func (h *Handlers) reconcile(ctx context.Context, logger logrus.FieldLogger, sub *models.Subscription) *models.Subscription {
	subscriptionID := sub.SubscriptionID
	if sub.CheckoutSessionID != "" {
		subscriptionID = ""
	}
	update, err := h.billing.FetchSubscription(ctx, subscriptionID, sub.CheckoutSessionID)
	if err != nil {
		logger.WithError(err).Warn("status: processor lookup failed")
		return sub
	}
	if update == nil {
		return sub
	}
	update.CustomerID = ""
	update.UserID = sub.UserID
	update.CheckoutSessionID = sub.CheckoutSessionID

	applied, err := h.store.ApplyUpdate(ctx, *update)
	if err != nil {
		logger.WithError(err).Error("status: reconcile write failed")
		return sub
	}
	h.afterUpdate(ctx, logger, applied)

	fresh, err := h.store.GetByUserID(ctx, sub.UserID)
	if err != nil {
		logger.WithError(err).Warn("status: reload failed")
		return sub
	}
	return fresh
}

// ListPaymentMethods returns the saved cards of the user's billing customer.
func (h *Handlers) ListPaymentMethods(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	if !h.billingReady(c) {
		return
	}

	ctx := c.Request.Context()
	logger := loggerFor(h.log, c).WithField("user_id", claims.Subject)

	sub, err := h.store.GetByUserID(ctx, claims.Subject)
	if errors.Is(err, ErrSubscriptionNotFound) || (err == nil && sub.CustomerID == "") {
		c.JSON(http.StatusOK, gin.H{"payment_methods": []models.PaymentMethod{}})
		return
	}
	if err != nil {
		logger.WithError(err).Error("payment methods: lookup failed")
		respondError(c, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	methods, err := h.billing.ListPaymentMethods(ctx, sub.CustomerID)
	if err != nil {
		logger.WithError(err).WithField("customer_id", sub.CustomerID).Error("payment methods: processor call failed")
		respondError(c, http.StatusBadGateway, "failed to list payment methods")
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment_methods": methods})
}

// CancelSubscription schedules cancellation at the end of the paid period.
func (h *Handlers) CancelSubscription(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	if !h.billingReady(c) {
		return
	}

	ctx := c.Request.Context()
	logger := loggerFor(h.log, c).WithField("user_id", claims.Subject)

	sub, err := h.store.GetByUserID(ctx, claims.Subject)
	if errors.Is(err, ErrSubscriptionNotFound) || (err == nil && sub.SubscriptionID == "") {
		respondError(c, http.StatusNotFound, ErrNoSubscription.Error())
		return
	}
	if err != nil {
		logger.WithError(err).Error("cancel: lookup failed")
		respondError(c, http.StatusInternalServerError, "failed to load subscription")
		return
	}

	update, err := h.billing.CancelAtPeriodEnd(ctx, sub.SubscriptionID)
	if err != nil {
		logger.WithError(err).Error("cancel: processor call failed")
		respondError(c, http.StatusBadGateway, "failed to cancel subscription")
		return
	}
	update.CustomerID = ""
	update.UserID = claims.Subject

	applied, err := h.store.ApplyUpdate(ctx, *update)
	if err != nil {
		logger.WithError(err).Error("cancel: write failed")
		respondError(c, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	h.afterUpdate(ctx, logger, applied)

	c.JSON(http.StatusOK, gin.H{
		"status":               applied.Status,
		"cancel_at_period_end": true,
		"next_payment_at":      update.NextPaymentAt,
	})
}

// CreatePortalSession returns a billing portal link for the user's customer.
func (h *Handlers) CreatePortalSession(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	if !h.billingReady(c) {
		return
	}

	ctx := c.Request.Context()
	logger := loggerFor(h.log, c).WithField("user_id", claims.Subject)

	sub, err := h.store.GetByUserID(ctx, claims.Subject)
	if errors.Is(err, ErrSubscriptionNotFound) || (err == nil && sub.CustomerID == "") {
		respondError(c, http.StatusBadRequest, ErrNoCustomer.Error())
		return
	}
	if err != nil {
		logger.WithError(err).Error("portal: lookup failed")
		respondError(c, http.StatusInternalServerError, "failed to load customer")
		return
	}

	url, err := h.billing.CreatePortal(ctx, sub.CustomerID)
	if err != nil {
		logger.WithError(err).Error("portal: session failed")
		respondError(c, http.StatusInternalServerError, "failed to create portal session")
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

// StripeWebhook ingests signed processor events and mirrors them into the store.
func (h *Handlers) StripeWebhook(c *gin.Context) {
	logger := loggerFor(h.log, c)
	if h.billing == nil || h.store == nil {
		logger.Error("webhook received but billing is not configured")
		respondError(c, http.StatusServiceUnavailable, "webhook not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes+1))
	if err != nil {
		logger.WithError(err).Warn("webhook read failed")
		respondError(c, http.StatusBadRequest, "invalid payload")
		return
	}
	if int64(len(body)) > maxWebhookBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}

	event, err := h.billing.ParseEvent(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, ErrBillingNotConfigured) {
			logger.WithError(err).Error("webhook secret missing")
			respondError(c, http.StatusServiceUnavailable, "webhook not configured")
			return
		}
		logger.WithError(err).Warn("webhook rejected")
		h.metrics.webhookEvent("unknown", "rejected")
		respondError(c, http.StatusBadRequest, "signature verification failed")
		return
	}

	logger = logger.WithFields(logrus.Fields{"event_id": event.ID, "event_type": event.Type})
	if event.Update == nil {
		h.metrics.webhookEvent(event.Type, "ignored")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	ctx := c.Request.Context()
	applied, err := h.store.ApplyUpdate(ctx, *event.Update)
	if errors.Is(err, ErrStaleUpdate) {
		logger.WithField("customer_id", event.Update.CustomerID).Info("webhook for replaced subscription skipped")
		h.metrics.webhookEvent(event.Type, "stale")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	if errors.Is(err, ErrSubscriptionNotFound) {
		logger.WithField("customer_id", event.Update.CustomerID).Warn("webhook for unknown subscription")
		h.metrics.webhookEvent(event.Type, "unknown_customer")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	if err != nil {
		logger.WithError(err).Error("webhook write failed")
		h.metrics.webhookEvent(event.Type, "error")
		respondError(c, http.StatusInternalServerError, "failed to update subscription")
		return
	}
	h.afterUpdate(ctx, logger, applied)

	logger.WithFields(logrus.Fields{
		"user_id":         applied.UserID,
		"previous_status": applied.PreviousStatus,
		"status":          applied.Status,
	}).Info("subscription updated from webhook")
	h.metrics.webhookEvent(event.Type, "applied")
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handlers) billingReady(c *gin.Context) bool {
	if h.billing == nil || h.store == nil {
		respondError(c, http.StatusServiceUnavailable, "billing not configured")
		return false
	}
	return true
}

// afterUpdate drops the cached status and announces status changes.
func (h *Handlers) afterUpdate(ctx context.Context, logger logrus.FieldLogger, applied *models.AppliedUpdate) {
	h.invalidate(ctx, logger, applied.UserID)
	if !applied.StatusChanged() {
		return
	}
	if err := h.notifier.NotifyStatusChange(ctx, *applied); err != nil {
		logger.WithError(err).Error("status notification failed")
	}
}

func (h *Handlers) invalidate(ctx context.Context, logger logrus.FieldLogger, userID string) {
	if err := h.cache.Invalidate(ctx, userID); err != nil {
		logger.WithError(err).Warn("status cache invalidate failed")
	}
}
