package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"example/meal-planner-api/app/ai"
	"example/meal-planner-api/app/config"
	"example/meal-planner-api/app/models"
	"example/meal-planner-api/auth"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testUserID = "7b0d4c2e-8d7a-4a8f-9b1e-2f3c4d5e6f70"
	testToken  = "good-token"
)

type staticVerifier struct{}

func (staticVerifier) Verify(_ context.Context, token string) (*auth.Claims, error) {
	if token != testToken {
		return nil, errors.New("bad token")
	}
	return &auth.Claims{Subject: testUserID, Email: "cook@example.com", Role: "authenticated"}, nil
}

type fakeStore struct {
	mu        sync.Mutex
	rows      map[string]*models.Subscription
	getErr    error
	applyErr  error
	saveErr   error
	applied   []models.SubscriptionUpdate
	saveCalls int
}

func newFakeStore(rows ...*models.Subscription) *fakeStore {
	s := &fakeStore{rows: map[string]*models.Subscription{}}
	for _, r := range rows {
		s.rows[r.UserID] = r
	}
	return s
}

func (s *fakeStore) GetByUserID(_ context.Context, userID string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	row, ok := s.rows[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *row
	return &cp, nil
}

func (s *fakeStore) GetByCustomerID(_ context.Context, customerID string) (*models.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.CustomerID == customerID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, ErrSubscriptionNotFound
}

// SavePending follows the upsert column by column: untouched columns of an
// existing row survive.
func (s *fakeStore) SavePending(_ context.Context, sub *models.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return s.saveErr
	}
	row, ok := s.rows[sub.UserID]
	if !ok {
		row = &models.Subscription{UserID: sub.UserID}
		s.rows[sub.UserID] = row
	}
	row.PlanType = sub.PlanType
	row.Status = models.StatusPending
	row.CustomerID = sub.CustomerID
	row.CheckoutSessionID = sub.CheckoutSessionID
	row.SubscriptionID = ""
	row.CanceledAt = nil
	row.CancelAtPeriodEnd = false
	return nil
}

// ApplyUpdate mirrors the row selection and the replaced-subscription guard
// of the SQL statement.
func (s *fakeStore) ApplyUpdate(_ context.Context, u models.SubscriptionUpdate) (*models.AppliedUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applied = append(s.applied, u)
	if s.applyErr != nil {
		return nil, s.applyErr
	}

	var row *models.Subscription
	for _, r := range s.rows {
		if u.CustomerID != "" && r.CustomerID == u.CustomerID {
			row = r
			break
		}
	}
	if row == nil && u.UserID != "" {
		row = s.rows[u.UserID]
	}
	if row == nil {
		return nil, ErrSubscriptionNotFound
	}

	accepted := u.SubscriptionID == nil ||
		row.SubscriptionID == *u.SubscriptionID ||
		(u.CheckoutSessionID != "" && row.CheckoutSessionID == u.CheckoutSessionID) ||
		(row.SubscriptionID == "" && u.Status != models.StatusCanceled)
	if !accepted {
		return nil, ErrStaleUpdate
	}

	prev := row.Status
	if u.Status != "" {
		row.Status = u.Status
	}
	if u.SubscriptionID != nil {
		row.SubscriptionID = *u.SubscriptionID
	}
	if u.LastPaymentAt != nil {
		row.LastPaymentAt = u.LastPaymentAt
	}
	if u.NextPaymentAt != nil {
		row.NextPaymentAt = u.NextPaymentAt
	}
	if u.CanceledAt != nil {
		row.CanceledAt = u.CanceledAt
	}
	if u.CancelAtPeriodEnd != nil {
		row.CancelAtPeriodEnd = *u.CancelAtPeriodEnd
	}
	return &models.AppliedUpdate{
		UserID:         row.UserID,
		PlanType:       row.PlanType,
		PreviousStatus: prev,
		Status:         row.Status,
	}, nil
}

type fakeCache struct {
	mu          sync.Mutex
	views       map[string]models.SubscriptionStatusView
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{views: map[string]models.SubscriptionStatusView{}}
}

func (c *fakeCache) Get(_ context.Context, userID string) (*models.SubscriptionStatusView, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.views[userID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (c *fakeCache) Set(_ context.Context, userID string, view models.SubscriptionStatusView) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[userID] = view
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.views, userID)
	c.invalidated = append(c.invalidated, userID)
	return nil
}

type fakeBilling struct {
	customerID   string
	customerErr  error
	checkout     *CheckoutResult
	checkoutErr  error
	portalURL    string
	fetched      *models.SubscriptionUpdate
	fetchErr     error
	fetchFn      func(subscriptionID, sessionID string) (*models.SubscriptionUpdate, error)
	methods      []models.PaymentMethod
	canceled     *models.SubscriptionUpdate
	event        *models.BillingEvent
	eventErr     error
	customers    int
	checkouts    []CheckoutRequest
	lastSig      string
	fetchedWith  [2]string
	canceledWith string
}

func (b *fakeBilling) CreateCustomer(_ context.Context, _, _ string) (string, error) {
	b.customers++
	return b.customerID, b.customerErr
}

func (b *fakeBilling) CreateCheckout(_ context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	b.checkouts = append(b.checkouts, req)
	return b.checkout, b.checkoutErr
}

func (b *fakeBilling) CreatePortal(_ context.Context, _ string) (string, error) {
	return b.portalURL, nil
}

func (b *fakeBilling) FetchSubscription(_ context.Context, subscriptionID, sessionID string) (*models.SubscriptionUpdate, error) {
	b.fetchedWith = [2]string{subscriptionID, sessionID}
	if b.fetchFn != nil {
		return b.fetchFn(subscriptionID, sessionID)
	}
	return b.fetched, b.fetchErr
}

func (b *fakeBilling) ListPaymentMethods(_ context.Context, _ string) ([]models.PaymentMethod, error) {
	return b.methods, nil
}

func (b *fakeBilling) CancelAtPeriodEnd(_ context.Context, subscriptionID string) (*models.SubscriptionUpdate, error) {
	b.canceledWith = subscriptionID
	return b.canceled, nil
}

func (b *fakeBilling) ParseEvent(_ []byte, signature string) (*models.BillingEvent, error) {
	b.lastSig = signature
	return b.event, b.eventErr
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.AppliedUpdate
}

func (n *fakeNotifier) NotifyStatusChange(_ context.Context, applied models.AppliedUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, applied)
	return nil
}

type fakeAI struct {
	recipe     *models.Recipe
	image      *ai.GeneratedImage
	err        error
	lastText   string
	lastOpts   ai.ExtractOptions
	lastPrompt string
}

func (f *fakeAI) ExtractRecipe(_ context.Context, text string, opts ai.ExtractOptions) (*models.Recipe, error) {
	f.lastText = text
	f.lastOpts = opts
	return f.recipe, f.err
}

func (f *fakeAI) GenerateImage(_ context.Context, prompt string) (*ai.GeneratedImage, error) {
	f.lastPrompt = prompt
	return f.image, f.err
}

type fakeImages struct {
	url string
	err error
}

func (f fakeImages) Save(context.Context, string, []byte) (string, error) {
	return f.url, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		AI:  config.AIConfig{MaxInputChars: 100, Timeout: 5 * time.Second},
	}
}

func newTestRouter(d Deps) *gin.Engine {
	if d.Config == nil {
		d.Config = testConfig()
	}
	if d.Verifier == nil {
		d.Verifier = staticVerifier{}
	}
	return NewRouter(d)
}

func doRequest(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func authed() map[string]string {
	return map[string]string{"Authorization": "Bearer " + testToken}
}
