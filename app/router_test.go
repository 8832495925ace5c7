package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"example/meal-planner-api/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter(Deps{})
	rec := doRequest(router, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMe(t *testing.T) {
	store := newFakeStore(&models.Subscription{UserID: testUserID, PlanType: models.PlanAnnual, Status: models.StatusActive})
	router := newTestRouter(Deps{Store: store})

	rec := doRequest(router, http.MethodGet, "/api/me", "", authed())
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ID           string                        `json:"id"`
		Email        string                        `json:"email"`
		Subscription models.SubscriptionStatusView `json:"subscription"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, testUserID, body.ID)
	assert.Equal(t, "cook@example.com", body.Email)
	assert.True(t, body.Subscription.IsActive)
	assert.Equal(t, models.PlanAnnual, body.Subscription.PlanType)
}

func TestMeWithoutSubscription(t *testing.T) {
	router := newTestRouter(Deps{Store: newFakeStore()})
	rec := doRequest(router, http.MethodGet, "/api/me", "", authed())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"none"`)

	store := newFakeStore()
	store.getErr = errors.New("db down")
	router = newTestRouter(Deps{Store: store})
	rec = doRequest(router, http.MethodGet, "/api/me", "", authed())
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMeRequiresAuth(t *testing.T) {
	router := newTestRouter(Deps{})
	rec := doRequest(router, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCORSConfig(t *testing.T) {
	open := corsConfig([]string{"*"})
	assert.True(t, open.AllowAllOrigins)
	assert.Empty(t, open.AllowOrigins)
	assert.False(t, open.AllowCredentials)

	assert.True(t, corsConfig(nil).AllowAllOrigins)

	strict := corsConfig([]string{"https://app.example.com"})
	assert.False(t, strict.AllowAllOrigins)
	assert.Equal(t, []string{"https://app.example.com"}, strict.AllowOrigins)
	assert.True(t, strict.AllowCredentials)
}

func TestCORSPreflight(t *testing.T) {
	cfg := testConfig()
	cfg.App.CORSOrigins = []string{"https://app.example.com"}
	router := newTestRouter(Deps{Config: cfg})

	rec := doRequest(router, http.MethodOptions, "/api/subscriptions", "", map[string]string{
		"Origin":                        "https://app.example.com",
		"Access-Control-Request-Method": "POST",
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
