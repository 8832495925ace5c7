package app

import (
	"context"
	"net/http"

	"example/meal-planner-api/app/ai"
	"example/meal-planner-api/app/config"
	"example/meal-planner-api/app/models"
	"example/meal-planner-api/auth"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RecipeAI is the generative backend used by the recipe endpoints.
type RecipeAI interface {
	ExtractRecipe(ctx context.Context, text string, opts ai.ExtractOptions) (*models.Recipe, error)
	GenerateImage(ctx context.Context, prompt string) (*ai.GeneratedImage, error)
}

// Deps are the shared clients the HTTP layer is built from. Optional
// integrations may be nil; their endpoints answer 503.
type Deps struct {
	Config   *config.Config
	Store    SubscriptionStore
	Cache    StatusCache
	Billing  BillingProvider
	AI       RecipeAI
	Images   ImageStore
	Notifier Notifier
	Metrics  *Metrics
	Verifier auth.TokenVerifier
}

// Handlers serves the API routes.
type Handlers struct {
	cfg      *config.Config
	store    SubscriptionStore
	cache    StatusCache
	billing  BillingProvider
	ai       RecipeAI
	images   ImageStore
	notifier Notifier
	metrics  *Metrics
	log      logrus.FieldLogger
}

// NewHandlers fills unset optional dependencies with no-op implementations.
func NewHandlers(d Deps) *Handlers {
	h := &Handlers{
		cfg:      d.Config,
		store:    d.Store,
		cache:    d.Cache,
		billing:  d.Billing,
		ai:       d.AI,
		images:   d.Images,
		notifier: d.Notifier,
		metrics:  d.Metrics,
		log:      NewModuleLogger("api"),
	}
	if h.cfg == nil {
		h.cfg = &config.Config{}
	}
	if h.cache == nil {
		h.cache = noopStatusCache{}
	}
	if h.images == nil {
		h.images = inlineImageStore{}
	}
	if h.notifier == nil {
		h.notifier = noopNotifier{}
	}
	if h.metrics == nil {
		h.metrics = NewMetrics()
	}
	return h
}

// requireUser returns the authenticated claims or answers 401.
func requireUser(c *gin.Context) (*auth.Claims, bool) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok || claims.Subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return nil, false
	}
	return claims, true
}

func respondError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
