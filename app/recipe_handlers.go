package app

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"example/meal-planner-api/app/ai"
	"example/meal-planner-api/app/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultAITimeout = 60 * time.Second

// ExtractRecipe turns pasted recipe text into a structured recipe.
func (h *Handlers) ExtractRecipe(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	if h.ai == nil {
		respondError(c, http.StatusServiceUnavailable, ErrAINotConfigured.Error())
		return
	}

	var req models.ExtractRecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request")
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		respondError(c, http.StatusBadRequest, "text is required")
		return
	}
	if limit := h.cfg.AI.MaxInputChars; limit > 0 && utf8.RuneCountInString(text) > limit {
		respondError(c, http.StatusRequestEntityTooLarge, "text too long")
		return
	}

	ctx, cancel := h.aiContext(c.Request.Context())
	defer cancel()

	logger := loggerFor(h.log, c).WithField("user_id", claims.Subject)
	start := time.Now()
	recipe, err := h.ai.ExtractRecipe(ctx, text, ai.ExtractOptions{
		Servings: req.Servings,
		Language: req.Language,
	})
	h.metrics.observeAI("extract", start, err)
	if err != nil {
		logger.WithError(err).Error("recipe extraction failed")
		respondError(c, http.StatusBadGateway, "failed to extract recipe")
		return
	}

	logger.WithFields(logrus.Fields{
		"ingredients": len(recipe.Ingredients),
		"steps":       len(recipe.Steps),
	}).Info("recipe extracted")
	c.JSON(http.StatusOK, recipe)
}

// GenerateRecipeImage renders a picture of a dish and stores it.
func (h *Handlers) GenerateRecipeImage(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}
	if h.ai == nil {
		respondError(c, http.StatusServiceUnavailable, ErrAINotConfigured.Error())
		return
	}

	var req models.RecipeImageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		respondError(c, http.StatusBadRequest, "title is required")
		return
	}

	ctx, cancel := h.aiContext(c.Request.Context())
	defer cancel()

	logger := loggerFor(h.log, c).WithField("user_id", claims.Subject)
	start := time.Now()
	img, err := h.ai.GenerateImage(ctx, ai.BuildImagePrompt(req.Title, req.Description, req.Ingredients))
	h.metrics.observeAI("image", start, err)
	if err != nil {
		logger.WithError(err).Error("image generation failed")
		respondError(c, http.StatusBadGateway, "failed to generate image")
		return
	}

	url, err := h.images.Save(ctx, claims.Subject, img.PNG)
	if err != nil {
		logger.WithError(err).Error("image upload failed")
		respondError(c, http.StatusInternalServerError, "failed to store image")
		return
	}

	c.JSON(http.StatusOK, models.RecipeImageResponse{
		ImageURL:      url,
		RevisedPrompt: img.RevisedPrompt,
	})
}

func (h *Handlers) aiContext(parent context.Context) (context.Context, context.CancelFunc) {
	timeout := h.cfg.AI.Timeout
	if timeout <= 0 {
		timeout = defaultAITimeout
	}
	return context.WithTimeout(parent, timeout)
}
