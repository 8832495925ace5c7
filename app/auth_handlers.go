package app

import (
	"errors"
	"net/http"

	"example/meal-planner-api/app/models"

	"github.com/gin-gonic/gin"
)

// Health is a public health check endpoint.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Me returns the authenticated identity and its subscription status.
func (h *Handlers) Me(c *gin.Context) {
	claims, ok := requireUser(c)
	if !ok {
		return
	}

	view := models.SubscriptionStatusView{Status: models.StatusNone}
	if h.store != nil {
		sub, err := h.store.GetByUserID(c.Request.Context(), claims.Subject)
		switch {
		case err == nil:
			view = sub.View()
		case errors.Is(err, ErrSubscriptionNotFound):
		default:
			loggerFor(h.log, c).WithError(err).WithField("user_id", claims.Subject).Error("me: subscription lookup failed")
			respondError(c, http.StatusInternalServerError, "failed to load user")
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           claims.Subject,
		"email":        claims.Email,
		"role":         claims.Role,
		"subscription": view,
	})
}
