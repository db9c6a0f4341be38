package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/premsagar786/printsmart/internal/engine"
	"github.com/premsagar786/printsmart/internal/pricing"
)

type SettingsHandler struct {
	engine *engine.Engine
}

func NewSettingsHandler(eng *engine.Engine) *SettingsHandler {
	return &SettingsHandler{engine: eng}
}

type UpdateRatesRequest struct {
	BWPageRate         float64 `json:"bw" binding:"required"`
	ColorPageRate      float64 `json:"color" binding:"required"`
	DuplexMultiplier   float64 `json:"discount" binding:"required"`
	ExpediteMultiplier float64 `json:"surcharge" binding:"required"`
}

func (h *SettingsHandler) GetRates(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Rates())
}

func (h *SettingsHandler) UpdateRates(c *gin.Context) {
	var req UpdateRatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rates := pricing.RateTable{
		BWPageRate:         req.BWPageRate,
		ColorPageRate:      req.ColorPageRate,
		DuplexMultiplier:   req.DuplexMultiplier,
		ExpediteMultiplier: req.ExpediteMultiplier,
	}
	if err := h.engine.UpdateRates(rates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "rates": rates})
}

func (h *SettingsHandler) GetNotificationSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Preferences())
}

func (h *SettingsHandler) UpdateNotificationSettings(c *gin.Context) {
	var prefs engine.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.engine.UpdatePreferences(prefs)
	c.JSON(http.StatusOK, gin.H{"success": true, "settings": prefs})
}
