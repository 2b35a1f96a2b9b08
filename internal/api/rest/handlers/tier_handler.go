package handlers

import (
	"errors"
	"net/http"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/res"
	"github.com/gin-gonic/gin"
)

// TierHandler отдает публичный каталог тарифов.
type TierHandler struct {
	catalog *tiers.Catalog
	log     *logger.Logger
}

// NewTierHandler создает новый экземпляр TierHandler.
func NewTierHandler(catalog *tiers.Catalog, log *logger.Logger) *TierHandler {
	return &TierHandler{catalog: catalog, log: log}
}

// ListTiers - обработчик GET /tiers, сравнение тарифов для страницы цен.
func (h *TierHandler) ListTiers(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tiers": h.catalog.Comparison(),
	})
}

// GetTier - обработчик GET /tiers/:name, детали одного тарифа.
func (h *TierHandler) GetTier(c *gin.Context) {
	tier, err := h.catalog.Get(c.Param("name"))
	if err != nil {
		if errors.Is(err, domain.ErrTierNotFound) {
			res.JsonResponse(c.Writer, res.ErrorResponse{
				Error: "Tier not found",
				Code:  string(domain.CodeInvalidTier),
			}, http.StatusNotFound)
			c.Abort()
			return
		}
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to load tier", Code: string(domain.CodeServerError)}, http.StatusInternalServerError, h.log)
		c.Abort()
		return
	}
	c.JSON(http.StatusOK, tier)
}
