package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/middleware"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/repository"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/tiers"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/req"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/res"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const accessTokenTTL = 24 * time.Hour

// RegisterTenantRequest тело запроса на регистрацию арендатора.
type RegisterTenantRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// TenantHandler обрабатывает регистрацию арендаторов и запросы профиля.
type TenantHandler struct {
	tenants   repository.TenantRepository
	catalog   *tiers.Catalog
	jwtSecret []byte
	log       *logger.Logger
}

// NewTenantHandler создает новый экземпляр TenantHandler.
func NewTenantHandler(tenants repository.TenantRepository, catalog *tiers.Catalog, jwtSecret string, log *logger.Logger) *TenantHandler {
	return &TenantHandler{
		tenants:   tenants,
		catalog:   catalog,
		jwtSecret: []byte(jwtSecret),
		log:       log,
	}
}

// Register - обработчик POST /tenants.
// Новый арендатор получает низший тариф со статусом active без даты
// истечения; платная подписка подтягивается через вебхуки биллинга.
func (h *TenantHandler) Register(c *gin.Context) {
	body, err := req.HandleBody[RegisterTenantRequest](c.Writer, c.Request, h.log)
	if err != nil {
		c.Abort()
		return
	}

	tenant := domain.Tenant{
		Email:              body.Email,
		SubscriptionTier:   h.catalog.Lowest(),
		SubscriptionStatus: domain.SubscriptionStatusActive,
	}
	created, err := h.tenants.Create(c.Request.Context(), tenant)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			res.JsonResponse(c.Writer, res.ErrorResponse{Error: "Email is already registered"}, http.StatusConflict)
			c.Abort()
			return
		}
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to register tenant", Code: string(domain.CodeServerError)}, http.StatusInternalServerError, h.log)
		c.Abort()
		return
	}

	token, err := h.issueToken(created)
	if err != nil {
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "Failed to issue access token", Code: string(domain.CodeServerError)}, http.StatusInternalServerError, h.log)
		c.Abort()
		return
	}

	h.log.Infow("Tenant registered", "tenantID", created.ID, "email", created.Email)
	c.JSON(http.StatusCreated, gin.H{
		"tenant":       created,
		"access_token": token,
	})
}

// Me - обработчик GET /tenants/me, профиль текущего арендатора.
func (h *TenantHandler) Me(c *gin.Context) {
	tenant := middleware.TenantFromGin(c)
	if tenant == nil {
		respondAuthRequired(c)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

func (h *TenantHandler) issueToken(tenant domain.Tenant) (string, error) {
	now := time.Now()
	claims := middleware.TokenClaims{
		TenantEmail: tenant.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tenant.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(accessTokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(h.jwtSecret)
}
