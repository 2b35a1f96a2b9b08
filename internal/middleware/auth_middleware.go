package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/domain"
	"github.com/dorimori228/marketplace-bot-saas-sub001/internal/repository"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/logger"
	"github.com/dorimori228/marketplace-bot-saas-sub001/pkg/res"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ContextKey тип для ключей контекста во избежание коллизий.
type ContextKey string

const (
	// ContextTenantKey ключ для хранения арендатора в контексте запроса.
	ContextTenantKey ContextKey = "tenant"
	authHeaderPrefix            = "Bearer "
)

type TokenValidator interface {
	Validate(tokenString string) (*TokenClaims, error)
}

type TokenClaims struct {
	TenantEmail string `json:"email"`
	Scope       string `json:"scope"`
	jwt.RegisteredClaims
}

// TenantFromGin возвращает арендатора из контекста запроса.
// nil означает неаутентифицированный запрос.
func TenantFromGin(c *gin.Context) *domain.Tenant {
	value, ok := c.Get(string(ContextTenantKey))
	if !ok {
		return nil
	}
	tenant, ok := value.(*domain.Tenant)
	if !ok {
		return nil
	}
	return tenant
}

type JWTMiddleware struct {
	tenants   repository.TenantRepository
	log       *logger.Logger
	validator TokenValidator
}

func NewJWTMiddleware(tenants repository.TenantRepository, log *logger.Logger, validator TokenValidator) *JWTMiddleware {
	return &JWTMiddleware{
		tenants:   tenants,
		log:       log,
		validator: validator,
	}
}

// RequireAuth отклоняет запросы без валидного токена и кладет
// арендатора в контекст запроса.
func (m *JWTMiddleware) RequireAuth(requiredScopes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, err := m.resolveTenant(c, requiredScopes)
		if err != nil {
			m.handleAuthError(c, err.Error())
			return
		}

		c.Set(string(ContextTenantKey), tenant)
		m.log.Debugw("Tenant authenticated", "tenantID", tenant.ID, "path", c.Request.URL.Path)
		c.Next()
	}
}

// OptionalAuth кладет арендатора в контекст, если токен есть и валиден,
// но пропускает запрос дальше в любом случае. Решение о доступе
// принимает цепочка проверок маршрута.
func (m *JWTMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, err := m.resolveTenant(c, nil)
		if err == nil {
			c.Set(string(ContextTenantKey), tenant)
		}
		c.Next()
	}
}

func (m *JWTMiddleware) resolveTenant(c *gin.Context, requiredScopes []string) (*domain.Tenant, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, errors.New("missing authorization token")
	}

	tokenString := strings.TrimPrefix(authHeader, authHeaderPrefix)
	claims, err := m.validator.Validate(tokenString)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if len(requiredScopes) > 0 && !hasRequiredScope(claims.Scope, requiredScopes) {
		return nil, errors.New("insufficient token permissions")
	}

	tenantID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, errors.New("tenant ID (sub) missing in token")
	}

	tenant, err := m.tenants.GetByID(c.Request.Context(), tenantID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errors.New("tenant not found")
		}
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}

	return &tenant, nil
}

func hasRequiredScope(tokenScope string, requiredScopes []string) bool {
	for _, scope := range requiredScopes {
		if tokenScope == scope {
			return true
		}
	}
	return false
}

func (m *JWTMiddleware) handleAuthError(c *gin.Context, message string) {
	m.log.Warnw("Authentication failed", "path", c.Request.URL.Path, "error", message)
	res.JsonResponse(c.Writer, res.ErrorResponse{
		Error: message,
		Code:  string(domain.CodeAuthRequired),
	}, http.StatusUnauthorized)
	c.Abort()
}

// DefaultTokenValidator - реализация валидатора по умолчанию.
type DefaultTokenValidator struct {
	Secret []byte
}

func (v *DefaultTokenValidator) Validate(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.Secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenMalformed) {
			return nil, errors.New("malformed token")
		} else if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, errors.New("invalid token signature")
		} else if errors.Is(err, jwt.ErrTokenExpired) || errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, errors.New("token expired")
		} else {
			return nil, fmt.Errorf("invalid token: %w", err)
		}
	}

	if claims, ok := token.Claims.(*TokenClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token claims")
}
