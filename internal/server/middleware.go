package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/TempVoice/middleware/jwt"
	logger "github.com/Gopher0727/TempVoice/middleware/log"
	"github.com/Gopher0727/TempVoice/utils/ratelimit"
)

const apiRatePerMinute = 60

// MiddlewareManager bundles the cross-cutting HTTP middleware.
type MiddlewareManager struct {
	tokenManager *jwt.TokenManager
	rateLimiter  ratelimit.Limiter
	logger       *logger.Logger
}

func NewMiddlewareManager(tokenManager *jwt.TokenManager, rateLimiter ratelimit.Limiter, log *logger.Logger) *MiddlewareManager {
	return &MiddlewareManager{
		tokenManager: tokenManager,
		rateLimiter:  rateLimiter,
		logger:       log,
	}
}

// JWTAuth validates the bearer token and stores the caller's member and
// guild scope on the context. Websocket clients cannot set headers, so a
// token query parameter is accepted as a fallback.
func (m *MiddlewareManager) JWTAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := ""
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error": "invalid authorization header format",
				})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
		}
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "authorization required",
			})
			c.Abort()
			return
		}

		claims, err := m.tokenManager.ParseToken(tokenString)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("error", err.Error()),
				zap.String("ip", c.ClientIP()),
			)

			var message string
			switch err {
			case jwt.ErrExpiredToken:
				message = "token has expired"
			case jwt.ErrTokenNotYetValid:
				message = "token not yet valid"
			default:
				message = "invalid token"
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": message})
			c.Abort()
			return
		}

		c.Set("member_id", claims.MemberID)
		c.Set("guild_id", claims.GuildID)

		c.Next()
	}
}

// RateLimit caps requests per caller per minute.
func (m *MiddlewareManager) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()

		var key string
		if memberID := c.GetString("member_id"); memberID != "" {
			key = fmt.Sprintf("api:member:%s", memberID)
		} else {
			key = fmt.Sprintf("api:ip:%s", c.ClientIP())
		}

		allowed, err := m.rateLimiter.Allow(ctx, key, apiRatePerMinute, time.Minute)
		if err != nil {
			m.logger.Error("rate limit check failed",
				zap.String("error", err.Error()),
				zap.String("key", key),
			)
			if allowed {
				c.Next()
			} else {
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "rate limit check failed",
				})
				c.Abort()
			}
			return
		}

		if !allowed {
			remaining, _ := m.rateLimiter.Remaining(ctx, key, apiRatePerMinute, time.Minute)
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": 60,
				"remaining":   remaining,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// Logger records each request with latency and outcome.
func (m *MiddlewareManager) Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", statusCode),
			zap.Duration("latency", latency),
			zap.String("ip", c.ClientIP()),
		}
		if memberID := c.GetString("member_id"); memberID != "" {
			fields = append(fields, zap.String("member_id", memberID))
		}

		if statusCode >= 500 {
			m.logger.Error("server error", fields...)
		} else if statusCode >= 400 {
			m.logger.Warn("client error", fields...)
		} else {
			m.logger.Info("request completed", fields...)
		}
	}
}

// Recovery turns handler panics into 500 responses.
func (m *MiddlewareManager) Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				m.logger.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.String("method", c.Request.Method),
				)
				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}
