package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"org-portal/internal/service"
)

// NewRouter wires middlewares and the auth and organization routes.
func NewRouter(
	logger *zap.Logger,
	accountH *AccountHandler,
	orgH *OrganizationHandler,
	jwtSvc *service.JWTService,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	auth := r.Group("/auth")
	auth.POST("/register", accountH.Register)
	auth.POST("/email/resend", accountH.ResendConfirmation)
	auth.POST("/email/confirm", accountH.ConfirmEmail)
	auth.POST("/login", accountH.Login)
	auth.POST("/login/confirm", accountH.ConfirmLogin)
	auth.POST("/refresh", accountH.RefreshToken)
	auth.POST("/logout", accountH.Logout)
	auth.POST("/password/reset", accountH.RequestPasswordReset)

	org := r.Group("/org", JWTAuthMiddleware(jwtSvc))
	org.GET("/home", orgH.Home)
	org.GET("", orgH.Get)
	org.POST("", orgH.Create)
	org.PUT("", orgH.Update)
	org.GET("/bank", orgH.GetBank)
	org.PUT("/bank", orgH.UpdateBank)

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware forces Content-Type: application/json on responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
