package handler

import (
	"net/http"
	"time"

	"telegram-wallet-bridge/internal/core/ports"

	"github.com/gin-gonic/gin"
)

var startedAt = time.Now()

// HealthCheck handles GET /health — deep health check verifying all dependencies.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}

// Ping handles GET /ping and reports liveness with process uptime.
func Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(startedAt).Round(time.Second).String(),
	})
}

// Root handles GET / — a small directory of the service's endpoints.
func Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "telegram-wallet-bridge",
		"endpoints": gin.H{
			"telegram_webhook": "POST /webhook",
			"paystack_webhook": "POST /paystack-webhook",
			"payment_callback": "GET /payment-callback",
			"create_token":     "POST /api/telegram/create-token",
			"status":           "GET /api/telegram/connection-status/:userId",
			"health":           "GET /health",
			"ping":             "GET /ping",
			"metrics":          "GET /metrics",
		},
	})
}
