package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"io"

	"telegram-wallet-bridge/pkg/apperror"
	"telegram-wallet-bridge/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// HeaderPaystackSignature carries the gateway's HMAC of the raw body.
const HeaderPaystackSignature = "X-Paystack-Signature"

// PaystackSignature verifies the X-Paystack-Signature header: HMAC-SHA512 of
// the raw request body keyed with the Paystack secret. The body is restored
// for downstream binding.
func PaystackSignature(secretKey string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		signature := c.GetHeader(HeaderPaystackSignature)
		if signature == "" {
			response.Error(c, apperror.ErrInvalidSignature())
			c.Abort()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("cannot read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		mac := hmac.New(sha512.New, []byte(secretKey))
		mac.Write(body)
		expected := hex.EncodeToString(mac.Sum(nil))

		if !hmac.Equal([]byte(expected), []byte(signature)) {
			log.Warn().Str("client_ip", c.ClientIP()).Msg("gateway webhook signature mismatch")
			response.Error(c, apperror.ErrInvalidSignature())
			c.Abort()
			return
		}

		c.Next()
	}
}
