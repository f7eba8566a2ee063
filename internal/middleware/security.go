package middleware

import (
	"github.com/gin-gonic/gin"
)

// apiSecurityHeaders apply to every JSON response. The API serves no HTML, so the
// CSP forbids everything. Camera and microphone are granted by the frontend origin.
var apiSecurityHeaders = map[string]string{
	"X-Frame-Options":         "DENY",
	"X-Content-Type-Options":  "nosniff",
	"Referrer-Policy":         "no-referrer",
	"Content-Security-Policy": "default-src 'none'; frame-ancestors 'none'",
	"Permissions-Policy":      "geolocation=(), payment=()",
	"Cache-Control":           "no-store",
}

// SecurityHeaders adds security headers to all responses.
// HSTS is only sent when the service sits behind TLS.
func SecurityHeaders(hsts bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		for name, value := range apiSecurityHeaders {
			h.Set(name, value)
		}
		if hsts {
			h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}
