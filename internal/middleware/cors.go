package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// OriginAllowList matches browser origins against configured values
type OriginAllowList map[string]struct{}

// NewOriginAllowList builds an allow-list; "*" allows every origin
func NewOriginAllowList(origins []string) OriginAllowList {
	list := make(OriginAllowList, len(origins))
	for _, origin := range origins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			list[origin] = struct{}{}
		}
	}
	return list
}

// Allowed reports whether origin may call the API. Requests without an Origin are not browser CORS requests.
func (l OriginAllowList) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	if _, ok := l["*"]; ok {
		return true
	}
	_, ok := l[origin]
	return ok
}

// CORSMiddleware answers preflights and rejects disallowed origins
func CORSMiddleware(allowed OriginAllowList) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !allowed.Allowed(origin) {
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
