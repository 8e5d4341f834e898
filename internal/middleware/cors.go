package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origins is a parsed CORS allow list. An empty list or "*" allows every origin.
type Origins map[string]bool

// ParseOrigins parses "*" or a comma-separated list of origins.
func ParseOrigins(s string) Origins {
	m := make(Origins)
	for _, o := range strings.Split(strings.TrimSpace(s), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			m[o] = true
		}
	}
	return m
}

// Allow returns the Access-Control-Allow-Origin value for origin, or "" to deny.
func (o Origins) Allow(origin string) string {
	if len(o) == 0 || o["*"] {
		return "*"
	}
	if origin != "" && o[origin] {
		return origin
	}
	return ""
}

// CheckOrigin reports whether a websocket upgrade from r may proceed. Requests
// without an Origin header (native clients, display players) are accepted.
func (o Origins) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || o.Allow(origin) != ""
}

// CORS returns a middleware that sets CORS headers for cross-origin requests.
func CORS(origins Origins) gin.HandlerFunc {
	return func(c *gin.Context) {
		if allow := origins.Allow(c.GetHeader("Origin")); allow != "" {
			c.Header("Access-Control-Allow-Origin", allow)
			c.Header("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
