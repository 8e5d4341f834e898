package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/aura-stage/backend/internal/models"
)

func validator(token string) (string, string, error) {
	switch token {
	case "producer-token":
		return "u1", "producer", nil
	case "viewer-token":
		return "u2", "viewer", nil
	}
	return "", "", errors.New("bad token")
}

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS(ParseOrigins("http://localhost:3000")))
	r.GET("/secure", JWT(validator), RequireRole(models.RoleProducer), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserID))
	})
	return r
}

func TestJWTAndRole(t *testing.T) {
	r := newEngine()
	cases := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"invalid token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer viewer-token", http.StatusForbidden},
		{"producer", "Bearer producer-token", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/secure", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestOrigins(t *testing.T) {
	o := ParseOrigins("http://localhost:3000, https://stage.example.com")
	assert.Equal(t, "http://localhost:3000", o.Allow("http://localhost:3000"))
	assert.Equal(t, "", o.Allow("http://evil.example"))
	assert.Equal(t, "*", ParseOrigins("*").Allow("http://anything"))
	assert.Equal(t, "*", ParseOrigins("").Allow("http://anything"))

	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.True(t, o.CheckOrigin(req), "native clients send no origin")
	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, o.CheckOrigin(req))
}

func TestPreflight(t *testing.T) {
	r := newEngine()
	req := httptest.NewRequest(http.MethodOptions, "/secure", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
