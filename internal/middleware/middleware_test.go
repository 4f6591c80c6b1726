// internal/middleware/middleware_test.go
package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/catalog-tracker/internal/config"
	"github.com/javajoker/catalog-tracker/internal/utils"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(handlers...)
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	return r
}

func serve(r *gin.Engine, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/ping", nil)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	r := newEngine(NewRateLimiter(0.001, 2).Middleware())

	assert.Equal(t, http.StatusOK, serve(r, nil).Code)
	assert.Equal(t, http.StatusOK, serve(r, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, nil).Code)
}

func TestRateLimiterDisabled(t *testing.T) {
	r := newEngine(NewRateLimiter(0, 0).Middleware())
	for i := 0; i < 50; i++ {
		require.Equal(t, http.StatusOK, serve(r, nil).Code)
	}
}

func TestAdminRequired(t *testing.T) {
	utils.SetJWTSecret("middleware-secret")
	r := newEngine(AuthRequired(), AdminRequired())

	assert.Equal(t, http.StatusUnauthorized, serve(r, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.Header{"Authorization": {"Token abc"}}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.Header{"Authorization": {"Bearer not-a-jwt"}}).Code)

	viewer, err := utils.GenerateJWT("v", "viewer", 1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, serve(r, http.Header{"Authorization": {"Bearer " + viewer}}).Code)

	admin, err := utils.GenerateJWT("a", RoleAdmin, 1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(r, http.Header{"Authorization": {"Bearer " + admin}}).Code)
}

func TestCORSRestrictsOrigins(t *testing.T) {
	r := newEngine(CORS(config.CORSConfig{AllowedOrigins: []string{"https://dash.example.com"}}))

	w := serve(r, http.Header{"Origin": {"https://dash.example.com"}})
	assert.Equal(t, "https://dash.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.Header{"Origin": {"https://evil.example.com"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}
