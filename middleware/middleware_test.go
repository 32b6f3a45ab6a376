package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mabletask/funnel/models"
	"mabletask/funnel/utils"
)

var secret = []byte("middleware-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func newAuthRouter(apiKey string) *gin.Engine {
	r := gin.New()
	r.GET("/protected", AuthRequired(apiKey, secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetInt("user_id")})
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	token, err := utils.GenerateJWT(&models.User{ID: 7, Email: "a@example.com"}, secret, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name    string
		prepare func(*http.Request)
		want    int
	}{
		{"no credentials", func(*http.Request) {}, http.StatusUnauthorized},
		{"api key", func(r *http.Request) { r.Header.Set("X-API-KEY", "k3y") }, http.StatusOK},
		{"wrong api key", func(r *http.Request) { r.Header.Set("X-API-KEY", "nope") }, http.StatusUnauthorized},
		{"bearer token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"cookie token", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "jwt_token", Value: token}) }, http.StatusOK},
		{"garbage token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer garbage") }, http.StatusUnauthorized},
	}

	router := newAuthRouter("k3y")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestAuthRequired_EmptyAPIKeyDisablesKeyAuth(t *testing.T) {
	router := newAuthRouter("")
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-KEY", "")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.POST("/events", RateLimit(1, 2), func(c *gin.Context) { c.Status(http.StatusAccepted) })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/events", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusAccepted, http.StatusAccepted, http.StatusTooManyRequests}, codes)

	// Another client has its own bucket.
	req := httptest.NewRequest(http.MethodPost, "/events", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestRateLimit_Disabled(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimit(0, 0), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware("http://localhost:3000"))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestAPIKeyRequired(t *testing.T) {
	token, err := utils.GenerateJWT(&models.User{ID: 7}, secret, time.Now())
	require.NoError(t, err)

	tests := []struct {
		name    string
		apiKey  string
		prepare func(*http.Request)
		want    int
	}{
		{"api key", "k3y", func(r *http.Request) { r.Header.Set("X-API-KEY", "k3y") }, http.StatusOK},
		{"wrong api key", "k3y", func(r *http.Request) { r.Header.Set("X-API-KEY", "nope") }, http.StatusForbidden},
		{"analyst token", "k3y", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusForbidden},
		{"no key configured", "", func(r *http.Request) { r.Header.Set("X-API-KEY", "") }, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/run", APIKeyRequired(tt.apiKey), func(c *gin.Context) { c.Status(http.StatusOK) })
			req := httptest.NewRequest(http.MethodPost, "/run", nil)
			tt.prepare(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
