package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"banana-studio-backend/internal/config"
	"banana-studio-backend/internal/middleware"
)

const testSecret = "test-secret-key-for-jwt-signing-must-be-long-enough"

func authRouter(handler gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{SupabaseJWTSecret: testSecret}

	router := gin.New()
	router.Use(middleware.AuthMiddleware(cfg))
	router.GET("/test", handler)
	return router
}

func ok(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func sign(t *testing.T, claims jwt.MapClaims, method jwt.SigningMethod, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func get(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", "/test", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	w := get(authRouter(ok), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	w := get(authRouter(ok), "Bearer invalid-token")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "malformed")
}

func TestAuthMiddleware_WrongScheme(t *testing.T) {
	w := get(authRouter(ok), "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ExpiredToken(t *testing.T) {
	token := sign(t, jwt.MapClaims{
		"sub": uuid.NewString(),
		"exp": time.Now().Add(-time.Hour).Unix(),
	}, jwt.SigningMethodHS256, []byte(testSecret))

	w := get(authRouter(ok), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "expired")
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	token := sign(t, jwt.MapClaims{"sub": uuid.NewString()}, jwt.SigningMethodHS256, []byte("another-secret"))

	w := get(authRouter(ok), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_RejectsOtherAlgorithms(t *testing.T) {
	token := sign(t, jwt.MapClaims{"sub": uuid.NewString()}, jwt.SigningMethodHS512, []byte(testSecret))

	w := get(authRouter(ok), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_MissingSubject(t *testing.T) {
	token := sign(t, jwt.MapClaims{"role": "authenticated"}, jwt.SigningMethodHS256, []byte(testSecret))

	w := get(authRouter(ok), "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	userID := uuid.New()
	token := sign(t, jwt.MapClaims{
		"sub": userID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}, jwt.SigningMethodHS256, []byte(testSecret))

	router := authRouter(func(c *gin.Context) {
		got, ok := middleware.UserID(c)
		assert.True(t, ok)
		assert.Equal(t, userID, got)
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	w := get(router, "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUserID_RejectsNonUUIDSubject(t *testing.T) {
	token := sign(t, jwt.MapClaims{"sub": "user-123"}, jwt.SigningMethodHS256, []byte(testSecret))

	router := authRouter(func(c *gin.Context) {
		if _, ok := middleware.UserID(c); !ok {
			return
		}
		c.Status(http.StatusOK)
	})

	w := get(router, "Bearer "+token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
