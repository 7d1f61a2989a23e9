package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACValidatorRoundTrip(t *testing.T) {
	validator := HMACValidator{Secret: []byte("test-secret")}

	token := validator.SignToken("a1")
	userID, err := validator.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "a1", userID)
}

func TestHMACValidatorRejectsTampering(t *testing.T) {
	validator := HMACValidator{Secret: []byte("test-secret")}
	token := validator.SignToken("a1")

	_, err := validator.ValidateToken(context.Background(), "b1"+token[2:])
	assert.Error(t, err)

	_, err = validator.ValidateToken(context.Background(), "no-signature")
	assert.Error(t, err)

	other := HMACValidator{Secret: []byte("other-secret")}
	_, err = other.ValidateToken(context.Background(), token)
	assert.Error(t, err)
}

func TestAuthMiddlewareSetsUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := HMACValidator{Secret: []byte("test-secret")}

	r := gin.New()
	r.Use(AuthMiddleware(validator))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString("userID")})
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+validator.SignToken("a1"))
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "a1")
}

func TestAuthMiddlewareRejectsMissingOrBadHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validator := HMACValidator{Secret: []byte("test-secret")}

	r := gin.New()
	r.Use(AuthMiddleware(validator))
	r.GET("/whoami", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, header := range []string{"", "Bearer bogus", "Basic abc", validator.SignToken("a1")} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "header %q", header)
	}
}
