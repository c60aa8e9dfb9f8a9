package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edubot-api/internal/models"
	"github.com/noah-isme/edubot-api/internal/service"
)

func signedToken(t *testing.T, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 42,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newRouter(mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/probe", mw, func(c *gin.Context) {
		userID := ""
		if claims, ok := c.Get(ContextUserKey); ok {
			userID = string(claims.(*models.JWTClaims).UserID)
		}
		c.String(http.StatusOK, userID+"|"+c.GetString(ContextTokenKey))
	})
	return r
}

func probe(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRequiresBearerToken(t *testing.T) {
	r := newRouter(JWT(service.NewAuthService(nil, service.AuthConfig{AccessTokenSecret: "secret"})))

	assert.Equal(t, http.StatusUnauthorized, probe(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, probe(r, "Basic abc").Code)
	assert.Equal(t, http.StatusUnauthorized, probe(r, "Bearer "+signedToken(t, "other")).Code)

	token := signedToken(t, "secret")
	w := probe(r, "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42|"+token, w.Body.String())
}

func TestOptionalJWTNeverBlocks(t *testing.T) {
	r := newRouter(OptionalJWT(service.NewAuthService(nil, service.AuthConfig{AccessTokenSecret: "secret"})))

	w := probe(r, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "|", w.Body.String())

	w = probe(r, "Bearer not-a-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "|", w.Body.String())

	token := signedToken(t, "secret")
	w = probe(r, "bearer "+token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "42|"+token, w.Body.String())
}

func TestMetricsRecordsMatchedRoute(t *testing.T) {
	metrics := service.NewMetricsService()
	r := newRouter(Metrics(metrics))

	probe(r, "")
	probe(r, "")

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(2), snapshot.RequestsTotal)
}

func TestMetricsNilServicePassesThrough(t *testing.T) {
	r := newRouter(Metrics(nil))
	assert.Equal(t, http.StatusOK, probe(r, "").Code)
}
