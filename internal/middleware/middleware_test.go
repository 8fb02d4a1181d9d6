package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketbay/internal/models"
)

func newRouter(verifier *IdentityVerifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(RequestID(), Identity(verifier))

	router.GET("/whoami", func(c *gin.Context) {
		identity := IdentityFromContext(c.Request.Context())
		if identity == nil {
			c.JSON(http.StatusOK, gin.H{"user_id": ""})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": identity.UserID, "email": identity.Email})
	})
	router.GET("/private", RequireIdentity(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestIdentityAcceptsValidToken(t *testing.T) {
	verifier := NewIdentityVerifier("secret", "ticketbay")
	router := newRouter(verifier)

	token, err := verifier.Issue(models.Identity{UserID: "user-42", Email: "ana@example.com", Name: "Ana"}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user_id":"user-42","email":"ana@example.com"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestIdentityLetsAnonymousThrough(t *testing.T) {
	router := newRouter(NewIdentityVerifier("secret", ""))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestIdentityRejectsBadTokens(t *testing.T) {
	verifier := NewIdentityVerifier("secret", "ticketbay")
	router := newRouter(verifier)

	foreign, err := NewIdentityVerifier("other-secret", "ticketbay").Issue(models.Identity{UserID: "u"}, time.Hour)
	require.NoError(t, err)
	expired, err := verifier.Issue(models.Identity{UserID: "u"}, -time.Minute)
	require.NoError(t, err)
	wrongIssuer, err := NewIdentityVerifier("secret", "elsewhere").Issue(models.Identity{UserID: "u"}, time.Hour)
	require.NoError(t, err)

	for name, header := range map[string]string{
		"foreign signature": "Bearer " + foreign,
		"expired":           "Bearer " + expired,
		"wrong issuer":      "Bearer " + wrongIssuer,
		"not bearer":        "Basic dXNlcjpwYXNz",
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	router := newRouter(NewIdentityVerifier("secret", ""))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS("https://tickets.example.com"))
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/x", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://tickets.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
