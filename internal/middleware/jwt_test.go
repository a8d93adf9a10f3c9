package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret"

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", JWTAuth(testSecret), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("operator"))
	})
	return r
}

func TestJWTAuth(t *testing.T) {
	valid, err := IssueToken(testSecret, "ops", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	expired, err := IssueToken(testSecret, "ops", -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	wrongSecret, _ := IssueToken("other-secret", "ops", time.Hour)
	noRole, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, OperatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "visitor",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid operator", "Bearer " + valid, http.StatusOK, "ops"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, ""},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"wrong secret", "Bearer " + wrongSecret, http.StatusUnauthorized, ""},
		{"missing role", "Bearer " + noRole, http.StatusForbidden, ""},
	}

	r := newEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestIssueTokenRequiresSecretAndSubject(t *testing.T) {
	if _, err := IssueToken("", "ops", time.Hour); err == nil {
		t.Error("IssueToken() with empty secret succeeded")
	}
	if _, err := IssueToken(testSecret, "", time.Hour); err == nil {
		t.Error("IssueToken() with empty subject succeeded")
	}
}
