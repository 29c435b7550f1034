package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bgai/bgai-backend/internal/logger"
	"github.com/bgai/bgai-backend/internal/requestdata"
)

const testSecret = "test-secret"

func testAuthRouter(t *testing.T) (*gin.Engine, *requestdata.RequestData) {
	t.Helper()
	t.Setenv("SUPABASE_JWT_SECRET", testSecret)
	gin.SetMode(gin.TestMode)

	am, err := NewAuthMiddleware(&logger.Logger{SugaredLogger: zap.NewNop().Sugar()})
	if err != nil {
		t.Fatalf("middleware init failed: %v", err)
	}

	seen := &requestdata.RequestData{}
	router := gin.New()
	router.GET("/protected", am.RequireAuth(), func(c *gin.Context) {
		if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
			*seen = *rd
		}
		c.Status(http.StatusOK)
	})
	return router, seen
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing failed: %v", err)
	}
	return signed
}

func validClaims(sub string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":  sub,
		"aud":  "authenticated",
		"role": "premium",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}
}

func doRequest(router *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRequireAuth_ValidTokenPopulatesIdentity(t *testing.T) {
	router, seen := testAuthRouter(t)
	userID := uuid.New()
	claims := validClaims(userID.String())
	claims["email"] = "player@example.com"

	w := doRequest(router, signToken(t, testSecret, claims))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200 got %d: %s", w.Code, w.Body.String())
	}
	if seen.UserID != userID {
		t.Fatalf("want user id %s got %s", userID, seen.UserID)
	}
	if seen.Role != "premium" || seen.Email != "player@example.com" {
		t.Fatalf("unexpected identity %+v", seen)
	}
}

func TestRequireAuth_AppMetadataRoleWins(t *testing.T) {
	router, seen := testAuthRouter(t)
	claims := validClaims(uuid.New().String())
	claims["app_metadata"] = map[string]any{"role": "tester"}

	w := doRequest(router, signToken(t, testSecret, claims))
	if w.Code != http.StatusOK {
		t.Fatalf("want 200 got %d", w.Code)
	}
	if seen.Role != "tester" {
		t.Fatalf("app_metadata role must override, got %q", seen.Role)
	}
}

func TestRequireAuth_MissingToken(t *testing.T) {
	router, _ := testAuthRouter(t)
	w := doRequest(router, "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 got %d", w.Code)
	}
}

func TestRequireAuth_WrongSecret(t *testing.T) {
	router, _ := testAuthRouter(t)
	w := doRequest(router, signToken(t, "other-secret", validClaims(uuid.New().String())))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 got %d", w.Code)
	}
}

func TestRequireAuth_ExpiredToken(t *testing.T) {
	router, _ := testAuthRouter(t)
	claims := validClaims(uuid.New().String())
	claims["exp"] = time.Now().Add(-time.Hour).Unix()

	w := doRequest(router, signToken(t, testSecret, claims))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 got %d", w.Code)
	}
}

func TestRequireAuth_WrongAudience(t *testing.T) {
	router, _ := testAuthRouter(t)
	claims := validClaims(uuid.New().String())
	claims["aud"] = "anon"

	w := doRequest(router, signToken(t, testSecret, claims))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 got %d", w.Code)
	}
}

func TestRequireAuth_NonUUIDSubject(t *testing.T) {
	router, _ := testAuthRouter(t)
	w := doRequest(router, signToken(t, testSecret, validClaims("not-a-uuid")))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("want 401 got %d", w.Code)
	}
}
