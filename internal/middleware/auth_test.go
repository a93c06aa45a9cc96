package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/zawadihr/backend/internal/models"
	"github.com/zawadihr/backend/internal/services"
)

func signTestToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(viper.GetString("jwt.secret_key")))
	assert.NoError(t, err)
	return signed
}

func TestAuthMiddleware(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")

	userID := uuid.New()
	companyID := uuid.New()
	employeeID := uuid.New()

	validClaims := jwt.MapClaims{
		"user_id":     userID.String(),
		"company_id":  companyID.String(),
		"role":        models.RoleOperations,
		"employee_id": employeeID.String(),
		"exp":         time.Now().Add(time.Hour).Unix(),
	}

	t.Run("valid token populates the actor", func(t *testing.T) {
		var got services.Actor
		var ok bool
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok = services.ActorFromContext(r.Context())
		})

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+signTestToken(t, validClaims))
		w := httptest.NewRecorder()

		AuthMiddleware(nil)(next).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.True(t, ok)
		assert.Equal(t, userID, got.UserID)
		assert.Equal(t, companyID, got.CompanyID)
		assert.Equal(t, models.RoleOperations, got.Role)
		assert.NotNil(t, got.EmployeeID)
		assert.Equal(t, employeeID, *got.EmployeeID)
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		w := httptest.NewRecorder()

		AuthMiddleware(nil)(http.NotFoundHandler()).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header is rejected", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Token abc")
		w := httptest.NewRecorder()

		AuthMiddleware(nil)(http.NotFoundHandler()).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		expired := jwt.MapClaims{
			"user_id":    userID.String(),
			"company_id": companyID.String(),
			"role":       models.RoleOperations,
			"exp":        time.Now().Add(-time.Hour).Unix(),
		}

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+signTestToken(t, expired))
		w := httptest.NewRecorder()

		AuthMiddleware(nil)(http.NotFoundHandler()).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("denylisted token is rejected", func(t *testing.T) {
		token := signTestToken(t, validClaims)

		redisClient, redisMock := redismock.NewClientMock()
		redisMock.ExpectExists("denylist:" + token).SetVal(1)

		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()

		AuthMiddleware(redisClient)(http.NotFoundHandler()).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

func TestRequireRoles(t *testing.T) {
	viper.Set("jwt.secret_key", "test-secret")

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	serve := func(role string) *httptest.ResponseRecorder {
		claims := jwt.MapClaims{
			"user_id":    uuid.New().String(),
			"company_id": uuid.New().String(),
			"role":       role,
			"exp":        time.Now().Add(time.Hour).Unix(),
		}
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("Authorization", "Bearer "+signTestToken(t, claims))
		w := httptest.NewRecorder()
		AuthMiddleware(nil)(RequireRoles(models.RoleHR, models.RoleAdmin)(handler)).ServeHTTP(w, r)
		return w
	}

	t.Run("allowed role passes", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, serve(models.RoleHR).Code)
	})

	t.Run("other roles are forbidden", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, serve(models.RoleEmployee).Code)
		assert.Equal(t, http.StatusForbidden, serve(models.RoleOperations).Code)
	})
}
