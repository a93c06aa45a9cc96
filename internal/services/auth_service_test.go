package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func setupAuthConfig() {
	viper.Set("argon2.salt_length", 16)
	viper.Set("argon2.time", 1)
	viper.Set("argon2.memory", 64*1024)
	viper.Set("argon2.threads", 4)
	viper.Set("argon2.key_length", 32)
	viper.Set("jwt.secret_key", "test-secret")
	viper.Set("jwt.expiry_hours", 24)
}

func TestPasswordHashing(t *testing.T) {
	setupAuthConfig()

	t.Run("roundtrip", func(t *testing.T) {
		hashed, err := hashPassword("correct-horse-battery")
		assert.NoError(t, err)
		assert.NotEqual(t, "correct-horse-battery", hashed)
		assert.True(t, verifyPassword("correct-horse-battery", hashed))
	})

	t.Run("wrong password fails", func(t *testing.T) {
		hashed, err := hashPassword("correct-horse-battery")
		assert.NoError(t, err)
		assert.False(t, verifyPassword("wrong-password", hashed))
	})

	t.Run("same password hashes differently", func(t *testing.T) {
		first, _ := hashPassword("correct-horse-battery")
		second, _ := hashPassword("correct-horse-battery")
		assert.NotEqual(t, first, second)
	})

	t.Run("malformed hash fails closed", func(t *testing.T) {
		assert.False(t, verifyPassword("anything", "not-a-valid-hash"))
	})
}

func TestAuthService_Register(t *testing.T) {
	setupAuthConfig()

	t.Run("successful registration creates company and admin", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAuthService(db, nil)

		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO companies").
			WithArgs(sqlmock.AnyArg(), "Zawadi Tea Estates", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectExec("INSERT INTO users").
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		body, _ := json.Marshal(RegisterRequest{
			CompanyName: "Zawadi Tea Estates",
			Email:       "Admin@ZawadiTea.co.ke",
			Password:    "password123",
			FirstName:   "Amina",
			LastName:    "Odhiambo",
		})
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusCreated, w.Code)
		var response AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "admin@zawaditea.co.ke", response.User.Email)
		assert.Equal(t, "admin", response.User.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("invalid request body", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAuthService(db, nil)

		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer([]byte("invalid")))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("short password fails validation", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAuthService(db, nil)

		body, _ := json.Marshal(RegisterRequest{
			CompanyName: "Zawadi Tea Estates",
			Email:       "admin@zawaditea.co.ke",
			Password:    "short",
			FirstName:   "Amina",
			LastName:    "Odhiambo",
		})
		r := httptest.NewRequest("POST", "/auth/register", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Register(w, r)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthService_Login(t *testing.T) {
	setupAuthConfig()

	t.Run("successful login", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAuthService(db, nil)

		hashed, _ := hashPassword("password123")
		userID := uuid.New()
		companyID := uuid.New()

		mock.ExpectQuery("SELECT id, company_id, email, password, first_name, last_name, role, employee_id FROM users").
			WithArgs("amina@zawaditea.co.ke").
			WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "email", "password", "first_name", "last_name", "role", "employee_id"}).
				AddRow(userID, companyID, "amina@zawaditea.co.ke", hashed, "Amina", "Odhiambo", "hr", nil))
		mock.ExpectExec("UPDATE users SET last_login").
			WithArgs(sqlmock.AnyArg(), userID).
			WillReturnResult(sqlmock.NewResult(0, 1))

		body, _ := json.Marshal(LoginRequest{Email: "amina@zawaditea.co.ke", Password: "password123"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		var response AuthResponse
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.NotEmpty(t, response.Token)
		assert.Equal(t, "hr", response.User.Role)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("wrong password", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAuthService(db, nil)

		hashed, _ := hashPassword("password123")

		mock.ExpectQuery("SELECT id, company_id, email, password, first_name, last_name, role, employee_id FROM users").
			WithArgs("amina@zawaditea.co.ke").
			WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "email", "password", "first_name", "last_name", "role", "employee_id"}).
				AddRow(uuid.New(), uuid.New(), "amina@zawaditea.co.ke", hashed, "Amina", "Odhiambo", "hr", nil))

		body, _ := json.Marshal(LoginRequest{Email: "amina@zawaditea.co.ke", Password: "password999"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown email", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAuthService(db, nil)

		mock.ExpectQuery("SELECT id, company_id, email, password, first_name, last_name, role, employee_id FROM users").
			WithArgs("nobody@zawaditea.co.ke").
			WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "email", "password", "first_name", "last_name", "role", "employee_id"}))

		body, _ := json.Marshal(LoginRequest{Email: "nobody@zawaditea.co.ke", Password: "password123"})
		r := httptest.NewRequest("POST", "/auth/login", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Login(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthService_Logout(t *testing.T) {
	setupAuthConfig()

	t.Run("token is denylisted for its remaining lifetime", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		service := NewAuthService(db, redisClient)

		redisMock.ExpectSet("denylist:some-jwt-token", "1", 24*time.Hour).SetVal("OK")

		r := httptest.NewRequest("POST", "/auth/logout", nil)
		r.Header.Set("Authorization", "Bearer some-jwt-token")
		w := httptest.NewRecorder()

		service.Logout(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("logout without redis still succeeds", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()
		service := NewAuthService(db, nil)

		r := httptest.NewRequest("POST", "/auth/logout", nil)
		r.Header.Set("Authorization", "Bearer some-jwt-token")
		w := httptest.NewRecorder()

		service.Logout(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}
