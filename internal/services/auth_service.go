package services

import (
	"context"
	cryptorand "crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/zawadihr/backend/internal/models"
	"golang.org/x/crypto/argon2"
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
}

func NewAuthService(db *sql.DB, redisClient *redis.Client) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

// RegisterRequest signs up a new company with its first admin account.
// @Description Company registration request
type RegisterRequest struct {
	CompanyName string `json:"company_name" validate:"required,min=2" example:"Zawadi Tea Estates"`
	Email       string `json:"email" validate:"required,email" example:"admin@zawaditea.co.ke"`
	Password    string `json:"password" validate:"required,min=8" example:"correct-horse-battery"`
	FirstName   string `json:"first_name" validate:"required,min=2" example:"Amina"`
	LastName    string `json:"last_name" validate:"required,min=2" example:"Odhiambo"`
}

// LoginRequest authenticates an existing account.
// @Description Login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// AuthResponse carries the issued token and account.
// @Description Authentication response
type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Register signs up a new company and its first admin user
// @Summary Register company
// @Description Create a company tenant and its administrator account
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 201 {object} AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req RegisterRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	now := time.Now()
	companyID := uuid.New()
	if _, err := tx.Exec(`INSERT INTO companies (id, name, created_at) VALUES ($1, $2, $3)`,
		companyID, req.CompanyName, now); err != nil {
		log.Printf("[AUTH] Company creation failed for %s: %v", req.CompanyName, err)
		SendErrorResponse(w, "Failed to create company", http.StatusInternalServerError, nil)
		return
	}

	user := models.User{
		ID:        uuid.New(),
		CompanyID: companyID,
		Email:     strings.ToLower(req.Email),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      models.RoleAdmin,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := tx.Exec(`
		INSERT INTO users (id, company_id, email, password, first_name, last_name, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.CompanyID, user.Email, hashedPassword, user.FirstName, user.LastName,
		user.Role, user.CreatedAt, user.UpdatedAt); err != nil {
		log.Printf("[AUTH] User creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Email already exists", http.StatusConflict, nil)
		return
	}

	if err := tx.Commit(); err != nil {
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	token, err := generateJWT(&user)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %s: %v", user.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] Registered company %s with admin %s", companyID, user.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(AuthResponse{Token: token, User: user})
}

// CreateUserRequest provisions a staff account inside the caller's company.
// @Description Staff account creation request
type CreateUserRequest struct {
	Email      string     `json:"email" validate:"required,email"`
	Password   string     `json:"password" validate:"required,min=8"`
	FirstName  string     `json:"first_name" validate:"required,min=2"`
	LastName   string     `json:"last_name" validate:"required,min=2"`
	Role       string     `json:"role" validate:"required,oneof=employee operations hr admin"`
	EmployeeID *uuid.UUID `json:"employee_id,omitempty"` // links the account to an employee record
}

// CreateUser provisions a staff account
// @Summary Create staff account
// @Description Create an account with a role and optional employee link (admin only)
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateUserRequest true "Account data"
// @Success 201 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /users [post]
func (s *AuthService) CreateUser(w http.ResponseWriter, r *http.Request) {
	companyID, ok := CompanyIDFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req CreateUserRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		SendErrorResponse(w, "An internal error occurred", http.StatusInternalServerError, nil)
		return
	}

	now := time.Now()
	user := models.User{
		ID:         uuid.New(),
		CompanyID:  companyID,
		Email:      strings.ToLower(req.Email),
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Role:       req.Role,
		EmployeeID: req.EmployeeID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.db.Exec(`
		INSERT INTO users (id, company_id, email, password, first_name, last_name, role, employee_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		user.ID, user.CompanyID, user.Email, hashedPassword, user.FirstName, user.LastName,
		user.Role, user.EmployeeID, user.CreatedAt, user.UpdatedAt); err != nil {
		log.Printf("[AUTH] Staff account creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Email already exists", http.StatusConflict, nil)
		return
	}

	log.Printf("[AUTH] Created %s account %s in company %s", user.Role, user.ID, companyID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user)
}

// Login authenticates an account
// @Summary Login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse
// @Failure 401 {object} ErrorResponse
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Login attempt from IP: %s", r.RemoteAddr)

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req LoginRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var user models.User
	var hashedPassword string
	err := s.db.QueryRow(`
		SELECT id, company_id, email, password, first_name, last_name, role, employee_id
		FROM users
		WHERE email = $1`, strings.ToLower(req.Email)).
		Scan(&user.ID, &user.CompanyID, &user.Email, &hashedPassword, &user.FirstName,
			&user.LastName, &user.Role, &user.EmployeeID)
	if err != nil {
		log.Printf("[AUTH] User not found for email: %s", req.Email)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	if !verifyPassword(req.Password, hashedPassword) {
		log.Printf("[AUTH] Invalid password for user: %s", req.Email)
		SendErrorResponse(w, "Invalid credentials", http.StatusUnauthorized, nil)
		return
	}

	token, err := generateJWT(&user)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %s: %v", user.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	now := time.Now()
	if _, err := s.db.Exec(`UPDATE users SET last_login = $1 WHERE id = $2`, now, user.ID); err != nil {
		log.Printf("[AUTH] Failed to record last login for %s: %v", user.ID, err)
	}
	user.LastLogin = &now

	log.Printf("[AUTH] Login successful for user %s (role: %s)", user.ID, user.Role)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(AuthResponse{Token: token, User: user})
}

// Logout invalidates the presented token
// @Summary Logout
// @Description Logout and denylist the bearer token until it expires
// @Tags auth
// @Produce json
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token != "" && len(token) > 7 {
		token = token[7:] // strip "Bearer "

		if s.redis != nil {
			ctx := context.Background()
			key := fmt.Sprintf("denylist:%s", token)
			expiry := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
			if err := s.redis.Set(ctx, key, "1", expiry).Err(); err != nil {
				log.Printf("[AUTH] Failed to denylist token: %v", err)
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Logout successful"})
}

// GetProfile returns the authenticated account
// @Summary Get own account
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /auth/account [get]
func (s *AuthService) GetProfile(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var user models.User
	err := s.db.QueryRow(`
		SELECT id, company_id, email, first_name, last_name, role, employee_id, last_login, created_at, updated_at
		FROM users
		WHERE id = $1 AND company_id = $2`, actor.UserID, actor.CompanyID).
		Scan(&user.ID, &user.CompanyID, &user.Email, &user.FirstName, &user.LastName,
			&user.Role, &user.EmployeeID, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err == sql.ErrNoRows {
		SendErrorResponse(w, "User not found", http.StatusNotFound, nil)
		return
	}
	if err != nil {
		log.Printf("[AUTH] Failed to fetch account %s: %v", actor.UserID, err)
		SendErrorResponse(w, "Failed to fetch account", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user)
}

func generateJWT(user *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id":    user.ID.String(),
		"company_id": user.CompanyID.String(),
		"role":       user.Role,
		"exp":        time.Now().Add(time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour).Unix(),
	}
	if user.EmployeeID != nil {
		claims["employee_id"] = user.EmployeeID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, viper.GetInt("argon2.salt_length"))
	if _, err := cryptorand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return fmt.Sprintf("%s$%s", base64.StdEncoding.EncodeToString(salt), base64.StdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, hashedPassword string) bool {
	parts := strings.Split(hashedPassword, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	hash, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt,
		uint32(viper.GetInt("argon2.time")),
		uint32(viper.GetInt("argon2.memory")),
		uint8(viper.GetInt("argon2.threads")),
		uint32(viper.GetInt("argon2.key_length")))
	return string(hash) == string(computedHash)
}
