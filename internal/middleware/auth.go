package middleware

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/zawadihr/backend/internal/services"
)

// AuthMiddleware validates the bearer token and attaches the acting
// account to the request context. Denylisted tokens (logged out) are
// rejected when redis is available.
func AuthMiddleware(redisClient *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "Invalid authorization header format", http.StatusUnauthorized)
				return
			}
			token := parts[1]

			if redisClient != nil {
				key := fmt.Sprintf("denylist:%s", token)
				if n, err := redisClient.Exists(r.Context(), key).Result(); err == nil && n > 0 {
					http.Error(w, "Token has been revoked", http.StatusUnauthorized)
					return
				}
			}

			actor, err := validateToken(token)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), "actor", actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validateToken(tokenString string) (services.Actor, error) {
	var actor services.Actor

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(viper.GetString("jwt.secret_key")), nil
	})
	if err != nil || !token.Valid {
		return actor, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return actor, fmt.Errorf("unexpected claims type")
	}

	userID, err := uuid.Parse(fmt.Sprintf("%v", claims["user_id"]))
	if err != nil {
		return actor, fmt.Errorf("invalid user_id claim: %w", err)
	}
	companyID, err := uuid.Parse(fmt.Sprintf("%v", claims["company_id"]))
	if err != nil {
		return actor, fmt.Errorf("invalid company_id claim: %w", err)
	}

	actor.UserID = userID
	actor.CompanyID = companyID
	actor.Role = fmt.Sprintf("%v", claims["role"])

	if raw, present := claims["employee_id"]; present {
		employeeID, err := uuid.Parse(fmt.Sprintf("%v", raw))
		if err != nil {
			return actor, fmt.Errorf("invalid employee_id claim: %w", err)
		}
		actor.EmployeeID = &employeeID
	}

	return actor, nil
}

// RequireRoles gates a route to the given account roles. It must run after
// AuthMiddleware.
func RequireRoles(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := services.ActorFromContext(r.Context())
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if !allowed[actor.Role] {
				log.Printf("[AUTH] Role %s denied access to %s %s", actor.Role, r.Method, r.URL.Path)
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
