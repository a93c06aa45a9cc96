package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/zawadihr/backend/docs"
	"github.com/zawadihr/backend/internal/config"
	"github.com/zawadihr/backend/internal/database"
	"github.com/zawadihr/backend/internal/handlers"
	mW "github.com/zawadihr/backend/internal/middleware"
	"github.com/zawadihr/backend/internal/models"
	"github.com/zawadihr/backend/internal/services"
)

// @title Zawadi HR Backend API
// @version 1.0
// @description HR administration API with salary advance and leave lifecycle management
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	// Initialize config
	viper.SetConfigFile(".env") // explicitly point to .env file
	viper.AutomaticEnv()        // allow environment variables to override .env
	viper.ReadInConfig()        // read .env file

	viper.SetEnvPrefix("")

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")
	viper.BindEnv("argon2.time", "ARGON2_TIME")
	viper.BindEnv("argon2.memory", "ARGON2_MEMORY")
	viper.BindEnv("argon2.threads", "ARGON2_THREADS")
	viper.BindEnv("argon2.key_length", "ARGON2_KEY_LENGTH")
	viper.BindEnv("argon2.salt_length", "ARGON2_SALT_LENGTH")

	viper.SetDefault("jwt.expiry_hours", 24)
	viper.SetDefault("argon2.time", 1)
	viper.SetDefault("argon2.memory", 64*1024)
	viper.SetDefault("argon2.threads", 4)
	viper.SetDefault("argon2.key_length", 32)
	viper.SetDefault("argon2.salt_length", 16)

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	hrConfig := config.LoadHRConfig()

	// Initialize Swagger docs
	docs.SwaggerInfo.Title = "Zawadi HR Backend API"
	docs.SwaggerInfo.Description = "HR administration API with salary advance and leave lifecycle management"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	// Initialize services
	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	authService := services.NewAuthService(db, redisClient)
	employeeService := services.NewEmployeeService(db)
	policyService := services.NewAdvancePolicyService(db)
	advanceService := services.NewAdvanceService(db, policyService)
	repaymentService := services.NewAdvanceRepaymentService(db)
	analyticsService := services.NewAdvanceAnalyticsService(db)
	leaveService := services.NewLeaveService(db)

	advanceHandler := handlers.NewAdvanceHandler(advanceService, repaymentService, analyticsService, hrConfig)
	leaveHandler := handlers.NewLeaveHandler(leaveService, hrConfig)

	authRequired := mW.AuthMiddleware(redisClient)
	staffOnly := mW.RequireRoles(models.RoleOperations, models.RoleHR, models.RoleAdmin)
	policyAdmins := mW.RequireRoles(models.RoleHR, models.RoleAdmin)
	adminOnly := mW.RequireRoles(models.RoleAdmin)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Access-Control-Allow-Origin"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	// Request attachments (payslips, supporting documents)
	r.Handle("/static/attachments/*", http.StripPrefix("/static/attachments/",
		mW.AttachmentServer(hrConfig.AttachmentsDir)))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints (no auth required)
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)
		r.Post("/auth/logout", authService.Logout)

		// Protected endpoints (auth required)
		r.Group(func(r chi.Router) {
			r.Use(authRequired)

			r.Get("/auth/account", authService.GetProfile)

			// Advance lifecycle
			r.Post("/advances", advanceHandler.CreateRequest)
			r.Get("/advances", advanceHandler.ListRequests)
			r.Get("/advances/eligibility", advanceHandler.CheckEligibility)
			r.Get("/advances/calculate", advanceHandler.CalculateRepayment)
			r.Get("/advances/{requestId}", advanceHandler.GetRequest)
			r.Get("/advances/{requestId}/repayments", advanceHandler.ListRepayments)

			// Leave lifecycle
			r.Post("/leave", leaveHandler.CreateRequest)
			r.Get("/leave", leaveHandler.ListRequests)
			r.Get("/leave/{requestId}", leaveHandler.GetRequest)

			// Staff-only operations
			r.Group(func(r chi.Router) {
				r.Use(staffOnly)

				r.Put("/advances/{requestId}/decision", advanceHandler.Decide)
				r.Put("/advances/{requestId}/disburse", advanceHandler.Disburse)
				r.Post("/advances/{requestId}/repayments", advanceHandler.RecordRepayment)
				r.Get("/advances/analytics", advanceHandler.GetAnalytics)

				r.Put("/leave/{requestId}/decision", leaveHandler.Decide)

				r.Post("/employees", employeeService.CreateEmployee)
				r.Get("/employees", employeeService.ListEmployees)
				r.Get("/employees/{employeeId}", employeeService.GetEmployee)
				r.Put("/employees/{employeeId}/deactivate", employeeService.DeactivateEmployee)
			})

			// Policy administration
			r.Group(func(r chi.Router) {
				r.Use(policyAdmins)

				r.Post("/policies", policyService.CreatePolicy)
				r.Get("/policies", policyService.ListPolicies)
				r.Get("/policies/active", policyService.GetActivePolicy)
				r.Put("/policies/{policyId}/deactivate", policyService.DeactivatePolicy)
			})

			// Account administration
			r.Group(func(r chi.Router) {
				r.Use(adminOnly)

				r.Post("/users", authService.CreateUser)
			})
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// Start server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
