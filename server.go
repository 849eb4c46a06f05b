package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/contarapida/finance_backend/api"
	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/middlewares"
	"github.com/contarapida/finance_backend/models"
	"github.com/contarapida/finance_backend/reconcile"
	"github.com/contarapida/finance_backend/utils"
)

const defaultPort = "8080"

// Define a struct to represent the rate limiter.
type RateLimiter struct {
	client *redis.Client
	limit  int64
	window time.Duration
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func getRedisClient(redisAddress string) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: redisAddress,
	})
	return client
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func registerRoutes(r *gin.Engine) {
	// public
	r.POST("/api/auth/signup", api.SignupHandler())
	r.POST("/api/auth/login", api.LoginHandler())

	auth := r.Group("/api", middlewares.RequireAuth())
	auth.POST("/auth/logout", api.LogoutHandler())

	auth.GET("/business", api.GetBusinessHandler())
	auth.PUT("/business", middlewares.RequireRole(models.UserRoleOwner), api.UpdateBusinessHandler())
	auth.PUT("/business/plan", middlewares.RequireRole(models.UserRoleOwner), api.UpdateBusinessPlanHandler())

	auth.GET("/users", middlewares.RequireRole(models.UserRoleAdmin), api.ListUsersHandler())
	auth.POST("/users", middlewares.RequireRole(models.UserRoleAdmin), api.CreateUserHandler())
	auth.PUT("/users/:id/role", middlewares.RequireRole(models.UserRoleOwner), api.UpdateUserRoleHandler())
	auth.PUT("/users/:id/active", middlewares.RequireRole(models.UserRoleAdmin), api.ToggleActiveUserHandler())

	auth.GET("/wallets", api.ListWalletsHandler())
	auth.GET("/wallets/:id", api.GetWalletHandler())
	auth.POST("/wallets", middlewares.RequireRole(models.UserRoleMember), api.CreateWalletHandler())
	auth.PUT("/wallets/:id", middlewares.RequireRole(models.UserRoleMember), api.UpdateWalletHandler())
	auth.DELETE("/wallets/:id", middlewares.RequireRole(models.UserRoleAdmin), api.DeleteWalletHandler())
	auth.POST("/wallets/:id/recalculate", middlewares.RequireRole(models.UserRoleMember), api.RecalculateWalletBalanceHandler())
	auth.POST("/wallets/recalculate", middlewares.RequireRole(models.UserRoleAdmin), api.RecalculateAllBalancesHandler())

	auth.GET("/transactions", api.ListTransactionsHandler())
	auth.GET("/transactions/:id", api.GetTransactionHandler())
	auth.POST("/transactions", middlewares.RequireRole(models.UserRoleMember), api.CreateTransactionHandler())
	auth.PUT("/transactions/:id", middlewares.RequireRole(models.UserRoleMember), api.UpdateTransactionHandler())
	auth.DELETE("/transactions/:id", middlewares.RequireRole(models.UserRoleMember), api.DeleteTransactionHandler())

	auth.GET("/categories", api.ListCategoriesHandler())
	auth.GET("/categories/:id", api.GetCategoryHandler())
	auth.POST("/categories", middlewares.RequireRole(models.UserRoleMember), api.CreateCategoryHandler())
	auth.PUT("/categories/:id", middlewares.RequireRole(models.UserRoleMember), api.UpdateCategoryHandler())
	auth.DELETE("/categories/:id", middlewares.RequireRole(models.UserRoleAdmin), api.DeleteCategoryHandler())

	auth.GET("/budgets", api.ListBudgetsHandler())
	auth.GET("/budgets/:id", api.GetBudgetHandler())
	auth.GET("/budgets/:id/usage", api.BudgetUsageHandler())
	auth.POST("/budgets", middlewares.RequireRole(models.UserRoleMember), api.CreateBudgetHandler())
	auth.PUT("/budgets/:id", middlewares.RequireRole(models.UserRoleMember), api.UpdateBudgetHandler())
	auth.DELETE("/budgets/:id", middlewares.RequireRole(models.UserRoleMember), api.DeleteBudgetHandler())

	auth.GET("/goals", api.ListGoalsHandler())
	auth.GET("/goals/:id", api.GetGoalHandler())
	auth.GET("/goals/:id/progress", api.GoalProgressHandler())
	auth.POST("/goals", middlewares.RequireRole(models.UserRoleMember), api.CreateGoalHandler())
	auth.PUT("/goals/:id", middlewares.RequireRole(models.UserRoleMember), api.UpdateGoalHandler())
	auth.DELETE("/goals/:id", middlewares.RequireRole(models.UserRoleMember), api.DeleteGoalHandler())

	auth.GET("/forecast", api.ForecastHandler())

	// reconciliation + provider integrations
	auth.GET("/integrations/:provider/status", reconcile.StatusHandler())
	auth.POST("/integrations/connect", middlewares.RequireRole(models.UserRoleAdmin), reconcile.ConnectHandler())
	auth.POST("/integrations/:provider/disconnect", middlewares.RequireRole(models.UserRoleAdmin), reconcile.DisconnectHandler())
	auth.POST("/integrations/:provider/settings", middlewares.RequireRole(models.UserRoleAdmin), reconcile.UpdateSettingsHandler())
	auth.POST("/integrations/:provider/reconcile", middlewares.RequireRole(models.UserRoleMember), reconcile.TriggerReconcileHandler())
	auth.GET("/integrations/:provider/runs", reconcile.RunHistoryHandler())
	auth.GET("/reconcile/runs/:id", reconcile.RunDetailHandler())
	auth.POST("/reconcile/runs/:id/retry", middlewares.RequireRole(models.UserRoleMember), reconcile.RetryRunHandler())
	auth.GET("/reconcile/runs/:id/report", reconcile.RunReportHandler())
	auth.GET("/reconcile/runs/:id/report.xlsx", reconcile.RunReportExcelHandler())
	auth.GET("/reconcile/conflicts", reconcile.ConflictListHandler())
	auth.POST("/reconcile/conflicts/:id/resolve", middlewares.RequireRole(models.UserRoleMember), reconcile.ResolveConflictHandler())

	// Pub/Sub push endpoint for the reconcile worker.
	r.POST("/pubsub/reconcile", reconcile.PubSubPushHandler())

	r.NoRoute(customNotFoundHandler)
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		// Cloud Run standard env var.
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()

	// Cloud Run sends SIGTERM on revision shutdown; handle it for graceful drain.
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	// Start the HTTP server ASAP so Cloud Run considers the revision healthy.
	// Until DB/Redis are ready, app endpoints return 503.
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		if config.GetDB() == nil || config.GetRedisDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production, require an explicit allowlist via CORS_ALLOWED_ORIGINS.
	allowedOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production") {
		if allowedOrigins == "" {
			corsConfig.AllowOrigins = []string{}
		} else {
			corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
		}
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AddExposeHeaders("Content-Length")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	// Optional rate limiting.
	// Env:
	// - RATE_LIMIT_ENABLED=true
	// - RATE_LIMIT_WINDOW_SECONDS=60
	// - RATE_LIMIT_MAX_REQUESTS=600
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RATE_LIMIT_ENABLED")), "true") {
		client := getRedisClient(os.Getenv("REDIS_ADDRESS"))
		limit := int64(600)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_REQUESTS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				limit = n
			}
		}
		windowSec := int64(60)
		if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_WINDOW_SECONDS")); v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
				windowSec = n
			}
		}
		rateLimiter := NewRateLimiter(client, limit, time.Duration(windowSec)*time.Second)
		r.Use(rateLimiter.RateLimitMiddleware)
	}

	// Accept "Authorization: Bearer x" as an alias for the token header.
	r.Use(func(c *gin.Context) {
		if c.GetHeader("token") == "" {
			auth := strings.TrimSpace(c.GetHeader("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token := strings.TrimSpace(auth[7:])
				if token != "" {
					c.Request.Header.Set("token", token)
				}
			}
		}
		c.Next()
	})
	r.Use(middlewares.SessionMiddleware())
	r.Use(requestLogger(logger))
	r.Use(gin.Recovery())

	registerRoutes(r)

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		// ListenAndServe returns http.ErrServerClosed on graceful shutdown.
		serverErrCh <- srv.ListenAndServe()
	}()

	// Connect dependencies after the port is open.
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow running migrations
	// as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	// Set the session isolation level to READ COMMITTED
	for attempt := 1; ; attempt++ {
		err := db.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			break
		}
		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		logger.WithFields(logrus.Fields{
			"field":   "database",
			"attempt": attempt,
		}).Warn("failed to set isolation level; retrying in " + sleep.String() + ": " + err.Error())
		time.Sleep(sleep)
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
		// graceful shutdown below
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownTimeout := 30 * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	// Close Redis (best-effort).
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}

// requestLogger logs one structured line per request.
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		cid, _ := utils.GetCorrelationIdFromContext(c.Request.Context())
		logger.WithFields(logrus.Fields{
			"status":         c.Writer.Status(),
			"method":         c.Request.Method,
			"path":           c.Request.URL.Path,
			"latency":        latency.String(),
			"correlation_id": cid,
		}).Info("request")
	}
}

// Initialize a new RateLimiter instance.
func NewRateLimiter(client *redis.Client, limit int64, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
	}
}

// Middleware function to check rate limits.
func (rl *RateLimiter) RateLimitMiddleware(c *gin.Context) {
	key := c.ClientIP()

	exists, err := rl.client.Exists(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if exists == 0 {
		err := rl.client.Set(c.Request.Context(), key, 1, rl.window).Err()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Next()
		return
	}

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		c.AbortWithError(http.StatusInternalServerError, err)
		return
	}

	if count > rl.limit {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Rate limit exceeded. Try again in %d seconds", int(rl.window.Seconds())),
		})
		return
	}

	c.Next()
}

func splitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
