package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/contarapida/finance_backend/config"
	"github.com/contarapida/finance_backend/middlewares"
	"github.com/contarapida/finance_backend/models"
	"github.com/contarapida/finance_backend/reconcile"
)

// Standalone reconciliation service. Hosts the integration/reconcile API and
// the Pub/Sub push endpoint so reconcile runs can be scaled apart from the
// main API.
func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = "8081"
	}

	logger := config.GetLogger()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(func(c *gin.Context) {
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
	corsConfig.AddAllowMethods("GET", "POST", "OPTIONS")
	corsConfig.AddAllowHeaders("token", "Origin", "Content-Type", "Authorization")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

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
	r.Use(gin.Recovery())

	auth := r.Group("/api", middlewares.RequireAuth())
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

	r.POST("/pubsub/reconcile", reconcile.PubSubPushHandler())

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
	})

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	// Migrations normally belong to the main API; opt in here only when this
	// service runs alone.
	if strings.EqualFold(strings.TrimSpace(os.Getenv("RUN_MIGRATIONS")), "true") {
		models.MigrateTable()
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("reconcile service listening on http://localhost:", port)

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
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
