package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/allcitylocks/locksmith_backend/config"
	"github.com/allcitylocks/locksmith_backend/middlewares"
	"github.com/allcitylocks/locksmith_backend/models"
	"github.com/allcitylocks/locksmith_backend/pdf"
	"github.com/allcitylocks/locksmith_backend/utils"
)

const defaultPort = "8080"

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// customErrorLogger logs only requests that collected gin errors.
func customErrorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 {
			logger.Error(c.Errors.String())
		}
	}
}

func customNotFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "route not found"})
}

func newRouter() *gin.Engine {
	logger := config.GetLogger()

	r := gin.New()
	// Correlation IDs: generate once per request and attach to context.
	r.Use(func(c *gin.Context) {
		cid := c.GetHeader("x-correlation-id")
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), cid))
		c.Next()
	})
	r.Use(func(c *gin.Context) {
		// Always allow the startup probe.
		if c.Request.URL.Path == "/healthz" {
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}
		// Gate application endpoints on database readiness. Redis is optional
		// and never blocks requests.
		if config.GetDB() == nil {
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		c.Next()
	})

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	corsConfig := cors.DefaultConfig()
	// In production require an explicit allowlist via CORS_ALLOWED_ORIGINS
	// (comma-separated); elsewhere allow all for developer convenience.
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
	corsConfig.AddExposeHeaders("Content-Length", "Content-Disposition")
	corsConfig.AllowCredentials = true
	r.Use(cors.New(corsConfig))

	r.Use(customErrorLogger(logger))
	r.Use(gin.Recovery())

	renderer := pdf.NewHTTPRenderer()
	vinDecoder := models.NewVinDecoder(models.NewVinCache(24*time.Hour, 512))

	r.POST("/signin", signinHandler())
	// Scheduler entry point, shared-secret guarded instead of JWT.
	r.POST("/tasks/sweep-overdue", sweepOverdueHandler())

	api := r.Group("/api")
	api.Use(middlewares.AuthMiddleware())
	{
		api.POST("/change-password", changePasswordHandler())

		api.POST("/customers", createCustomerHandler())
		api.GET("/customers", listCustomersHandler())
		api.GET("/customers/:id", getCustomerHandler())
		api.PUT("/customers/:id", updateCustomerHandler())
		api.DELETE("/customers/:id", deleteCustomerHandler())

		api.POST("/services", createServiceHandler())
		api.GET("/services", listServicesHandler())
		api.GET("/services/:id", getServiceHandler())
		api.PUT("/services/:id", updateServiceHandler())
		api.DELETE("/services/:id", deleteServiceHandler())

		api.POST("/invoices", createInvoiceHandler())
		api.GET("/invoices", listInvoicesHandler())
		api.GET("/invoices/:id", getInvoiceHandler())
		api.PUT("/invoices/:id", updateInvoiceHandler())
		api.DELETE("/invoices/:id", deleteInvoiceHandler())
		api.POST("/invoices/:id/pay", payInvoiceHandler())
		api.GET("/invoices/:id/payments", listInvoicePaymentsHandler())
		api.GET("/invoices/:id/pdf", invoicePdfHandler(renderer))

		api.POST("/quotes", createQuoteHandler())
		api.GET("/quotes", listQuotesHandler())
		api.GET("/quotes/:id", getQuoteHandler())
		api.PUT("/quotes/:id", updateQuoteHandler())
		api.DELETE("/quotes/:id", deleteQuoteHandler())
		api.POST("/quotes/:id/convert", convertQuoteHandler())
		api.POST("/quotes/:id/reject", rejectQuoteHandler())
		api.GET("/quotes/:id/pdf", quotePdfHandler(renderer))

		api.GET("/summary", summaryHandler())
		api.GET("/summary/export", summaryExportHandler())

		api.GET("/vin/:vin", vinHandler(vinDecoder))
	}

	r.NoRoute(customNotFoundHandler)
	return r
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

	r := newRouter()

	// Start listening immediately (the startup probe is TCP based). Until the
	// database is ready the readiness gate returns 503 for app endpoints.
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
	config.ConnectRedis()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	// AutoMigrate can run DDL that blocks tables; allow disabling migrations
	// on startup and running them as a separate job instead.
	if !strings.EqualFold(strings.TrimSpace(os.Getenv("SKIP_MIGRATIONS")), "true") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	logger.WithFields(logrus.Fields{
		"info": "Connection Established",
	}).Info("listening on http://localhost:", port, "/")
	log.Println("Server started successfully")

	// Block until shutdown or server error.
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

	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
