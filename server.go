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

	"github.com/abdoul9859/techplus/config"
	"github.com/abdoul9859/techplus/middlewares"
	"github.com/abdoul9859/techplus/models"
	"github.com/abdoul9859/techplus/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const defaultPort = "8080"

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}
		if correlationId, ok := utils.GetCorrelationIdFromContext(c.Request.Context()); ok {
			fields["correlationId"] = correlationId
		}
		entry := logger.WithFields(fields)
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Info("request")
		}
	}
}

func newRouter() *gin.Engine {
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(requestLogger(config.GetLogger()))
	r.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if allowedOrigins := os.Getenv("ALLOWED_ORIGINS"); allowedOrigins != "" {
		corsConfig.AllowOrigins = splitAndTrim(allowedOrigins)
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AddAllowMethods("GET", "POST", "PUT", "DELETE", "OPTIONS")
	corsConfig.AddAllowHeaders("Origin", "Content-Type", "Authorization", "X-Correlation-Id")
	corsConfig.AddExposeHeaders("Content-Length", "X-Correlation-Id")
	if !corsConfig.AllowAllOrigins {
		corsConfig.AllowCredentials = true
	}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/api/auth/login", loginHandler())

	api := r.Group("/api", middlewares.AuthMiddleware())
	{
		api.GET("/auth/me", currentUserHandler())

		invoices := api.Group("/invoices")
		{
			invoices.GET("", listInvoicesHandler())
			invoices.GET("/paginated", paginatedInvoicesHandler())
			invoices.GET("/next-number", nextInvoiceNumberHandler())
			invoices.GET("/stats/dashboard", invoiceStatsHandler())
			invoices.GET("/:id", getInvoiceHandler())
			invoices.POST("", createInvoiceHandler())
			invoices.PUT("/:id", updateInvoiceHandler())
			invoices.DELETE("/:id", middlewares.RequireAdmin(), deleteInvoiceHandler())
			invoices.PUT("/:id/status", updateInvoiceStatusHandler())
			invoices.POST("/:id/payments", addInvoicePaymentHandler())
			invoices.POST("/:id/delivery-note", createDeliveryNoteFromInvoiceHandler())
		}

		products := api.Group("/products")
		{
			products.GET("", listProductsHandler())
			products.POST("", createProductHandler())
			products.GET("/id/:id", getProductHandler())
			products.PUT("/id/:id", updateProductHandler())
			products.DELETE("/id/:id", middlewares.RequireAdmin(), deleteProductHandler())
			products.GET("/id/:id/movements", listProductMovementsHandler())
			products.GET("/scan/:code", scanBarcodeHandler())
			products.GET("/settings/conditions", getProductConditionsHandler())
			products.PUT("/settings/conditions", middlewares.RequireAdmin(), setProductConditionsHandler())
		}

		clients := api.Group("/clients")
		{
			clients.GET("", listClientsHandler())
			clients.POST("", createClientHandler())
			clients.GET("/:id", getClientHandler())
			clients.PUT("/:id", updateClientHandler())
			clients.DELETE("/:id", middlewares.RequireAdmin(), deleteClientHandler())
		}

		quotations := api.Group("/quotations")
		{
			quotations.GET("", listQuotationsHandler())
			quotations.POST("", createQuotationHandler())
			quotations.GET("/:id", getQuotationHandler())
			quotations.PUT("/:id/status", updateQuotationStatusHandler())
			quotations.DELETE("/:id", middlewares.RequireAdmin(), deleteQuotationHandler())
		}

		deliveryNotes := api.Group("/delivery-notes")
		{
			deliveryNotes.GET("", listDeliveryNotesHandler())
			deliveryNotes.GET("/:id", getDeliveryNoteHandler())
			deliveryNotes.PUT("/:id/status", updateDeliveryNoteStatusHandler())
			deliveryNotes.DELETE("/:id", middlewares.RequireAdmin(), deleteDeliveryNoteHandler())
		}
	}
	return r
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	if strings.EqualFold(os.Getenv("GIN_MODE"), "release") {
		gin.SetMode(gin.ReleaseMode)
	}

	r := newRouter()
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Listen first so the health check answers while the database warms up.
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()
	log.Printf("listening on :%s", port)

	config.ConnectDatabaseWithRetry()
	if err := models.MigrateTable(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	config.ConnectRedis()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	case sig := <-quit:
		log.Printf("received %s, shutting down", sig)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("forced shutdown: %v", err)
		}
	}
}
