package main

import (
	"net/http"
	"production-service/internal/handler"
	mid "production-service/internal/middleware"
	"production-service/pkg/config"
	"production-service/pkg/database"
	"production-service/pkg/jwtutil"
	"production-service/pkg/logger"
	"production-service/prometheus"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		// Can't use structured logger yet since it's not initialized
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	log.Info("Starting production-service",
		zap.String("environment", appConfig.Server.Env),
		zap.String("port", appConfig.Server.Port))

	// Initialize JWT utility
	jwtutil.Initialize(&appConfig.JWT)
	log.Info("JWT utility initialized")

	// Initialize Prometheus metrics
	prometheus.InitMetrics(appConfig)
	log.Info("Prometheus metrics initialized",
		zap.String("metrics_prefix", appConfig.Metrics.Prefix))

	// Initialize database
	err = database.InitDB(appConfig)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	log.Info("Database connection established")

	// Wire handlers to the database
	handler.Init(database.GetDB())

	// Initialize Echo instance
	e := echo.New()
	e.Server.ReadTimeout = appConfig.Server.ReadTimeout
	e.Server.WriteTimeout = appConfig.Server.WriteTimeout

	// Middleware
	e.Use(middleware.Recover())
	e.Use(mid.RequestIDMiddleware)
	e.Use(mid.MetricsMiddleware)

	// Routes
	// Metrics endpoint
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check endpoint
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	// Production order API routes - auth middleware extracts the acting user
	orderAPI := e.Group("/api/orders", mid.AuthMiddleware)
	orderAPI.GET("", handler.ListOrders)
	orderAPI.POST("", handler.CreateOrder)
	orderAPI.GET("/:po", handler.GetOrder)
	orderAPI.PUT("/:po/quantity", handler.UpdateOrderQuantity)
	orderAPI.DELETE("/:po", handler.DeleteOrder)

	// Pipeline step operations
	orderAPI.POST("/:po/steps/:code/start", handler.StartOperation)
	orderAPI.POST("/:po/steps/:code/complete", handler.CompleteOperation)

	// Edit lock
	orderAPI.GET("/:po/lock", handler.LockStatus)
	orderAPI.POST("/:po/lock", handler.AcquireLock)
	orderAPI.DELETE("/:po/lock", handler.ReleaseLock)
	orderAPI.DELETE("/:po/lock/force", handler.ForceReleaseLock)

	// Defect entries
	operationAPI := e.Group("/api/operations", mid.AuthMiddleware)
	operationAPI.POST("/:id/defects", handler.RecordDefect)
	operationAPI.DELETE("/:id/defects/:defectId", handler.DeleteDefect)

	// Defect catalogue
	masterAPI := e.Group("/api/master-defects", mid.AuthMiddleware)
	masterAPI.GET("", handler.ListMasterDefects)

	// Start server
	port := appConfig.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Server error", zap.Error(err))
	}
}
