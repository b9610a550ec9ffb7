package main

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"lunchbreak/config"
	"lunchbreak/internal/database"
	"lunchbreak/internal/gateway/clients"
	"lunchbreak/internal/gateway/handlers"
	"lunchbreak/internal/gateway/middleware"
	"lunchbreak/internal/jobs"
	"lunchbreak/internal/logger"
	ordering "lunchbreak/internal/services/ordering/handler"
	stores "lunchbreak/internal/services/stores/handler"
)

func main() {
	cfg := config.LoadConfig()
	logger.Setup(cfg.Log)

	if cfg.Auth.JWTSecret == "" {
		logrus.Fatal("JWT_SECRET must be set")
	}
	secret := []byte(cfg.Auth.JWTSecret)

	redisClient := config.NewRedisClient(cfg.Redis)
	defer redisClient.Close()

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		logrus.Fatalf("Failed to connect to db: %v", err)
	}
	if err := database.MigrateOrderingDB(db); err != nil {
		logrus.Fatalf("Failed to migrate ordering database: %v", err)
	}

	workerClient, err := clients.NewWorkerClient(cfg.Worker.GRPCAddr)
	if err != nil {
		logrus.Warnf("Worker health checks unavailable: %v", err)
	}
	defer workerClient.Close()

	limit, err := middleware.RateLimit(cfg.HTTP.RateLimit)
	if err != nil {
		logrus.Fatal(err)
	}

	queue := jobs.NewRedisQueue(redisClient, cfg.Worker.QueueKey)
	orderHandler := handlers.NewOrderHTTPHandler(
		ordering.NewOrderHandler(db, jobs.NewRelay(db, queue), jobs.NewNotifier(redisClient)),
	)
	storeHandler := handlers.NewStoreHTTPHandler(stores.NewStoreHandler(db, redisClient))

	r := gin.New()

	r.Use(middleware.CORS())
	r.Use(middleware.RequestID())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(limit)

	// --- Public API Group ---
	public := r.Group("/api/v1")
	{
		public.GET("/stores/:id/opening-periods", storeHandler.GetOpeningHours)
		public.GET("/stores/:id/holiday-periods", storeHandler.GetHolidayPeriods)
		public.GET("/stores/:id/open", storeHandler.CheckOpen)
		public.POST("/orders/price", orderHandler.PreviewPrices)
	}

	// --- Protected API Group ---
	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth(secret))
	{
		orders := protected.Group("/orders")
		{
			orders.POST("", orderHandler.CreateOrder)
			orders.GET("", orderHandler.ListOrders)
			orders.GET("/:id", orderHandler.GetOrder)
		}

		protected.PUT("/stores/:id/temporary-order", orderHandler.SaveTemporaryOrder)
	}

	// --- Staff API Group ---
	staff := r.Group("/api/v1")
	staff.Use(middleware.JWTAuth(secret), middleware.StaffOnly())
	{
		staff.PATCH("/orders/:id", orderHandler.UpdateStatus)
		staff.PATCH("/orders/:id/orderedfood/:ofid", orderHandler.UpdateLineStatus)
		staff.PATCH("/group-orders/:id", orderHandler.UpdateGroupOrderStatus)

		staff.POST("/stores/:id/opening-periods", storeHandler.CreateOpeningPeriod)
		staff.DELETE("/stores/:id/opening-periods/:pid", storeHandler.DeleteOpeningPeriod)
		staff.POST("/stores/:id/holiday-periods", storeHandler.CreateHolidayPeriod)
		staff.DELETE("/stores/:id/holiday-periods/:pid", storeHandler.DeleteHolidayPeriod)

		staff.DELETE("/foods/:id", storeHandler.DeleteFood)
		staff.DELETE("/ingredients/:id", storeHandler.DeleteIngredient)
	}

	r.GET("/health", healthCheckHandler(workerClient))
	r.GET("/health/detailed", detailedHealthCheckHandler(db, redisClient, workerClient))

	logrus.Infof("Gateway listening on :%s", cfg.HTTP.Port)
	if err := r.Run(":" + cfg.HTTP.Port); err != nil {
		logrus.Fatalf("Failed to start server: %v", err)
	}
}
