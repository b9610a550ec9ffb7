package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"lunchbreak/internal/gateway/clients"
)

func healthCheckHandler(worker *clients.WorkerClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		status := "healthy"
		httpStatus := http.StatusOK

		unavailableServices := []string{}
		if !worker.IsWorkerHealthy(ctx) {
			unavailableServices = append(unavailableServices, "worker")
		}

		if len(unavailableServices) > 0 {
			status = "degraded"
			httpStatus = http.StatusPartialContent
		}

		c.JSON(httpStatus, gin.H{
			"status":               status,
			"message":              "Server is running",
			"unavailable_services": unavailableServices,
			"timestamp":            time.Now(),
		})
	}
}

func detailedHealthCheckHandler(db *gorm.DB, redisClient *redis.Client, worker *clients.WorkerClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		dbHealthy := false
		if sqlDB, err := db.DB(); err == nil {
			dbHealthy = sqlDB.PingContext(ctx) == nil
		}

		services := map[string]map[string]interface{}{
			"database": checkServiceHealth(dbHealthy),
			"redis":    checkServiceHealth(redisClient.Ping(ctx).Err() == nil),
			"worker":   checkServiceHealth(worker.IsWorkerHealthy(ctx)),
		}

		overallStatus := "healthy"
		for _, service := range services {
			if service["status"] != "healthy" {
				overallStatus = "degraded"
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"overall_status": overallStatus,
			"services":       services,
			"timestamp":      time.Now(),
		})
	}
}

func checkServiceHealth(isHealthy bool) map[string]interface{} {
	if !isHealthy {
		return map[string]interface{}{
			"status":  "unavailable",
			"message": "Service not reachable",
		}
	}
	return map[string]interface{}{
		"status":  "healthy",
		"message": "Service is responding",
	}
}
