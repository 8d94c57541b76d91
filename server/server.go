package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/winsave/winsave-api/handlers"
)

// NewRouter assembles the gin engine with all routes registered.
func NewRouter(txHandler *handlers.TransactionHandler, healthHandler *handlers.HealthHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", healthHandler.GetHealth)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/transactions", txHandler.ExecuteTransaction)
		v1.GET("/transactions/:hash", txHandler.GetTransactionStatus)
		v1.POST("/gas/estimate", txHandler.EstimateGas)
	}

	return router
}
