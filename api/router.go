package api

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"news-stream-service/middleware"
	"news-stream-service/registry"
	"news-stream-service/store"
)

// Deps gathers everything the HTTP surface needs.
type Deps struct {
	NewsStore   *store.NewsStore
	SubStore    *store.SubscriptionStore
	Registry    *registry.Registry
	SendTimeout time.Duration
}

// NewRouter builds the gin engine with the REST API, the websocket endpoint
// and the Prometheus scrape endpoint.
func NewRouter(deps Deps) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))
	router.Use(middleware.Prometheus())

	newsHandler := NewNewsHandler(deps.NewsStore, deps.SubStore, deps.Registry)
	wsHandler := NewWSHandler(deps.Registry, deps.SubStore, deps.SendTimeout)

	// Health check routes
	router.GET("/", healthCheck)
	router.GET("/health", healthCheck)
	router.GET("/ready", healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	{
		api.GET("/news", newsHandler.GetNews)
		api.GET("/stats", newsHandler.GetStats)
		api.POST("/subscriptions", newsHandler.CreateSubscription)
		api.GET("/subscriptions/:user_id", newsHandler.GetSubscription)
		api.DELETE("/subscriptions/:user_id", newsHandler.DeleteSubscription)
	}

	// Real-time delivery
	router.GET("/ws/news", wsHandler.Handle)

	return router
}

// StartServer runs the HTTP server; it blocks until the listener fails.
func StartServer(deps Deps, port string) {
	router := NewRouter(deps)

	log.Printf("News stream API is running at :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "healthy", "service": "news-stream-service"})
}
