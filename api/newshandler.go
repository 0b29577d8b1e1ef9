package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"news-stream-service/model"
	"news-stream-service/registry"
	"news-stream-service/store"
)

type NewsHandler struct {
	news     *store.NewsStore
	subs     *store.SubscriptionStore
	registry *registry.Registry
	started  time.Time
}

func NewNewsHandler(news *store.NewsStore, subs *store.SubscriptionStore, reg *registry.Registry) *NewsHandler {
	return &NewsHandler{news: news, subs: subs, registry: reg, started: time.Now()}
}

// GetNews lists processed items with optional filters.
func (h *NewsHandler) GetNews(c *gin.Context) {
	start := time.Now()

	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	offset, _ := strconv.ParseInt(c.DefaultQuery("offset", "0"), 10, 64)
	minImpact, _ := strconv.ParseFloat(c.DefaultQuery("min_score", "0"), 64)
	startTime, _ := strconv.ParseFloat(c.DefaultQuery("start_time", "0"), 64)
	endTime, _ := strconv.ParseFloat(c.DefaultQuery("end_time", "0"), 64)

	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 || offset > 1000 {
		offset = 0
	}

	query := store.NewsQuery{
		Source:    c.Query("source"),
		Category:  c.Query("category"),
		MinImpact: minImpact,
		Ticker:    c.Query("ticker"),
		Person:    c.Query("person"),
		StartTime: startTime,
		EndTime:   endTime,
		Limit:     limit,
		Offset:    offset,
	}

	items, total, err := h.news.List(c.Request.Context(), query)
	if err != nil {
		log.Printf("DB query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve news items"})
		return
	}
	if items == nil {
		items = []model.NewsItem{}
	}

	log.Printf("Returned %d news items in %v", len(items), time.Since(start))
	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetStats reports pipeline statistics for monitoring.
func (h *NewsHandler) GetStats(c *gin.Context) {
	stats, err := h.news.Stats(c.Request.Context())
	if err != nil {
		log.Printf("Stats query failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve statistics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_news_items":   stats.TotalItems,
		"items_last_24h":     stats.ItemsLast24h,
		"average_impact":     stats.AverageImpact,
		"active_connections": h.registry.Count(),
		"uptime_seconds":     time.Since(h.started).Seconds(),
		"version":            "0.1.0",
	})
}

// CreateSubscription creates or replaces a user's filter criteria.
func (h *NewsHandler) CreateSubscription(c *gin.Context) {
	var sub model.Subscription
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	if sub.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}
	if t := sub.ImpactThreshold; t != nil && (*t < 0 || *t > 100) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "impact_threshold must be between 0 and 100"})
		return
	}

	if err := h.subs.Upsert(c.Request.Context(), &sub); err != nil {
		log.Printf("Failed to upsert subscription for user=%s: %v", sub.UserID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create subscription"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"status":     "created",
		"user_id":    sub.UserID,
		"created_at": sub.CreatedAt,
	})
}

// GetSubscription returns one user's subscription record.
func (h *NewsHandler) GetSubscription(c *gin.Context) {
	userID := c.Param("user_id")

	sub, err := h.subs.Subscription(c.Request.Context(), userID)
	if err != nil {
		log.Printf("Failed to load subscription for user=%s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve subscription"})
		return
	}
	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found", "user_id": userID})
		return
	}

	c.JSON(http.StatusOK, sub)
}

// DeleteSubscription removes a user's subscription record.
func (h *NewsHandler) DeleteSubscription(c *gin.Context) {
	userID := c.Param("user_id")

	if err := h.subs.Delete(c.Request.Context(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Subscription not found", "user_id": userID})
			return
		}
		log.Printf("Failed to delete subscription for user=%s: %v", userID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete subscription"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "user_id": userID})
}
