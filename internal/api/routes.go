package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/framevault/dedupe-engine/internal/cache"
	"github.com/framevault/dedupe-engine/internal/db"
	"github.com/framevault/dedupe-engine/internal/resolution"
	"github.com/framevault/dedupe-engine/internal/scanner"
)

type APIHandler struct {
	dbStore    *db.PostgresStore
	manager    *resolution.Manager
	wsHub      *Hub
	libScanner *scanner.LibraryScanner
	resolve    resolution.ConditionalResolver
}

func SetupRouter(dbStore *db.PostgresStore, manager *resolution.Manager, wsHub *Hub, libScanner *scanner.LibraryScanner, resolve resolution.ConditionalResolver) *gin.Engine {
	r := gin.Default()

	h := &APIHandler{
		dbStore:    dbStore,
		manager:    manager,
		wsHub:      wsHub,
		libScanner: libScanner,
		resolve:    resolve,
	}

	// Public endpoints: the live stream and cheap read-only progress
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ws/stream", wsHub.Subscribe)
	r.GET("/api/scanner/progress", h.getScanProgress)

	// Protected endpoints: everything that mutates or burns CPU
	protected := r.Group("/api")
	protected.Use(AuthMiddleware())
	protected.Use(NewRateLimiter(60, 10).Middleware())
	{
		protected.POST("/scanner/scan", h.startLibraryScan)

		protected.GET("/rules", h.getRules)
		protected.POST("/rules", h.setRules)
		protected.GET("/rules/:id/status", h.getRuleStatus)
		protected.POST("/rules/wake", h.wakeScheduler)

		protected.POST("/fingerprint", h.fingerprintUpload)
		protected.POST("/compare/tiled", h.compareTiled)
		protected.POST("/compare/simple", h.compareSimple)

		protected.GET("/cache/stats", h.getCacheStats)
	}

	return r
}

func (h *APIHandler) getScanProgress(c *gin.Context) {
	if h.libScanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner not available"})
		return
	}
	c.JSON(http.StatusOK, h.libScanner.GetProgress())
}

func (h *APIHandler) startLibraryScan(c *gin.Context) {
	if h.libScanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner not available"})
		return
	}

	// the sweep outlives this request, so it must not inherit its context
	h.libScanner.ScanLibrary(context.Background())
	c.JSON(http.StatusAccepted, gin.H{"status": "scan started"})
}

func (h *APIHandler) wakeScheduler(c *gin.Context) {
	if h.manager == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rule engine not available"})
		return
	}

	h.manager.Wake()
	c.JSON(http.StatusOK, gin.H{"status": "woken"})
}

func (h *APIHandler) getCacheStats(c *gin.Context) {
	simple := cache.VisualDataCache()
	tiled := cache.VisualDataTiledCache()

	c.JSON(http.StatusOK, gin.H{
		"simple": gin.H{"entries": simple.Len(), "usedBytes": simple.UsedBytes()},
		"tiled":  gin.H{"entries": tiled.Len(), "usedBytes": tiled.UsedBytes()},
	})
}
