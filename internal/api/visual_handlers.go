package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/framevault/dedupe-engine/internal/cache"
	"github.com/framevault/dedupe-engine/internal/imaging"
	"github.com/framevault/dedupe-engine/internal/visual"
	"github.com/framevault/dedupe-engine/pkg/models"
)

// maxUploadBytes caps ad-hoc fingerprint uploads so a single request cannot
// exhaust memory with an oversized decode.
const maxUploadBytes = 64 << 20

// fingerprintUpload decodes an uploaded image, computes both fingerprints and
// caches them under the supplied key, or a fresh uuid when the caller has no
// file identity yet.
func (h *APIHandler) fingerprintUpload(c *gin.Context) {
	if !IsUploadEnabled() {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Ad-hoc uploads are disabled",
			"hint":  "Set ENABLE_UPLOADS=true to allow them",
		})
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image form file"})
		return
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	raster, format, err := imaging.Decode(file)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	key := c.PostForm("key")
	if key == "" {
		key = uuid.NewString()
	}

	simple, err := visual.GenerateVisualData(raster)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	tiled, err := visual.GenerateVisualDataTiled(raster)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	// a capacity rejection still leaves the caller a usable response
	_ = cache.VisualDataCache().Add(key, simple)
	_ = cache.VisualDataTiledCache().Add(key, tiled)

	c.JSON(http.StatusOK, gin.H{
		"key":         key,
		"format":      format,
		"resolution":  simple.Resolution,
		"hadAlpha":    simple.HadAlpha,
		"interesting": simple.IsInteresting(),
		"simpleBytes": simple.EstimatedMemoryFootprint(),
		"tiledBytes":  tiled.EstimatedMemoryFootprint(),
	})
}

type compareRequest struct {
	Key1 string `json:"key1" binding:"required"`
	Key2 string `json:"key2" binding:"required"`
}

func (h *APIHandler) compareTiled(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tiledCache := cache.VisualDataTiledCache()

	v1, ok := tiledCache.Get(req.Key1)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no tiled fingerprint for key1"})
		return
	}
	v2, ok := tiledCache.Get(req.Key2)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no tiled fingerprint for key2"})
		return
	}

	similar, class, statement := visual.CompareTiled(v1.(*visual.VisualDataTiled), v2.(*visual.VisualDataTiled))

	c.JSON(http.StatusOK, models.VerdictResult{
		AreSimilar: similar,
		Class:      class,
		Statement:  statement,
	})
}

func (h *APIHandler) compareSimple(c *gin.Context) {
	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	simpleCache := cache.VisualDataCache()

	v1, ok := simpleCache.Get(req.Key1)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no fingerprint for key1"})
		return
	}
	v2, ok := simpleCache.Get(req.Key2)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no fingerprint for key2"})
		return
	}

	similar, class, statement := visual.CompareSimple(v1.(*visual.VisualData), v2.(*visual.VisualData))

	c.JSON(http.StatusOK, models.VerdictResult{
		AreSimilar: similar,
		Class:      class,
		Statement:  statement,
	})
}
