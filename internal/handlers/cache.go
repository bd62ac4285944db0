package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/mediacache/internal/eviction"
	"github.com/charlesng35/mediacache/internal/index"
	"github.com/charlesng35/mediacache/internal/models"
	"github.com/charlesng35/mediacache/internal/upstream"
	appErrors "github.com/charlesng35/mediacache/pkg/errors"
	"github.com/charlesng35/mediacache/pkg/logger"
	"github.com/charlesng35/mediacache/pkg/response"
)

const (
	defaultPerPage = 50
	maxPerPage     = 500
)

// CacheIndex is the index surface used by the admin API.
type CacheIndex interface {
	TotalBytes(ctx context.Context) (index.Sizes, error)
	List(ctx context.Context, category models.Category, limit, offset int) (index.Page, error)
	Get(ctx context.Context, key string) (*models.CacheEntry, error)
	Delete(ctx context.Context, key string) error
}

// BlobDeleter removes stored objects.
type BlobDeleter interface {
	Delete(ctx context.Context, keys []string) error
}

// Evictor triggers one eviction pass.
type Evictor interface {
	Evict(ctx context.Context) (eviction.Result, error)
}

// CacheHandler serves the cache administration endpoints.
type CacheHandler struct {
	index    CacheIndex
	blobs    BlobDeleter
	evictor  Evictor
	settings upstream.SettingsProvider
	log      *zap.Logger
}

// NewCacheHandler wires the cache admin handler. Evictor and settings may be nil.
func NewCacheHandler(idx CacheIndex, blobs BlobDeleter, evictor Evictor, settings upstream.SettingsProvider) (*CacheHandler, error) {
	if idx == nil {
		return nil, errors.New("cache handler: index is required")
	}
	if blobs == nil {
		return nil, errors.New("cache handler: blob store is required")
	}
	return &CacheHandler{
		index:    idx,
		blobs:    blobs,
		evictor:  evictor,
		settings: settings,
		log:      logger.WithModule("admin"),
	}, nil
}

type categoryStats struct {
	Bytes      int64 `json:"bytes"`
	LimitBytes int64 `json:"limit_bytes"`
}

// Stats returns stored bytes per category alongside the configured ceilings.
func (h *CacheHandler) Stats(c *gin.Context) {
	ctx := requestContext(c)
	sizes, err := h.index.TotalBytes(ctx)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to read cache totals"))
		return
	}

	var settings upstream.Settings
	if h.settings != nil {
		if settings, err = h.settings.Settings(ctx); err != nil {
			h.log.Warn("settings unavailable for stats", zap.Error(err))
		}
	}

	response.Success(c, http.StatusOK, gin.H{
		"total_bytes": sizes.Total,
		string(models.CategoryImage): categoryStats{
			Bytes:      sizes.Image,
			LimitBytes: eviction.MBToBytes(settings.ImageMaxSizeMB),
		},
		string(models.CategoryVideo): categoryStats{
			Bytes:      sizes.Video,
			LimitBytes: eviction.MBToBytes(settings.VideoMaxSizeMB),
		},
	})
}

type listEntriesQuery struct {
	Category string `form:"category" validate:"omitempty,media_category"`
	Page     int    `form:"page" validate:"gte=0"`
	PerPage  int    `form:"per_page" validate:"gte=0,lte=500"`
}

// ListEntries pages through index rows, most recently accessed first.
func (h *CacheHandler) ListEntries(c *gin.Context) {
	var query listEntriesQuery
	if !bindQuery(c, &query) {
		return
	}

	page := max(query.Page, 1)
	perPage := query.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	perPage = min(perPage, maxPerPage)

	category := models.Category(strings.ToLower(strings.TrimSpace(query.Category)))
	result, err := h.index.List(requestContext(c), category, perPage, (page-1)*perPage)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to list cache entries"))
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, result.Items, response.NewMeta(page, perPage, result.Total))
}

// GetEntry returns a single index row.
func (h *CacheHandler) GetEntry(c *gin.Context) {
	key, ok := entryKey(c)
	if !ok {
		return
	}

	entry, err := h.index.Get(requestContext(c), key)
	if errors.Is(err, index.ErrNotFound) {
		response.Error(c, appErrors.ErrNotFound)
		return
	}
	if err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to load cache entry"))
		return
	}
	response.Success(c, http.StatusOK, entry)
}

// DeleteEntry removes the blob and then its index row.
func (h *CacheHandler) DeleteEntry(c *gin.Context) {
	key, ok := entryKey(c)
	if !ok {
		return
	}

	ctx := mutationContext(c)
	if err := h.blobs.Delete(ctx, []string{key}); err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to delete cached object"))
		return
	}
	if err := h.index.Delete(ctx, key); err != nil {
		response.Error(c, appErrors.Wrap(err, "failed to delete cache entry"))
		return
	}

	h.log.Info("cache entry deleted", zap.String("key", key))
	response.Success(c, http.StatusOK, gin.H{"deleted": key})
}

// Cleanup runs one eviction pass and reports what it reclaimed. A partial
// failure still returns the counts with the error message attached.
func (h *CacheHandler) Cleanup(c *gin.Context) {
	if h.evictor == nil {
		response.Error(c, appErrors.ErrEvictionUnavailable)
		return
	}

	result, err := h.evictor.Evict(mutationContext(c))
	payload := gin.H{
		"deleted":     result.Deleted,
		"freed_bytes": result.FreedBytes,
	}
	if err != nil {
		payload["error"] = err.Error()
	}
	response.Success(c, http.StatusOK, payload)
}

func entryKey(c *gin.Context) (string, bool) {
	key := strings.TrimLeft(c.Param("key"), "/")
	if key == "" {
		response.Error(c, appErrors.NewBadRequest("entry key is required"))
		return "", false
	}
	category, _, found := strings.Cut(key, "/")
	if !found || !models.Category(category).Valid() {
		response.Error(c, appErrors.ErrInvalidCacheKey)
		return "", false
	}
	return key, true
}
