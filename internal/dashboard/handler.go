package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"crate_ledger/internal/domain"
	"crate_ledger/internal/report"
)

// Loader reads the cached collection. The dashboard never writes it.
type Loader interface {
	Load(ctx context.Context) ([]domain.CollectionItem, error)
}

type Config struct {
	TopStyles    int
	PreviewLimit int
}

type Handler struct {
	loader Loader
	cfg    Config
	logger *slog.Logger
}

func NewHandler(loader Loader, cfg Config, logger *slog.Logger) *Handler {
	if cfg.TopStyles <= 0 {
		cfg.TopStyles = report.DefaultTopStyles
	}
	if cfg.PreviewLimit <= 0 {
		cfg.PreviewLimit = 50
	}
	return &Handler{loader: loader, cfg: cfg, logger: logger}
}

// NewRouter builds the gin engine serving the dashboard API.
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(h.logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	h.RegisterRoutes(router.Group("/api"))
	return router
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/items", h.items)     // GET /api/items?genre=&style=&limit=
	rg.GET("/summary", h.summary) // GET /api/summary?genre=&style=
	rg.GET("/options", h.options) // GET /api/options
}

func (h *Handler) items(c *gin.Context) {
	items, ok := h.load(c)
	if !ok {
		return
	}

	filtered := filterFrom(c).Apply(items)
	limit := parseInt(c.Query("limit"), h.cfg.PreviewLimit)
	if limit <= 0 {
		limit = h.cfg.PreviewLimit
	}
	preview := filtered
	if len(preview) > limit {
		preview = preview[:limit]
	}

	c.JSON(http.StatusOK, gin.H{
		"total": len(filtered),
		"limit": limit,
		"items": preview,
	})
}

func (h *Handler) summary(c *gin.Context) {
	items, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report.Summarize(items, filterFrom(c), h.cfg.TopStyles))
}

func (h *Handler) options(c *gin.Context) {
	items, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, report.Options(items))
}

func (h *Handler) load(c *gin.Context) ([]domain.CollectionItem, bool) {
	items, err := h.loader.Load(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to load cache", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cache unavailable"})
		return nil, false
	}
	return items, true
}

func filterFrom(c *gin.Context) report.Filter {
	return report.Filter{
		Genre: strings.TrimSpace(c.Query("genre")),
		Style: strings.TrimSpace(c.Query("style")),
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
