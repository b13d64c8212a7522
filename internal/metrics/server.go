package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/therealutkarshpriyadarshi/captionpipe/internal/cache"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/database"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/logging"
	"github.com/therealutkarshpriyadarshi/captionpipe/internal/middleware"
	"github.com/therealutkarshpriyadarshi/captionpipe/pkg/models"
)

// ItemReader loads queue items from the store
type ItemReader interface {
	GetQueueItem(ctx context.Context, id string) (*models.QueueItem, error)
}

// ProgressReader loads cached progress snapshots
type ProgressReader interface {
	GetProgress(ctx context.Context, itemID string) (*cache.ProgressSnapshot, error)
}

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// Server serves health, metrics and read-only queue item inspection
type Server struct {
	server   *http.Server
	items    ItemReader
	progress ProgressReader
	checks   map[string]HealthCheck
	logger   *logging.Logger
}

// NewServer creates a new ops server. progress may be nil.
func NewServer(addr string, items ItemReader, progress ProgressReader, checks map[string]HealthCheck, logger *logging.Logger) *Server {
	if logger == nil {
		logger = logging.Nop()
	}

	s := &Server{
		items:    items,
		progress: progress,
		checks:   checks,
		logger:   logger,
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return s
}

// Router builds the gin engine
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.Logger(s.logger), requestMetrics())

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/queue-items/:id", s.queueItem)

	return router
}

// Start starts the ops server
func (s *Server) Start() error {
	s.logger.Infof("Starting ops server on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start ops server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the ops server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down ops server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := gin.H{}
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			results[name] = err.Error()
			continue
		}
		results[name] = "ok"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	c.JSON(status, gin.H{"status": state, "checks": results})
}

func (s *Server) queueItem(c *gin.Context) {
	id := c.Param("id")

	if s.progress != nil {
		snapshot, err := s.progress.GetProgress(c.Request.Context(), id)
		if err != nil {
			s.logger.WithQueueItemID(id).WithError(err).Warn("Progress cache read failed")
		} else if snapshot != nil {
			c.JSON(http.StatusOK, gin.H{
				"id":              snapshot.QueueItemID,
				"status":          snapshot.Status,
				"progress":        snapshot.Progress,
				"error_message":   snapshot.ErrorMessage,
				"media_upload_id": snapshot.MediaUploadID,
				"source":          "cache",
			})
			return
		}
	}

	item, err := s.items.GetQueueItem(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "queue item not found"})
		return
	}
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load queue item"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":              item.ID,
		"status":          item.Status,
		"progress":        item.Progress,
		"error_message":   item.ErrorMessage,
		"media_upload_id": item.MediaUploadID,
		"attempts":        item.Attempts,
		"processed_at":    item.ProcessedAt,
		"source":          "store",
	})
}

func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		RecordHTTPRequest(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status()), time.Since(start).Seconds())
	}
}
