package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Jurkyy/project-pilot/internal/metrics"
	"github.com/Jurkyy/project-pilot/internal/task"
)

// Handler handles HTTP requests
type Handler struct {
	taskMgr    *task.Manager
	sseManager *SSEManager
	logger     *slog.Logger
}

// NewHandler creates a new handler
func NewHandler(taskMgr *task.Manager, sseManager *SSEManager, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		taskMgr:    taskMgr,
		sseManager: sseManager,
		logger:     logger,
	}
}

// GenerateRequest represents a generate request
type GenerateRequest struct {
	Description string `json:"description" binding:"required"`
	Name        string `json:"name"`
	Language    string `json:"language"`
}

// GenerateResponse represents a generate response
type GenerateResponse struct {
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HandleGenerate queues a generation task and returns its id
func (h *Handler) HandleGenerate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		ErrorResponse(c, http.StatusBadRequest, "description must not be blank")
		return
	}

	t := h.taskMgr.CreateTask(req.Description, req.Name, req.Language)

	// Subscribe SSE manager to task updates
	if err := h.taskMgr.SubscribeToTask(t.ID, h.sseManager.Broadcast); err != nil {
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	if err := h.taskMgr.Submit(t.ID); err != nil {
		h.logger.Warn("task rejected", "task_id", t.ID, "error", err)
		_ = h.taskMgr.SetTaskError(t.ID, err)
		if errors.Is(err, task.ErrQueueFull) || errors.Is(err, task.ErrShutdown) {
			ErrorResponse(c, http.StatusServiceUnavailable, err.Error())
			return
		}
		ErrorResponse(c, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info("task queued", "task_id", t.ID)
	c.JSON(http.StatusAccepted, GenerateResponse{
		TaskID:  t.ID,
		Status:  string(t.Status),
		Message: t.Message,
	})
}

// HandleGetTask handles the get task request
func (h *Handler) HandleGetTask(c *gin.Context) {
	t, err := h.taskMgr.GetTask(c.Param("task_id"))
	if err != nil {
		ErrorResponse(c, http.StatusNotFound, "Task not found")
		return
	}

	c.JSON(http.StatusOK, t)
}

// HandleStatus handles the SSE status endpoint
func (h *Handler) HandleStatus(c *gin.Context) {
	HandleSSE(c, h.sseManager, h.taskMgr)
}

// HandleHealth handles health check
func (h *Handler) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "project-pilot",
	})
}

// RouterOptions configures SetupRouter
type RouterOptions struct {
	// Limiter guards the generate endpoint; nil disables rate limiting
	Limiter *RateLimiter
}

// SetupRouter sets up the Gin router
func SetupRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestMetrics())

	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Content-Type"},
		MaxAge:          12 * time.Hour,
	}))

	// API routes
	api := r.Group("/api/v1")
	{
		generate := []gin.HandlerFunc{handler.HandleGenerate}
		if opts.Limiter != nil {
			generate = append([]gin.HandlerFunc{opts.Limiter.Middleware()}, generate...)
		}
		api.POST("/generate", generate...)
		api.GET("/task/:task_id", handler.HandleGetTask)
		api.GET("/status/:task_id", handler.HandleStatus)
	}

	r.GET("/health", handler.HandleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

// requestMetrics counts requests by route template, not raw path
func requestMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}

// ErrorResponse writes a JSON error body
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}
