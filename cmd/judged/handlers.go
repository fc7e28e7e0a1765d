package main

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"judge-core/internal/judge"
	"judge-core/internal/middleware"
	"judge-core/internal/queue"
	"judge-core/internal/submission"
)

// submitRequest is the external JSON shape for POST /submissions.
type submitRequest struct {
	SourceCode  string   `json:"source_code" binding:"required"`
	Language    string   `json:"language" binding:"required"`
	Stdin       string   `json:"stdin"`
	TimeLimit   *float64 `json:"time_limit"`
	MemoryLimit *int     `json:"memory_limit"`
}

type submitResponse struct {
	ID     string            `json:"id"`
	Status submission.Status `json:"status"`
}

type submissionResponse struct {
	ID           string            `json:"id"`
	Language     string            `json:"language"`
	Status       submission.Status `json:"status"`
	Stdout       string            `json:"stdout"`
	Stderr       string            `json:"stderr"`
	ExitCode     *int              `json:"exit_code,omitempty"`
	TimeUsed     float64           `json:"time_used"`
	WallTimeUsed float64           `json:"wall_time_used"`
	MemoryUsed   int               `json:"memory_used"`
	TimeLimit    float64           `json:"time_limit"`
	MemoryLimit  int               `json:"memory_limit"`
	Signal       *int              `json:"signal,omitempty"`
	Message      string            `json:"message,omitempty"`
}

// buildRouter assembles the full request-serving router: middleware
// chain, health check, and the submission endpoints backed by svc.
func buildRouter(svc *judge.Service) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(middleware.ErrorHandler(), middleware.Recovery(), middleware.RequestID())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	submissions := router.Group("/submissions", middleware.RateLimit())
	submissions.POST("", func(c *gin.Context) { handleSubmit(c, svc) })
	submissions.GET("/:id", func(c *gin.Context) { handleGetSubmission(c, svc) })

	return router
}

func handleSubmit(c *gin.Context, svc *judge.Service) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, middleware.ErrorResponse{
			Error: err.Error(),
			Code:  "INVALID_REQUEST",
		})
		return
	}

	userID := c.GetHeader("X-User-ID")

	result, err := svc.Submit(c.Request.Context(), judge.Request{
		SourceCode:  req.SourceCode,
		Language:    req.Language,
		Stdin:       req.Stdin,
		TimeLimit:   req.TimeLimit,
		MemoryLimit: req.MemoryLimit,
	}, userID)

	switch {
	case err == nil:
		c.JSON(http.StatusAccepted, submitResponse{ID: result.ID, Status: result.Status})
	case errors.Is(err, judge.ErrValidation), errors.Is(err, judge.ErrLimitExceeded):
		c.JSON(http.StatusBadRequest, middleware.ErrorResponse{Error: err.Error(), Code: "VALIDATION_ERROR"})
	case errors.Is(err, queue.ErrQueueFull):
		c.JSON(http.StatusServiceUnavailable, middleware.ErrorResponse{Error: err.Error(), Code: "QUEUE_FULL"})
	default:
		c.JSON(http.StatusInternalServerError, middleware.ErrorResponse{Error: "internal error", Code: "INTERNAL_ERROR"})
	}
}

func handleGetSubmission(c *gin.Context, svc *judge.Service) {
	id := c.Param("id")

	row, err := svc.GetSubmission(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, toSubmissionResponse(row))
	case errors.Is(err, submission.ErrNotFound):
		c.JSON(http.StatusNotFound, middleware.ErrorResponse{Error: "submission not found", Code: "NOT_FOUND"})
	default:
		c.JSON(http.StatusInternalServerError, middleware.ErrorResponse{Error: "internal error", Code: "INTERNAL_ERROR"})
	}
}

func toSubmissionResponse(row *submission.Submission) submissionResponse {
	return submissionResponse{
		ID:           row.ID,
		Language:     row.Language,
		Status:       row.Status,
		Stdout:       row.Stdout,
		Stderr:       row.Stderr,
		ExitCode:     row.ExitCode,
		TimeUsed:     row.TimeUsed,
		WallTimeUsed: row.WallTimeUsed,
		MemoryUsed:   row.MemoryUsed,
		TimeLimit:    row.TimeLimit,
		MemoryLimit:  row.MemoryLimit,
		Signal:       row.Signal,
		Message:      row.Message,
	}
}
