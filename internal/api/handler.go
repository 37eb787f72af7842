package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/allisson/mediaportal/internal/errors"
	"github.com/allisson/mediaportal/internal/httputil"
	"github.com/allisson/mediaportal/internal/metrics"
)

// QueryHandler bridges HTTP to the request scope: it validates the query
// request, then hands the matching executor to the scope runner.
type QueryHandler struct {
	scope      *Scope
	dispatcher *Dispatcher
	metrics    metrics.RequestMetrics
	logger     *slog.Logger
}

// NewQueryHandler creates a new query handler.
func NewQueryHandler(
	scope *Scope,
	dispatcher *Dispatcher,
	requestMetrics metrics.RequestMetrics,
	logger *slog.Logger,
) *QueryHandler {
	return &QueryHandler{
		scope:      scope,
		dispatcher: dispatcher,
		metrics:    requestMetrics,
		logger:     logger,
	}
}

// Query runs one catalog query inside a transactional request scope.
//
// POST /query
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	ctx := c.Request.Context()
	start := time.Now()

	out, err := h.scope.Run(ctx, c.Request.Header, h.dispatcher.Executor(&req))

	status := "success"
	if err != nil {
		status = "error"
		if apperrors.Is(err, apperrors.ErrPoolTimeout) {
			h.metrics.RecordPoolTimeout(ctx)
		}
	}
	h.metrics.RecordQuery(ctx, req.Op, status)
	h.metrics.RecordQueryDuration(ctx, req.Op, time.Since(start), status)

	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": out})
}
