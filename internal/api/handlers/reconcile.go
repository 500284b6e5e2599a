package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/ledger-reconciler/internal/api/dto"
	"github.com/eshaffer321/ledger-reconciler/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
)

// Runner executes reconciliation runs
type Runner interface {
	Run(ctx context.Context, opts reconcile.Options) (*reconcile.Summary, error)
}

// ReconcileHandler starts runs. Only one run executes at a time.
type ReconcileHandler struct {
	runner   Runner
	defaults reconcile.Options
	logger   *slog.Logger
	mu       sync.Mutex
}

// NewReconcileHandler creates a handler that fills omitted request fields
// from defaults.
func NewReconcileHandler(runner Runner, defaults reconcile.Options, logger *slog.Logger) *ReconcileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileHandler{
		runner:   runner,
		defaults: defaults,
		logger:   logger,
	}
}

// Run handles POST /api/reconcile.
func (h *ReconcileHandler) Run(c *gin.Context) {
	var req dto.ReconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.BadRequestError("invalid request body"))
		return
	}

	opts, err := h.options(req)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, dto.ValidationError(err.Error()))
		return
	}

	if !h.mu.TryLock() {
		c.AbortWithStatusJSON(http.StatusConflict, dto.RunInProgressError())
		return
	}
	defer h.mu.Unlock()

	summary, err := h.runner.Run(c.Request.Context(), opts)
	if err != nil {
		h.logger.Error("Reconciliation run failed", "error", err)
		_ = c.Error(err)
		if summary == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewAPIError(dto.ErrCodeRunFailed, err.Error()))
			return
		}
		status := http.StatusInternalServerError
		var fetchErr *reconcile.FetchError
		if errors.As(err, &fetchErr) {
			status = http.StatusBadGateway
		}
		c.JSON(status, dto.NewSummaryResponse(summary))
		return
	}

	c.JSON(http.StatusOK, dto.NewSummaryResponse(summary))
}

// options merges a request onto the configured defaults
func (h *ReconcileHandler) options(req dto.ReconcileRequest) (reconcile.Options, error) {
	opts := h.defaults
	opts.DryRun = req.DryRun

	if len(req.Sources) > 0 {
		sources := make([]candidate.Source, 0, len(req.Sources))
		for _, s := range req.Sources {
			src, ok := candidate.ParseSource(strings.TrimSpace(s))
			if !ok {
				return opts, fmt.Errorf("unknown source %q", s)
			}
			sources = append(sources, src)
		}
		opts.Sources = sources
	}

	var err error
	if opts.From, err = parseDate("from", req.From, opts.From); err != nil {
		return opts, err
	}
	if opts.To, err = parseDate("to", req.To, opts.To); err != nil {
		return opts, err
	}
	if !opts.From.IsZero() && !opts.To.IsZero() && opts.From.After(opts.To) {
		return opts, fmt.Errorf("from %s is after to %s", req.From, req.To)
	}

	if req.LookbackDays < 0 {
		return opts, fmt.Errorf("lookback_days must not be negative")
	}
	if req.LookbackDays > 0 {
		opts.LookbackDays = req.LookbackDays
	}
	if req.Currency != "" {
		opts.Currency = req.Currency
	}
	if req.Threshold < 0 || req.Threshold > 100 {
		return opts, fmt.Errorf("threshold must be between 0 and 100")
	}
	if req.Threshold > 0 {
		opts.Threshold = req.Threshold
	}
	if req.PreserveReconciliation != nil {
		opts.PreserveReconciliation = *req.PreserveReconciliation
	}
	if req.MarkNeedsReview != nil {
		opts.MarkNeedsReview = *req.MarkNeedsReview
	}
	if req.SampleSize != nil {
		if *req.SampleSize < 0 {
			return opts, fmt.Errorf("sample_size must not be negative")
		}
		opts.SampleSize = *req.SampleSize
	}
	return opts, nil
}

func parseDate(field, value string, fallback time.Time) (time.Time, error) {
	if value == "" {
		return fallback, nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return fallback, fmt.Errorf("%s must be YYYY-MM-DD", field)
	}
	return t, nil
}
