package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/api/dto"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// RunsHandler handles reconciliation run history requests.
type RunsHandler struct {
	*Base
}

// NewRunsHandler creates a new runs handler.
func NewRunsHandler(repo storage.Repository) *RunsHandler {
	return &RunsHandler{
		Base: NewBase(repo),
	}
}

// List handles GET /api/runs - returns recent runs, newest first.
func (h *RunsHandler) List(c *gin.Context) {
	limit := ParseIntParam(c, "limit", 20, 100)

	runs, err := h.repo.ListRuns(limit)
	if err != nil {
		_ = c.Error(err)
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.RunListResponse{
		Runs:  make([]dto.RunResponse, 0, len(runs)),
		Count: len(runs),
	}
	for _, run := range runs {
		response.Runs = append(response.Runs, toRunResponse(run))
	}

	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/runs/:id - returns a single run.
func (h *RunsHandler) Get(c *gin.Context) {
	id, ok := h.runID(c)
	if !ok {
		return
	}

	run, err := h.repo.GetRun(id)
	if errors.Is(err, store.ErrNotFound) {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("run"))
		return
	}
	if err != nil {
		_ = c.Error(err)
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, toRunResponse(*run))
}

// Matches handles GET /api/runs/:id/matches - returns a page of a run's
// match results.
func (h *RunsHandler) Matches(c *gin.Context) {
	id, ok := h.runID(c)
	if !ok {
		return
	}
	limit := ParseIntParam(c, "limit", 50, 500)
	offset := ParseIntParam(c, "offset", 0, 0)

	if _, err := h.repo.GetRun(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.WriteError(c, http.StatusNotFound, dto.NotFoundError("run"))
			return
		}
		_ = c.Error(err)
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	matches, err := h.repo.ListMatchResults(id, limit, offset)
	if err != nil {
		_ = c.Error(err)
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	response := dto.MatchListResponse{
		RunID:   id,
		Matches: make([]dto.MatchRecordResponse, 0, len(matches)),
		Count:   len(matches),
		Limit:   limit,
		Offset:  offset,
	}
	for _, m := range matches {
		response.Matches = append(response.Matches, toMatchRecordResponse(m))
	}

	c.JSON(http.StatusOK, response)
}

func (h *RunsHandler) runID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("invalid run ID"))
		return "", false
	}
	return id, true
}
