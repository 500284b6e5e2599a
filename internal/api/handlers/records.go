package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eshaffer321/ledger-reconciler/internal/adapters/store"
	"github.com/eshaffer321/ledger-reconciler/internal/api/dto"
	"github.com/eshaffer321/ledger-reconciler/internal/domain/candidate"
	"github.com/eshaffer321/ledger-reconciler/internal/infrastructure/storage"
)

// RecordsHandler serves stored source records with their reconciliation
// state.
type RecordsHandler struct {
	*Base
}

// NewRecordsHandler creates a new records handler.
func NewRecordsHandler(repo storage.Repository) *RecordsHandler {
	return &RecordsHandler{
		Base: NewBase(repo),
	}
}

// Get handles GET /api/records/:source/:id.
func (h *RecordsHandler) Get(c *gin.Context) {
	source, ok := candidate.ParseSource(c.Param("source"))
	if !ok {
		h.WriteError(c, http.StatusBadRequest, dto.BadRequestError("unknown source"))
		return
	}

	record, err := h.repo.GetRecord(c.Request.Context(), source, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		h.WriteError(c, http.StatusNotFound, dto.NotFoundError("record"))
		return
	}
	if err != nil {
		_ = c.Error(err)
		h.WriteError(c, http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.JSON(http.StatusOK, toRecordResponse(record))
}
