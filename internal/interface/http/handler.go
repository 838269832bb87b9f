package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/telembed/telembed/internal/domain/qa"
	apperrors "github.com/telembed/telembed/pkg/errors"
)

// Handler wires the HTTP transport to the QA service.
type Handler struct {
	qaSvc  qa.Service
	logger *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(qaSvc qa.Service, logger *slog.Logger) *Handler {
	return &Handler{
		qaSvc:  qaSvc,
		logger: logger.With("component", "http.handler"),
	}
}

type askRequest struct {
	Question string `json:"question" binding:"required"`
}

type entryRequest struct {
	Question qa.FormattedText `json:"question"`
	Answer   qa.FormattedText `json:"answer"`
}

type entryResponse struct {
	Hash     string           `json:"hash"`
	Question qa.FormattedText `json:"question"`
	Answer   qa.FormattedText `json:"answer"`
}

func toEntryResponse(e qa.Entry) entryResponse {
	return entryResponse{Hash: e.Hash(), Question: e.Question, Answer: e.Answer}
}

// Ask runs a semantic lookup for an incoming question.
func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	match, ok, err := h.qaSvc.Ask(c.Request.Context(), req.Question)
	if err != nil {
		status := http.StatusInternalServerError
		code := "ask_failed"
		if apperrors.IsCode(err, apperrors.CodeEmbeddingExhausted) {
			status = http.StatusServiceUnavailable
			code = "embedding_unavailable"
		}
		abortWithError(c, NewHTTPError(status, code, errMessage(err), err))
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"matched": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"matched":    true,
		"similarity": match.Similarity,
		"entry":      toEntryResponse(match.Entry),
	})
}

// ListEntries returns every curated entry.
func (h *Handler) ListEntries(c *gin.Context) {
	entries := h.qaSvc.Entries()
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"entries": out, "count": len(out)})
}

// SearchEntries runs a case-insensitive keyword search over questions.
func (h *Handler) SearchEntries(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "query parameter q is required", nil))
		return
	}
	matches := h.qaSvc.SearchKeyword(query)
	out := make([]entryResponse, 0, len(matches))
	for _, e := range matches {
		out = append(out, toEntryResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"entries": out, "count": len(out)})
}

// GetEntry resolves a single entry by hash prefix.
func (h *Handler) GetEntry(c *gin.Context) {
	prefix := c.Param("hash")
	entry, _, ok := h.qaSvc.FindByPrefix(prefix)
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "entry_not_found", "no entry matches the given hash", nil))
		return
	}
	c.JSON(http.StatusOK, toEntryResponse(entry))
}

// CreateEntry adds a new QA pair and indexes it.
func (h *Handler) CreateEntry(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	hash, err := h.qaSvc.Add(c.Request.Context(), req.Question, req.Answer)
	if err != nil {
		abortWithError(c, entryErrorToHTTP(err, "create_failed"))
		return
	}
	c.JSON(http.StatusCreated, gin.H{"hash": hash})
}

// UpdateEntry replaces an existing entry, addressed by hash prefix.
func (h *Handler) UpdateEntry(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	prefix := c.Param("hash")
	_, hash, found := h.qaSvc.FindByPrefix(prefix)
	if !found {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "entry_not_found", "no entry matches the given hash", nil))
		return
	}

	ok, err := h.qaSvc.Update(c.Request.Context(), hash, req.Question, req.Answer)
	if err != nil {
		abortWithError(c, entryErrorToHTTP(err, "update_failed"))
		return
	}
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "entry_not_found", "entry disappeared during update", nil))
		return
	}
	c.JSON(http.StatusOK, gin.H{"hash": qa.QuestionHash(req.Question.Text)})
}

// DeleteEntry removes an entry, addressed by hash prefix.
func (h *Handler) DeleteEntry(c *gin.Context) {
	prefix := c.Param("hash")
	_, hash, found := h.qaSvc.FindByPrefix(prefix)
	if !found {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "entry_not_found", "no entry matches the given hash", nil))
		return
	}

	ok, err := h.qaSvc.Delete(c.Request.Context(), hash)
	if err != nil {
		abortWithError(c, entryErrorToHTTP(err, "delete_failed"))
		return
	}
	if !ok {
		abortWithError(c, NewHTTPError(http.StatusNotFound, "entry_not_found", "entry disappeared during delete", nil))
		return
	}
	c.Status(http.StatusNoContent)
}

// Reload rebuilds the in-memory index from durable storage.
func (h *Handler) Reload(c *gin.Context) {
	if err := h.qaSvc.Reload(c.Request.Context()); err != nil {
		abortWithError(c, entryErrorToHTTP(err, "reload_failed"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": h.qaSvc.Len()})
}

func entryErrorToHTTP(err error, fallbackCode string) *HTTPError {
	status := http.StatusInternalServerError
	code := fallbackCode
	switch {
	case apperrors.IsCode(err, apperrors.CodeInvalidInput):
		status = http.StatusBadRequest
		code = "invalid_request"
	case apperrors.IsCode(err, apperrors.CodeNotFound):
		status = http.StatusNotFound
		code = "entry_not_found"
	case apperrors.IsCode(err, apperrors.CodeEmbeddingExhausted):
		status = http.StatusServiceUnavailable
		code = "embedding_unavailable"
	case apperrors.IsCode(err, apperrors.CodePersistenceFailed):
		status = http.StatusInternalServerError
		code = "persistence_failed"
	}
	return NewHTTPError(status, code, errMessage(err), err)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
