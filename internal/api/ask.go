package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nstepanov/docqa/internal/answer"
	"github.com/nstepanov/docqa/internal/llm"
	"github.com/nstepanov/docqa/internal/retrieval"
)

// Asker answers questions, satisfied by *answer.Service.
type Asker interface {
	Ask(ctx context.Context, req answer.Request) (answer.Result, error)
}

type askRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Question  string `json:"question"`
}

type askResponse struct {
	Answer       string   `json:"answer"`
	ChunkIDs     []string `json:"chunk_ids"`
	CacheHit     bool     `json:"cache_hit"`
	Partial      bool     `json:"partial"`
	SessionID    string   `json:"session_id"`
	RetrievalMS  int64    `json:"retrieval_ms"`
	GenerationMS int64    `json:"generation_ms"`
}

type askHandler struct {
	service Asker
	logger  *slog.Logger
}

// handle answers POST /api/ask.
func (h *askHandler) handle(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "bad_request", "malformed request body")
	}

	res, err := h.service.Ask(c.Request().Context(), answer.Request{
		SessionID: req.SessionID,
		Question:  req.Question,
	})
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSON(http.StatusOK, askResponse{
		Answer:       res.Answer,
		ChunkIDs:     res.ChunkIDs,
		CacheHit:     res.CacheHit,
		Partial:      res.Partial,
		SessionID:    res.SessionID,
		RetrievalMS:  res.RetrievalTime.Milliseconds(),
		GenerationMS: res.GenerationTime.Milliseconds(),
	})
}

// mapError translates pipeline failures into HTTP statuses. Upstream
// outages are 502, an exceeded generation deadline is 504, and a caller
// that gave up mid-request gets nothing useful back anyway.
func (h *askHandler) mapError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, answer.ErrEmptyQuestion):
		return writeError(c, http.StatusBadRequest, "bad_request", "question must not be empty")
	case errors.Is(err, retrieval.ErrRetrievalFailed):
		return writeError(c, http.StatusBadGateway, "retrieval_failed", "document retrieval is unavailable")
	case errors.Is(err, llm.ErrGenerationTimeout):
		return writeError(c, http.StatusGatewayTimeout, "generation_timeout", "answer generation timed out")
	case errors.Is(err, llm.ErrGenerationUnavailable):
		return writeError(c, http.StatusBadGateway, "generation_unavailable", "answer generation is unavailable")
	case errors.Is(err, context.Canceled):
		// Client disconnected; echo discards the response regardless.
		return writeError(c, http.StatusBadRequest, "client_closed_request", "request canceled by client")
	default:
		h.logger.Error("unhandled pipeline error", "error", err)
		return writeError(c, http.StatusInternalServerError, "internal", "internal server error")
	}
}
