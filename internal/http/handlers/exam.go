package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/splitlearn/splitlearn-backend/internal/http/response"
	"github.com/splitlearn/splitlearn-backend/internal/modules/extraction"
	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
)

type ExamHandler struct {
	log          *logger.Logger
	orchestrator *extraction.Orchestrator
}

// NewExamHandler accepts a nil orchestrator; the handler then reports the
// missing configuration per request instead of crashing the process at boot.
func NewExamHandler(log *logger.Logger, orchestrator *extraction.Orchestrator) *ExamHandler {
	return &ExamHandler{
		log:          log.With("handler", "ExamHandler"),
		orchestrator: orchestrator,
	}
}

type processExamRequest struct {
	ExamID string `json:"exam_id" binding:"required"`
}

// POST /api/exams/process
//
// Per-slide failures do not fail the request: the summary lists them and the
// status stays 200 so the client can render partial progress.
func (h *ExamHandler) ProcessExam(c *gin.Context) {
	var req processExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	examID, err := uuid.Parse(req.ExamID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_exam_id", err)
		return
	}
	if h.orchestrator == nil {
		response.RespondError(c, http.StatusBadRequest, "extraction_not_configured",
			fmt.Errorf("GEMINI_API_KEY not set"))
		return
	}

	summary, err := h.orchestrator.ProcessExam(c.Request.Context(), examID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "process_exam_failed", err)
		return
	}
	response.RespondOK(c, summary)
}
