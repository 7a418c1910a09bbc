package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/splitlearn/splitlearn-backend/internal/http/response"
	"github.com/splitlearn/splitlearn-backend/internal/modules/extraction"
	"github.com/splitlearn/splitlearn-backend/internal/platform/logger"
)

const alternativeCount = 3

type VideoHandler struct {
	log    *logger.Logger
	picker *extraction.VideoPicker
}

func NewVideoHandler(log *logger.Logger, picker *extraction.VideoPicker) *VideoHandler {
	return &VideoHandler{
		log:    log.With("handler", "VideoHandler"),
		picker: picker,
	}
}

type alternativeVideosRequest struct {
	VideoTitle string   `json:"video_title"`
	TopicTitle string   `json:"topic_title"`
	Subpoint   string   `json:"subpoint"`
	ExcludeIDs []string `json:"exclude_ids"`
}

// POST /api/videos/alternatives
//
// Returns up to 3 fresh candidates for a topic or subpoint, excluding videos
// the user has already seen.
func (h *VideoHandler) GetAlternatives(c *gin.Context) {
	var req alternativeVideosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	var query string
	switch {
	case strings.TrimSpace(req.VideoTitle) != "":
		query = strings.TrimSpace(req.VideoTitle)
	case strings.TrimSpace(req.TopicTitle) != "" || strings.TrimSpace(req.Subpoint) != "":
		query = extraction.BuildQuery(req.TopicTitle, req.Subpoint)
	default:
		response.RespondError(c, http.StatusBadRequest, "invalid_request",
			fmt.Errorf("video_title or topic_title is required"))
		return
	}
	videos, err := h.picker.PickAlternatives(c.Request.Context(), query, req.ExcludeIDs, alternativeCount)
	if err != nil {
		response.RespondError(c, http.StatusBadGateway, "video_search_failed", err)
		return
	}

	out := make([]gin.H, 0, len(videos))
	for _, v := range videos {
		item := gin.H{
			"youtube_id":    v.ID,
			"title":         v.Title,
			"description":   v.Description,
			"thumbnail_url": v.ThumbnailURL,
		}
		if v.DurationSeconds > 0 {
			item["duration_seconds"] = v.DurationSeconds
		}
		out = append(out, item)
	}
	response.RespondOK(c, gin.H{"videos": out})
}
