package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dyike/VancelleGo/internal/journal"
	"github.com/dyike/VancelleGo/models"
)

type reviewRequest struct {
	Outcome string `json:"outcome" binding:"required"`
	Notes   string `json:"notes"`
}

func (h *Handler) bindReview(c *gin.Context) (models.Outcome, string, bool) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "outcome is required"})
		return "", "", false
	}
	outcome, err := models.ParseOutcome(req.Outcome)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "outcomes": models.Outcomes})
		return "", "", false
	}
	return outcome, req.Notes, true
}

// SubmitReview reviews the entry currently open in the session.
func (h *Handler) SubmitReview(c *gin.Context) {
	outcome, notes, ok := h.bindReview(c)
	if !ok {
		return
	}
	entry, err := h.session.SubmitReview(c.Request.Context(), outcome, notes)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ReviewLog opens the entry by id and reviews it.
func (h *Handler) ReviewLog(c *gin.Context) {
	outcome, notes, ok := h.bindReview(c)
	if !ok {
		return
	}
	if _, err := h.session.OpenLog(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	entry, err := h.session.SubmitReview(c.Request.Context(), outcome, notes)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *Handler) ListLogs(c *gin.Context) {
	logs := h.session.Snapshot().Logs

	if rawLimit := strings.TrimSpace(c.Query("limit")); rawLimit != "" {
		n, err := strconv.Atoi(rawLimit)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		if n < len(logs) {
			logs = logs[:n]
		}
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

func (h *Handler) GetLog(c *gin.Context) {
	id := c.Param("id")
	for _, l := range h.session.Snapshot().Logs {
		if l.ID == id {
			c.JSON(http.StatusOK, l)
			return
		}
	}
	abortWithError(c, fmt.Errorf("%w: %s", journal.ErrLogNotFound, id))
}

func (h *Handler) OpenLog(c *gin.Context) {
	if _, err := h.session.OpenLog(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Snapshot())
}

func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Snapshot().Stats)
}

func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Snapshot().Settings)
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	var patch models.SettingsPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid settings payload"})
		return
	}
	s, err := h.session.PatchSettings(c.Request.Context(), patch)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
