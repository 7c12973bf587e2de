package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dyike/VancelleGo/internal/session"
)

func (h *Handler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.session.Snapshot())
}

type viewRequest struct {
	View string `json:"view" binding:"required"`
}

func (h *Handler) SetView(c *gin.Context) {
	var req viewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "view is required"})
		return
	}
	v, err := session.ParseView(req.View)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "views": session.Views})
		return
	}
	h.session.SetView(v)
	c.JSON(http.StatusOK, gin.H{"view": v})
}

func (h *Handler) Reset(c *gin.Context) {
	if err := h.session.Reset(); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.session.Snapshot())
}

// UploadImage accepts a multipart "image" file or the raw bytes as the body.
func (h *Handler) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxImageBytes)

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		data, err = readFormImage(c)
	} else {
		data, err = io.ReadAll(c.Request.Body)
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read image: " + err.Error()})
		return
	}

	if err := h.session.UploadImage(data); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"view": h.session.Snapshot().View, "bytes": len(data)})
}

func readFormImage(c *gin.Context) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, err
	}
	f, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

type analysisRequest struct {
	Pair      string `json:"pair"`
	Timeframe string `json:"timeframe"`
	Notes     string `json:"notes"`
}

func (h *Handler) RequestAnalysis(c *gin.Context) {
	var req analysisRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
	}

	// A submitted analysis runs to completion even if the client goes away.
	ctx := context.WithoutCancel(c.Request.Context())
	result, err := h.session.RequestAnalysis(ctx, req.Pair, req.Timeframe, req.Notes)
	st := h.session.Snapshot()
	if err != nil {
		msg := st.Error
		if msg == "" {
			msg = err.Error()
		}
		c.JSON(statusFor(err), gin.H{"error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"result":  result,
		"logId":   st.ActiveLogID,
		"warning": st.Error,
	})
}
