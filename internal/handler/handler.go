package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dyike/VancelleGo/config"
	"github.com/dyike/VancelleGo/internal/inference"
	"github.com/dyike/VancelleGo/internal/journal"
	"github.com/dyike/VancelleGo/internal/session"
)

// maxImageBytes bounds a chart upload.
const maxImageBytes = 10 << 20

type Handler struct {
	session *session.Session
}

func New(sess *session.Session) *Handler {
	return &Handler{session: sess}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/state", h.GetState)
	api.PUT("/view", h.SetView)
	api.POST("/reset", h.Reset)

	api.POST("/image", h.UploadImage)
	api.POST("/analysis", h.RequestAnalysis)
	api.POST("/review", h.SubmitReview)

	api.GET("/logs", h.ListLogs)
	api.GET("/logs/:id", h.GetLog)
	api.POST("/logs/:id/open", h.OpenLog)
	api.POST("/logs/:id/review", h.ReviewLog)
	api.GET("/stats", h.GetStats)

	api.GET("/settings", h.GetSettings)
	api.PUT("/settings", h.UpdateSettings)
}

// NewRouter builds a gin engine serving the session.
func NewRouter(sess *session.Session) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	New(sess).RegisterRoutes(r)
	return r
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "busy": h.session.Busy()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	var (
		reqErr   *inference.RequestError
		parseErr *inference.ParseError
	)
	switch {
	case errors.Is(err, session.ErrBusy), errors.Is(err, journal.ErrAlreadyReviewed):
		return http.StatusConflict
	case errors.Is(err, journal.ErrLogNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoImage), errors.Is(err, session.ErrNotImage),
		errors.Is(err, session.ErrNoActiveLog), errors.Is(err, journal.ErrInvalidOutcome),
		errors.Is(err, journal.ErrInvalidSettings):
		return http.StatusBadRequest
	case errors.Is(err, config.ErrMissingCredential):
		return http.StatusServiceUnavailable
	case errors.As(err, &reqErr), errors.As(err, &parseErr):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
