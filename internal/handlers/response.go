package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"poolconnect/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK     = "ok"
	statusQueued = "queued"

	errListTimers      = "failed to load timers"
	errSaveTimer       = "failed to save timer"
	errLoadDirectory   = "failed to load directory"
	errLoadDevice      = "failed to read device"
	errInvalidID       = "invalid timer id"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// serviceError maps domain errors to status codes: validation 400,
// unknown timer or scenario 404, anything else 500 with the cause logged.
func (h *Handler) serviceError(c *gin.Context, err error, userMsg, logKey string, kv ...interface{}) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		resp := gin.H{"error": verr.Error()}
		if verr.Field != "" {
			resp["field"] = verr.Field
		}
		c.JSON(http.StatusBadRequest, resp)
	case errors.Is(err, service.ErrTimerNotFound), errors.Is(err, service.ErrScenarioNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, userMsg, logKey, err, kv...)
	}
}

// timerID parses the :id path parameter; it writes a 400 and returns false when invalid.
func timerID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidID})
		return 0, false
	}
	return id, true
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}
