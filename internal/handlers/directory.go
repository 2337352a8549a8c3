package handlers

import (
	"net/http"

	"poolconnect/internal/device"

	"github.com/gin-gonic/gin"
)

type relayRequest struct {
	Relay *int `json:"relay" binding:"required"`
	On    bool `json:"on"`
}

type buzzerRequest struct {
	Enabled bool `json:"enabled"`
	Muted   bool `json:"muted"`
}

// @Summary      Timer directory
// @Description  Per timer: enabled, actionCount and the runtime context (state, currentActionIndex, lastError).
// @Tags         directory
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "active, timers"
// @Failure      500  {object}  map[string]string
// @Router       /api/directory [get]
func (h *Handler) getDirectory(c *gin.Context) {
	rows, err := h.services.Directory.List(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadDirectory, "directory_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, directoryPayload(rows))
}

// @Summary      Sensor snapshot
// @Tags         device
// @Produce      json
// @Success      200  {object}  models.SensorSnapshot
// @Failure      500  {object}  map[string]string
// @Router       /api/sensors [get]
func (h *Handler) getSensors(c *gin.Context) {
	snap, err := h.services.Device.Snapshot(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadDevice, "sensors_read_failed", err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      Relay states
// @Description  Each relay with its current state and owner (timer id, -1 operator, 0 none).
// @Tags         device
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "relays"
// @Failure      500  {object}  map[string]string
// @Router       /api/relays [get]
func (h *Handler) getRelays(c *gin.Context) {
	relays, err := h.services.Device.Relays(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadDevice, "relays_read_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"relays": relays})
}

// @Summary      Switch relay
// @Description  Queued and applied on the next scheduler tick, after timer intents.
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body      relayRequest  true  "Relay command"
// @Success      202   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /api/relay [post]
func (h *Handler) setRelay(c *gin.Context) {
	var req relayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if err := h.services.Device.RequestRelay(c.Request.Context(), *req.Relay, req.On); err != nil {
		h.serviceError(c, err, errLoadDevice, "relay_request_failed", "relay", *req.Relay)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusQueued, "relay": *req.Relay, "on": req.On})
}

// @Summary      Override simulated sensors
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body      device.SensorOverride  true  "Readings to force"
// @Success      200   {object}  models.SensorSnapshot
// @Failure      400   {object}  map[string]string
// @Router       /api/device/sensors [post]
func (h *Handler) overrideSensors(c *gin.Context) {
	var req device.SensorOverride
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	snap, err := h.services.Device.Override(c.Request.Context(), req)
	if err != nil {
		h.serviceError(c, err, errLoadDevice, "sensor_override_failed")
		return
	}
	c.JSON(http.StatusOK, snap)
}

// @Summary      Buzzer and LED state
// @Tags         device
// @Produce      json
// @Success      200  {object}  models.Outputs
// @Router       /api/device/outputs [get]
func (h *Handler) getOutputs(c *gin.Context) {
	out, err := h.services.Device.Outputs(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadDevice, "outputs_read_failed", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary      Buzzer mode
// @Tags         device
// @Accept       json
// @Produce      json
// @Param        body  body      buzzerRequest  true  "Enable and mute flags"
// @Success      200   {object}  models.Outputs
// @Failure      400   {object}  map[string]string
// @Router       /api/device/buzzer [post]
func (h *Handler) setBuzzerMode(c *gin.Context) {
	var req buzzerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	out, err := h.services.Device.SetBuzzerMode(c.Request.Context(), req.Enabled, req.Muted)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadDevice, "buzzer_mode_failed", err)
		return
	}
	c.JSON(http.StatusOK, out)
}
