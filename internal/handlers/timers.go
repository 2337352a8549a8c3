package handlers

import (
	"errors"
	"io"
	"net/http"

	"poolconnect/internal/models"

	"github.com/gin-gonic/gin"
)

// timerView is a definition joined with its runtime context.
type timerView struct {
	models.TimerDefinition
	Context models.RuntimeContext `json:"context"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

type scenarioRequest struct {
	Name string `json:"name"`
}

// @Summary      List timers
// @Description  Every definition with its runtime context, ordered by id.
// @Tags         timers
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, active, timers"
// @Failure      500  {object}  map[string]string
// @Router       /api/timers/flex [get]
func (h *Handler) listTimers(c *gin.Context) {
	ctx := c.Request.Context()
	defs, err := h.services.Timers.List(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListTimers, "timers_list_failed", err)
		return
	}
	statuses, err := h.services.Directory.List(ctx)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadDirectory, "directory_list_failed", err)
		return
	}
	byID := make(map[int64]models.RuntimeContext, len(statuses))
	active := 0
	for _, st := range statuses {
		byID[st.ID] = st.Context
		if st.Context.State == models.StateRunning {
			active++
		}
	}

	out := make([]timerView, 0, len(defs))
	for _, d := range defs {
		rc, ok := byID[d.ID]
		if !ok {
			rc = models.RuntimeContext{State: models.StateInactive}
		}
		out = append(out, timerView{TimerDefinition: d, Context: rc})
	}
	c.JSON(http.StatusOK, gin.H{
		"count":  len(out),
		"active": active,
		"timers": out,
	})
}

// @Summary      Get timer
// @Tags         timers
// @Produce      json
// @Param        id   path      int  true  "Timer id"
// @Success      200  {object}  timerView
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/timers/flex/{id} [get]
func (h *Handler) getTimer(c *gin.Context) {
	id, ok := timerID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	d, err := h.services.Timers.Get(ctx, id)
	if err != nil {
		h.serviceError(c, err, errListTimers, "timer_get_failed", "timer_id", id)
		return
	}
	view := timerView{TimerDefinition: d, Context: models.RuntimeContext{State: models.StateInactive}}
	if st, err := h.services.Directory.Get(ctx, id); err == nil {
		view.Context = st.Context
	}
	c.JSON(http.StatusOK, view)
}

// @Summary      Create timer
// @Tags         timers
// @Accept       json
// @Produce      json
// @Param        body  body      models.TimerDefinition  true  "Timer definition"
// @Success      201   {object}  models.TimerDefinition
// @Failure      400   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/timers/flex [post]
func (h *Handler) createTimer(c *gin.Context) {
	var req models.TimerDefinition
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	d, err := h.services.Timers.Create(c.Request.Context(), req)
	if err != nil {
		h.serviceError(c, err, errSaveTimer, "timer_create_failed", "name", req.Name)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// @Summary      Update timer
// @Description  Replaces the definition. A running timer is aborted and its relays released on the next tick.
// @Tags         timers
// @Accept       json
// @Produce      json
// @Param        id    path      int                     true  "Timer id"
// @Param        body  body      models.TimerDefinition  true  "Timer definition"
// @Success      200   {object}  models.TimerDefinition
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/timers/flex/{id} [put]
func (h *Handler) updateTimer(c *gin.Context) {
	id, ok := timerID(c)
	if !ok {
		return
	}
	var req models.TimerDefinition
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	d, err := h.services.Timers.Update(c.Request.Context(), id, req)
	if err != nil {
		h.serviceError(c, err, errSaveTimer, "timer_update_failed", "timer_id", id)
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary      Delete timer
// @Tags         timers
// @Param        id   path  int  true  "Timer id"
// @Success      204
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/timers/flex/{id} [delete]
func (h *Handler) deleteTimer(c *gin.Context) {
	id, ok := timerID(c)
	if !ok {
		return
	}
	if err := h.services.Timers.Delete(c.Request.Context(), id); err != nil {
		h.serviceError(c, err, errSaveTimer, "timer_delete_failed", "timer_id", id)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Enable or disable timer
// @Description  Body {"enabled": bool} sets the flag; an empty body flips it.
// @Tags         timers
// @Accept       json
// @Produce      json
// @Param        id    path      int            true   "Timer id"
// @Param        body  body      toggleRequest  false  "Target state"
// @Success      200   {object}  models.TimerDefinition
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/timers/flex/{id}/toggle [post]
func (h *Handler) toggleTimer(c *gin.Context) {
	id, ok := timerID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var req toggleRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	var enabled bool
	if req.Enabled != nil {
		enabled = *req.Enabled
	} else {
		cur, err := h.services.Timers.Get(ctx, id)
		if err != nil {
			h.serviceError(c, err, errSaveTimer, "timer_toggle_failed", "timer_id", id)
			return
		}
		enabled = !cur.Enabled
	}

	d, err := h.services.Timers.SetEnabled(ctx, id, enabled)
	if err != nil {
		h.serviceError(c, err, errSaveTimer, "timer_toggle_failed", "timer_id", id)
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary      List scenarios
// @Description  Built-in presets that can be instantiated as timers.
// @Tags         timers
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "count, scenarios"
// @Router       /api/timers/scenarios [get]
func (h *Handler) listScenarios(c *gin.Context) {
	all, err := h.services.Timers.Scenarios()
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errListTimers, "scenarios_list_failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(all), "scenarios": all})
}

// @Summary      Create timer from scenario
// @Tags         timers
// @Accept       json
// @Produce      json
// @Param        key   path      string           true   "Scenario key"
// @Param        body  body      scenarioRequest  false  "Optional name"
// @Success      201   {object}  models.TimerDefinition
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/timers/scenarios/{key} [post]
func (h *Handler) createFromScenario(c *gin.Context) {
	var req scenarioRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	key := c.Param("key")
	d, err := h.services.Timers.CreateFromScenario(c.Request.Context(), key, req.Name)
	if err != nil {
		h.serviceError(c, err, errSaveTimer, "scenario_create_failed", "scenario", key)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// bindOptionalJSON decodes the body when there is one.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
