// README: Fleet settings handlers.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"resortdispatch/internal/modules/fleet"
)

type FleetStore interface {
	Get(ctx context.Context) (fleet.Config, error)
	Update(ctx context.Context, c fleet.Config) (fleet.Config, error)
}

type FleetHandler struct {
	store FleetStore
}

func NewFleetHandler(store FleetStore) *FleetHandler {
	return &FleetHandler{store: store}
}

func (h *FleetHandler) Get(c *gin.Context) {
	cfg, err := h.store.Get(c.Request.Context())
	if err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cfg)
}

type updateFleetReq struct {
	MaxWaitTimeBeforeAutoAssign *int  `json:"maxWaitTimeBeforeAutoAssign"`
	AutoAssignEnabled           *bool `json:"autoAssignEnabled"`
}

// Update applies a partial change; omitted fields keep their stored value.
func (h *FleetHandler) Update(c *gin.Context) {
	var req updateFleetReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	ctx := c.Request.Context()
	cfg, err := h.store.Get(ctx)
	if err != nil {
		writeFleetError(c, err)
		return
	}
	if req.MaxWaitTimeBeforeAutoAssign != nil {
		cfg.MaxWaitTimeBeforeAutoAssign = *req.MaxWaitTimeBeforeAutoAssign
	}
	if req.AutoAssignEnabled != nil {
		cfg.AutoAssignEnabled = *req.AutoAssignEnabled
	}
	if err := cfg.Validate(); err != nil {
		writeFleetError(c, err)
		return
	}
	out, err := h.store.Update(ctx, cfg)
	if err != nil {
		writeFleetError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, out)
}
