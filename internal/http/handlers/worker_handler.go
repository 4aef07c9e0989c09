// README: Worker handlers: roster registration, heartbeat ingest and nearby lookup.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"resortdispatch/internal/modules/worker"
	"resortdispatch/internal/types"
)

type WorkerService interface {
	Register(ctx context.Context, w worker.Worker) (*worker.Worker, error)
	RecordHeartbeat(ctx context.Context, cmd worker.HeartbeatCommand) error
	List(ctx context.Context, role worker.Role) ([]worker.Worker, error)
	Nearby(ctx context.Context, p types.Point, radiusM float64) ([]types.ID, error)
}

type WorkerHandler struct {
	workers WorkerService
}

func NewWorkerHandler(svc WorkerService) *WorkerHandler {
	return &WorkerHandler{workers: svc}
}

type registerWorkerReq struct {
	Role       string `json:"role"`
	Name       string `json:"name"`
	Department string `json:"department"`
}

func (h *WorkerHandler) Register(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid worker id")
		return
	}
	var req registerWorkerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	w, err := h.workers.Register(c.Request.Context(), worker.Worker{
		ID:         types.ID(id),
		Role:       worker.Role(req.Role),
		Name:       req.Name,
		Department: req.Department,
	})
	if err != nil {
		writeWorkerError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, w)
}

// heartbeatReq carries an optional GPS fix; both or neither coordinate.
type heartbeatReq struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (h *WorkerHandler) Heartbeat(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid worker id")
		return
	}
	var req heartbeatReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		writeError(c, http.StatusBadRequest, "lat and lng go together")
		return
	}
	cmd := worker.HeartbeatCommand{WorkerID: types.ID(id)}
	if req.Lat != nil {
		cmd.Position = &types.Point{Lat: *req.Lat, Lng: *req.Lng}
	}
	if err := h.workers.RecordHeartbeat(c.Request.Context(), cmd); err != nil {
		writeWorkerError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// List returns the roster of ?role= (default DRIVER) with live signal.
func (h *WorkerHandler) List(c *gin.Context) {
	role := worker.Role(c.DefaultQuery("role", string(worker.RoleDriver)))
	if role != worker.RoleDriver && role != worker.RoleStaff {
		writeError(c, http.StatusBadRequest, "role must be DRIVER or STAFF")
		return
	}
	ws, err := h.workers.List(c.Request.Context(), role)
	if err != nil {
		writeWorkerError(c, err)
		return
	}
	if ws == nil {
		ws = []worker.Worker{}
	}
	writeJSON(c, http.StatusOK, gin.H{"workers": ws})
}

func (h *WorkerHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	radius, err := strconv.ParseFloat(c.DefaultQuery("radius", "500"), 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid radius")
		return
	}
	ids, err := h.workers.Nearby(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeWorkerError(c, err)
		return
	}
	if ids == nil {
		ids = []types.ID{}
	}
	writeJSON(c, http.StatusOK, gin.H{"workers": ids})
}
