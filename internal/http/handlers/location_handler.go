// README: Location handlers: list the registry and resolve free text.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resortdispatch/internal/modules/location"
)

type LocationRegistry interface {
	Resolver(ctx context.Context) (*location.Resolver, error)
	Invalidate()
}

type LocationHandler struct {
	registry LocationRegistry
}

func NewLocationHandler(r LocationRegistry) *LocationHandler {
	return &LocationHandler{registry: r}
}

func (h *LocationHandler) List(c *gin.Context) {
	res, err := h.registry.Resolver(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		writeError(c, http.StatusServiceUnavailable, "locations unavailable")
		return
	}
	locs := res.Locations()
	if locs == nil {
		locs = []location.Location{}
	}
	writeJSON(c, http.StatusOK, gin.H{"locations": locs})
}

// Resolve answers ?q= with the coordinates the engine would use.
func (h *LocationHandler) Resolve(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		writeError(c, http.StatusBadRequest, "q is required")
		return
	}
	res, err := h.registry.Resolver(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		writeError(c, http.StatusServiceUnavailable, "locations unavailable")
		return
	}
	p, err := res.Resolve(q)
	if errors.Is(err, location.ErrUnresolvable) {
		writeError(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"query": q, "position": p})
}

// Refresh drops the cached registry so the next read goes to the database.
func (h *LocationHandler) Refresh(c *gin.Context) {
	h.registry.Invalidate()
	c.Status(http.StatusNoContent)
}
