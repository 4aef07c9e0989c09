// README: Dispatch handlers: operator-triggered assignment and manual scheduler ticks.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"resortdispatch/internal/modules/matching"
	"resortdispatch/internal/modules/request"
)

type Dispatcher interface {
	ProposeAssignment(ctx context.Context, domain request.Domain) (matching.Outcome, error)
}

type Ticker interface {
	Tick(ctx context.Context) (matching.TickOutcome, error)
}

type DispatchHandler struct {
	dispatcher Dispatcher
	ticker     Ticker
}

func NewDispatchHandler(d Dispatcher, t Ticker) *DispatchHandler {
	return &DispatchHandler{dispatcher: d, ticker: t}
}

// Assign runs one matching pass for the domain in the path and commits it.
// Guard outcomes come back as 200 with a reason.
func (h *DispatchHandler) Assign(c *gin.Context) {
	domain, ok := request.ParseDomain(c.Param("domain"))
	if !ok {
		writeError(c, http.StatusBadRequest, "domain must be ride or service")
		return
	}
	out, err := h.dispatcher.ProposeAssignment(c.Request.Context(), domain)
	if err != nil {
		_ = c.Error(err)
		writeError(c, http.StatusServiceUnavailable, "dispatch unavailable")
		return
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *DispatchHandler) Tick(c *gin.Context) {
	out, err := h.ticker.Tick(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		writeJSON(c, http.StatusServiceUnavailable, out)
		return
	}
	writeJSON(c, http.StatusOK, out)
}
