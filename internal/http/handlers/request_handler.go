// README: Request handlers for create/get/list, lifecycle transitions and manual merges.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"resortdispatch/internal/modules/request"
	"resortdispatch/internal/types"
)

type RequestService interface {
	Create(ctx context.Context, cmd request.CreateCommand) (types.ID, error)
	Get(ctx context.Context, id types.ID) (*request.Request, error)
	ListOpen(ctx context.Context, domain request.Domain) ([]request.Request, error)
	MarkArriving(ctx context.Context, id types.ID) error
	MarkPickedUp(ctx context.Context, id types.ID) error
	MarkCompleted(ctx context.Context, id types.ID) error
	Cancel(ctx context.Context, cmd request.CancelCommand) error
	Merge(ctx context.Context, idA, idB types.ID) (*request.Request, error)
	MergeCandidates(ctx context.Context) ([]request.Pair, error)
}

type RequestHandler struct {
	requests RequestService
}

func NewRequestHandler(svc RequestService) *RequestHandler {
	return &RequestHandler{requests: svc}
}

type createRequestReq struct {
	Domain      string `json:"domain"`
	Pickup      string `json:"pickup"`
	Destination string `json:"destination"`
	PartySize   int    `json:"partySize"`
	ServiceType string `json:"serviceType"`
	Department  string `json:"department"`
	Details     string `json:"details"`
	RoomNumber  string `json:"roomNumber"`
	GuestName   string `json:"guestName"`
	Notes       string `json:"notes"`
}

func (h *RequestHandler) Create(c *gin.Context) {
	var req createRequestReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	domain, ok := request.ParseDomain(req.Domain)
	if !ok {
		writeError(c, http.StatusBadRequest, "domain must be ride or service")
		return
	}
	id, err := h.requests.Create(c.Request.Context(), request.CreateCommand{
		Domain:      domain,
		Pickup:      req.Pickup,
		Destination: req.Destination,
		PartySize:   req.PartySize,
		ServiceType: req.ServiceType,
		Department:  req.Department,
		Details:     req.Details,
		RoomNumber:  req.RoomNumber,
		GuestName:   req.GuestName,
		Notes:       req.Notes,
	})
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"id": id, "status": request.EligibleStatus(domain)})
}

func (h *RequestHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid request id")
		return
	}
	r, err := h.requests.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, r)
}

// List returns waiting and active requests of ?domain= (default ride).
func (h *RequestHandler) List(c *gin.Context) {
	domain, ok := request.ParseDomain(c.DefaultQuery("domain", "ride"))
	if !ok {
		writeError(c, http.StatusBadRequest, "domain must be ride or service")
		return
	}
	reqs, err := h.requests.ListOpen(c.Request.Context(), domain)
	if err != nil {
		writeRequestError(c, err)
		return
	}
	if reqs == nil {
		reqs = []request.Request{}
	}
	writeJSON(c, http.StatusOK, gin.H{"requests": reqs})
}

func (h *RequestHandler) Arrive(c *gin.Context) {
	h.transition(c, h.requests.MarkArriving, request.StatusArriving)
}

func (h *RequestHandler) PickUp(c *gin.Context) {
	h.transition(c, h.requests.MarkPickedUp, request.StatusOnTrip)
}

func (h *RequestHandler) Complete(c *gin.Context) {
	h.transition(c, h.requests.MarkCompleted, request.StatusCompleted)
}

func (h *RequestHandler) Cancel(c *gin.Context) {
	h.transition(c, func(ctx context.Context, id types.ID) error {
		return h.requests.Cancel(ctx, request.CancelCommand{RequestID: id, ActorType: c.DefaultQuery("actor", "operator")})
	}, request.StatusCancelled)
}

func (h *RequestHandler) transition(c *gin.Context, fn func(context.Context, types.ID) error, to request.Status) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid request id")
		return
	}
	if err := fn(c.Request.Context(), types.ID(id)); err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"id": id, "status": to})
}

type mergeReq struct {
	IDA string `json:"idA"`
	IDB string `json:"idB"`
}

func (h *RequestHandler) Merge(c *gin.Context) {
	var req mergeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidID(req.IDA) || !isValidID(req.IDB) {
		writeError(c, http.StatusBadRequest, "idA and idB are required")
		return
	}
	merged, err := h.requests.Merge(c.Request.Context(), types.ID(req.IDA), types.ID(req.IDB))
	if err != nil {
		writeRequestError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, merged)
}

func (h *RequestHandler) MergeCandidates(c *gin.Context) {
	pairs, err := h.requests.MergeCandidates(c.Request.Context())
	if err != nil {
		writeRequestError(c, err)
		return
	}
	if pairs == nil {
		pairs = []request.Pair{}
	}
	writeJSON(c, http.StatusOK, gin.H{"pairs": pairs})
}
