// Package handler is the thin HTTP veneer over the match lifecycle engine.
// Handlers validate input, resolve the actor from the JWT and translate
// engine errors to status codes; no lifecycle logic lives here.
package handler

import (
	"errors"
	"net/http"

	"pairline/backend/internal/proposal"
	"pairline/backend/internal/room"
	"pairline/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// Handler містить посилання на сервіси рушія.
type Handler struct {
	Proposals *proposal.Service
	Rooms     *room.Service
	Store     *storage.Service
	JWTSecret []byte
}

// NewHandler creates the HTTP handler set.
func NewHandler(proposals *proposal.Service, rooms *room.Service, store *storage.Service, jwtSecret string) *Handler {
	return &Handler{
		Proposals: proposals,
		Rooms:     rooms,
		Store:     store,
		JWTSecret: []byte(jwtSecret),
	}
}

// Register mounts all routes on the gin engine.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/token", h.GetToken)

	auth := r.Group("/", h.AuthMiddleware())
	{
		auth.GET("/proposals", h.ListProposals)
		auth.GET("/proposals/:id", h.GetProposal)
		auth.POST("/proposals", h.CreateManualProposal)
		auth.POST("/proposals/external", h.CreateExternalSuggestion)
		auth.POST("/proposals/:id/respond", h.Respond)

		auth.GET("/rooms/:id", h.GetRoom)
		auth.POST("/rooms/:id/messages", h.SendMessage)
		auth.POST("/rooms/:id/complete", h.MarkCompleted)
	}
}

// respondError translates engine errors into HTTP status codes:
// validation -> 400, precondition -> 409, missing -> 404, access -> 403.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, proposal.ErrNotFound), errors.Is(err, room.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, proposal.ErrNotParty), errors.Is(err, room.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, proposal.ErrInvalidAction),
		errors.Is(err, proposal.ErrSelfPair),
		errors.Is(err, room.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, proposal.ErrTerminal),
		errors.Is(err, proposal.ErrAlreadyAccepted),
		errors.Is(err, proposal.ErrConflict),
		errors.Is(err, proposal.ErrDuplicatePair):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, room.ErrRoomClosed):
		c.JSON(http.StatusConflict, gin.H{"error": "this conversation is closed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error, please retry"})
	}
}
