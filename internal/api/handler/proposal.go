package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type createManualRequest struct {
	PartyB  string `json:"party_b" binding:"required"`
	Message string `json:"message"`
}

// CreateManualProposal creates a proposal between the actor and party_b.
func (h *Handler) CreateManualProposal(c *gin.Context) {
	var req createManualRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "party_b is required"})
		return
	}

	me := actor(c)
	p, err := h.Proposals.CreateManual(me, me, req.PartyB, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

type createExternalRequest struct {
	PartyA  string `json:"party_a" binding:"required"`
	PartyB  string `json:"party_b" binding:"required"`
	Message string `json:"message"`
}

// CreateExternalSuggestion creates a suggestion where one or both parties
// may not be registered yet.
func (h *Handler) CreateExternalSuggestion(c *gin.Context) {
	var req createExternalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "party_a and party_b are required"})
		return
	}

	p, err := h.Proposals.CreateExternal(req.PartyA, req.PartyB, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

type respondRequest struct {
	Action string `json:"action" binding:"required"`
	Reason string `json:"reason"`
}

// Respond records the actor's accept/decline on a proposal.
func (h *Handler) Respond(c *gin.Context) {
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}

	p, err := h.Proposals.Respond(c.Param("id"), actor(c), req.Action, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetProposal is the cheap idempotent poll read for one proposal.
func (h *Handler) GetProposal(c *gin.Context) {
	p, err := h.Store.GetProposalByID(c.Param("id"))
	if err != nil {
		respondError(c, mapStoreErr(err))
		return
	}
	me := actor(c)
	if !p.HasParty(me) && p.CreatorID != me {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your proposal"})
		return
	}
	c.JSON(http.StatusOK, p)
}

// ListProposals returns the actor's proposals, newest first.
func (h *Handler) ListProposals(c *gin.Context) {
	list, err := h.Store.ListProposalsForUser(actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": list})
}
