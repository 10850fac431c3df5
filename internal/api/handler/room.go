package handler

import (
	"errors"
	"net/http"

	"pairline/backend/internal/proposal"
	"pairline/backend/internal/room"
	"pairline/backend/internal/storage"

	"github.com/gin-gonic/gin"
)

// GetRoom returns the room state with its messages. Reading by a
// participant counts as joining and starts the countdown on first access;
// expiry is checked lazily on every read.
func (h *Handler) GetRoom(c *gin.Context) {
	roomID := c.Param("id")
	me := actor(c)

	state, participants, messages, err := h.Rooms.GetState(roomID)
	if err != nil {
		respondError(c, err)
		return
	}
	if !state.HasParty(me) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your room"})
		return
	}

	// Перший вхід учасника запускає відлік; на закритій кімнаті — no-op.
	if !state.IsClosed {
		if err := h.Rooms.RecordActivity(roomID, me); err != nil && !errors.Is(err, room.ErrRoomClosed) {
			respondError(c, err)
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"room":         state,
		"participants": participants,
		"messages":     messages,
	})
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// SendMessage posts a message into the room.
func (h *Handler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	msg, err := h.Rooms.SendMessage(c.Param("id"), actor(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// MarkCompleted records the actor's "meeting done" declaration.
func (h *Handler) MarkCompleted(c *gin.Context) {
	state, err := h.Rooms.MarkCompleted(c.Param("id"), actor(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// mapStoreErr lifts raw storage errors into handler-visible ones.
func mapStoreErr(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return proposal.ErrNotFound
	}
	return err
}
