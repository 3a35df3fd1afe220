package matchmaker

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// POST /match/join  body: {rule}
func (h *Handler) Join(c *gin.Context) {
	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.PlayerID = c.GetString("playerID")

	room, queued, err := h.svc.Join(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if queued {
		c.JSON(http.StatusOK, JoinResponse{Queued: true, Rule: req.Rule})
		return
	}
	c.JSON(http.StatusOK, JoinResponse{
		Queued: false, Rule: room.Rule, RoomID: room.ID, Players: room.Players,
	})
}

// POST /match/cancel
func (h *Handler) Cancel(c *gin.Context) {
	if err := h.svc.Cancel(c.Request.Context(), c.GetString("playerID")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
