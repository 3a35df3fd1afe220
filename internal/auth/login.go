package auth

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/kokutaro/mahjong-point-manager-sub001/config"
)

type LoginRequest struct {
	Name string `json:"name" binding:"required"`
}

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Login issues a guest session: a fresh player id plus a signed JWT carrying
// the display name. The engine only ever sees the resolved player id.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
		return
	}

	playerID := uuid.NewString()
	claims := jwt.MapClaims{
		"sub":  playerID,
		"name": req.Name,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(24 * time.Hour).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	jwtStr, err := token.SignedString([]byte(config.C.JWT.Secret))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "jwt generation failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"playerId": playerID,
		"name":     req.Name,
		"jwt":      jwtStr,
	})
}
