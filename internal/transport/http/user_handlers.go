package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/wirechat-room/internal/core"
)

// UserHandlers provides HTTP handlers for user operations.
type UserHandlers struct {
	manager *core.Manager
}

// NewUserHandlers creates a new user handlers instance.
func NewUserHandlers(manager *core.Manager) *UserHandlers {
	return &UserHandlers{manager: manager}
}

// OnlineUser is one joined session in API responses.
type OnlineUser struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
}

// Online lists the sessions currently in the room.
// GET /api/users/online
func (h *UserHandlers) Online(c *gin.Context) {
	members := h.manager.Online()
	response := make([]OnlineUser, 0, len(members))
	for _, m := range members {
		response = append(response, OnlineUser{Username: m.Username, IsAdmin: m.IsAdmin})
	}
	c.JSON(http.StatusOK, gin.H{"users": response})
}
