package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-room/internal/auth"
	"github.com/vovakirdan/wirechat-room/internal/core"
	"github.com/vovakirdan/wirechat-room/internal/proto"
	"github.com/vovakirdan/wirechat-room/internal/utils"
)

const kickReason = "disconnected by admin"

var errKicked = errors.New("connection closed by server")

// WSHandler authenticates, upgrades and bridges WebSocket connections to the manager.
type WSHandler struct {
	auth    *auth.Service
	manager *core.Manager
	hub     *Hub
	log     *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(authService *auth.Service, manager *core.Manager, hub *Hub, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{auth: authService, manager: manager, hub: hub, log: logger}
}

// Handle serves GET /ws. The token comes from ?token= or the Authorization header.
func (h *WSHandler) Handle(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = bearerToken(c.GetHeader("Authorization"))
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing token"})
		return
	}

	user, err := h.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserBanned):
			c.JSON(http.StatusForbidden, ErrorResponse{Error: "user is banned"})
		case errors.Is(err, auth.ErrInvalidToken):
			h.log.Debug().Err(err).Msg("ws invalid token")
			c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "invalid token"})
		default:
			h.log.Error().Err(err).Msg("ws authenticate")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		}
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.CloseNow()

	h.serve(c.Request.Context(), conn, core.Identity{
		UserID:   user.ID,
		Username: user.Username,
		IsAdmin:  user.IsAdmin,
	})
}

func (h *WSHandler) serve(parent context.Context, conn *websocket.Conn, id core.Identity) {
	connID := utils.NewID()
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	send, kick := h.hub.register(connID, cancel)

	var (
		once   sync.Once
		kicked bool
	)
	disconnect := func() {
		once.Do(func() {
			kicked = h.hub.unregister(connID)
			h.manager.Disconnect(context.Background(), connID)
		})
	}
	defer disconnect()

	if err := h.manager.Connect(ctx, connID, id); err != nil {
		disconnect()
		if errors.Is(err, core.ErrBanned) {
			_ = conn.Close(websocket.StatusPolicyViolation, "user is banned")
			return
		}
		h.log.Error().Err(err).Str("conn_id", connID).Msg("ws join failed")
		_ = conn.Close(websocket.StatusInternalError, "internal error")
		return
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, connID)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, connID, send, kick)
	}()

	err := <-errCh
	cancel() // stop the other goroutine
	<-errCh
	disconnect()

	if kicked {
		return
	}

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "internal error"
			h.log.Warn().Err(err).Str("conn_id", connID).Msg("ws connection closed with error")
		}
	}

	_ = conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, connID string) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			return err
		}

		text, protoErr := inboundToText(inbound)
		if protoErr != nil {
			h.hub.push(connID, *proto.NewError(protoErr.Code, protoErr.Msg))
			continue
		}
		h.manager.HandleMessage(ctx, connID, text)
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, connID string, send <-chan proto.Outbound, kick <-chan struct{}) error {
	for {
		select {
		case <-kick:
			_ = conn.Close(websocket.StatusPolicyViolation, kickReason)
			return errKicked
		case out := <-send:
			if err := wsjson.Write(ctx, conn, out); err != nil {
				h.log.Error().Err(err).Str("conn_id", connID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
