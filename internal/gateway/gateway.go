package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pulseim/pulse/internal/dispatch"
	"github.com/pulseim/pulse/internal/domain"
	"github.com/pulseim/pulse/internal/events"
	"github.com/pulseim/pulse/internal/hub"
	"github.com/pulseim/pulse/internal/presence"
	"github.com/pulseim/pulse/internal/rooms"
)

const (
	sendBuffer     = 256
	writeWait      = 10 * time.Second
	historyLimit   = 50
	maxFrameLength = 64 * 1024
)

// Gateway accepts websocket connections, authenticates them and routes
// decoded client frames to the presence registry, room router, message
// dispatcher and event broadcaster. Authentication failure is fatal to
// the connection and happens before any state exists; every later
// failure is soft and reported only to the originating connection.
type Gateway struct {
	auth        domain.Authenticator
	registry    *presence.Registry
	router      *rooms.Router
	dispatcher  *dispatch.Dispatcher
	broadcaster *events.Broadcaster
	hub         *hub.Hub
	authTimeout time.Duration
	validate    *validator.Validate
	logger      *slog.Logger
}

// Deps bundles the gateway's collaborators.
type Deps struct {
	Auth        domain.Authenticator
	Registry    *presence.Registry
	Router      *rooms.Router
	Dispatcher  *dispatch.Dispatcher
	Broadcaster *events.Broadcaster
	Hub         *hub.Hub
	AuthTimeout time.Duration
}

// New builds a gateway.
func New(deps Deps) *Gateway {
	timeout := deps.AuthTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		auth:        deps.Auth,
		registry:    deps.Registry,
		router:      deps.Router,
		dispatcher:  deps.Dispatcher,
		broadcaster: deps.Broadcaster,
		hub:         deps.Hub,
		authTimeout: timeout,
		validate:    validator.New(),
		logger:      slog.Default().With("component", "gateway"),
	}
}

// Handler returns the echo handler for the websocket endpoint. The
// session credential comes from the "token" query parameter or a Bearer
// Authorization header; verification is delegated to the external
// authenticator within a bounded window.
func (g *Gateway) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.QueryParam("token")
		if token == "" {
			if h := c.Request().Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
				token = h[7:]
			}
		}

		authCtx, cancel := context.WithTimeout(c.Request().Context(), g.authTimeout)
		userID, err := g.auth.Authenticate(authCtx, token)
		cancel()
		if err != nil {
			g.logger.Info("handshake rejected", "remote", c.RealIP(), "error", err)
			return c.String(http.StatusUnauthorized, "authentication failed")
		}

		conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
			InsecureSkipVerify: true, // origin is enforced by the fronting proxy
		})
		if err != nil {
			g.logger.Error("websocket upgrade failed", "user_id", userID, "error", err)
			return err
		}
		conn.SetReadLimit(maxFrameLength)

		connID := uuid.NewString()
		client := hub.NewClient(connID, userID, sendBuffer)

		// Register, auto-subscribe to the personal room so every event
		// addressed to this user reaches all of their devices, then mark
		// the user present. Order matters: the hub must know the
		// connection before a presence transition can fan anything out.
		g.hub.Register(client)
		g.hub.Join(connID, domain.PersonalRoom(userID))
		g.registry.Connect(userID, connID)

		g.logger.Info("client connected", "user_id", userID, "conn_id", connID)

		go g.writePump(conn, client)
		go g.readPump(conn, client)

		return nil
	}
}

// writePump drains the client's outbound queue onto the socket.
func (g *Gateway) writePump(conn *websocket.Conn, client *hub.Client) {
	out := client.Outbound()
	defer conn.Close(websocket.StatusNormalClosure, "server-side cleanup")

	for {
		frame, ok := <-out
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := conn.Write(ctx, websocket.MessageText, frame)
		cancel()
		if err != nil {
			g.logger.Debug("write failed", "conn_id", client.ID, "error", err)
			return
		}
	}
}

// readPump decodes inbound frames and dispatches them. Handling is
// sequential per connection, which preserves this sender's submission
// order; other connections are serviced independently.
func (g *Gateway) readPump(conn *websocket.Conn, client *hub.Client) {
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		// Disconnect cascade: drop room subscriptions first, then let
		// the registry decide whether the user went offline.
		g.hub.Unregister(client.ID)
		g.registry.Disconnect(client.UserID, client.ID)
		conn.Close(websocket.StatusNormalClosure, "client disconnected")
		g.logger.Info("client disconnected", "user_id", client.UserID, "conn_id", client.ID)
	}()

	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && !errors.Is(err, io.EOF) {
				g.logger.Debug("read error", "conn_id", client.ID, "error", err)
			}
			return
		}
		g.handleFrame(ctx, client, raw)
	}
}

// handleFrame routes one decoded frame. Errors become point-to-point
// acks to this connection; nothing interrupts other connections.
func (g *Gateway) handleFrame(ctx context.Context, client *hub.Client, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		g.sendError(client.ID, "", fmt.Errorf("%w: malformed frame", domain.ErrValidation))
		return
	}

	var err error
	switch frame.Action {
	case domain.ActionJoinRoom:
		err = g.handleJoin(ctx, client, frame.Payload)
	case domain.ActionLeaveRoom:
		err = g.handleLeave(ctx, client, frame.Payload)
	case domain.ActionSendMessage:
		err = g.handleSend(ctx, client, frame.Payload)
	case domain.ActionEditMessage:
		err = g.handleEdit(ctx, client, frame.Payload)
	case domain.ActionDeleteMessage:
		err = g.handleDelete(ctx, client, frame.Payload, false)
	case domain.ActionDeleteForMe:
		err = g.handleDelete(ctx, client, frame.Payload, true)
	case domain.ActionAddReaction:
		err = g.handleReaction(ctx, client, frame.Payload, true)
	case domain.ActionRemoveReaction:
		err = g.handleReaction(ctx, client, frame.Payload, false)
	case domain.ActionTyping:
		err = g.handleTyping(ctx, client, frame.Payload)
	case domain.ActionMarkRead:
		err = g.handleMarkRead(ctx, client, frame.Payload)
	case domain.ActionChangeStatus:
		err = g.handleChangeStatus(ctx, client, frame.Payload)
	default:
		err = fmt.Errorf("%w: unknown action %q", domain.ErrValidation, frame.Action)
	}

	if err != nil {
		g.sendError(client.ID, frame.Action, err)
	}
}

func (g *Gateway) handleJoin(ctx context.Context, client *hub.Client, payload json.RawMessage) error {
	var req joinRoomPayload
	if err := g.decode(payload, &req); err != nil {
		return err
	}
	key, err := domain.NewRoomKey(domain.TargetType(req.RoomType), req.RoomID)
	if err != nil {
		return err
	}
	if err := g.router.AuthorizeJoin(ctx, client.UserID, key); err != nil {
		return err
	}
	g.hub.Join(client.ID, key)

	g.hub.SendToConn(client.ID, domain.EventRoomJoined, roomJoinedPayload{
		RoomType: req.RoomType,
		RoomID:   req.RoomID,
		Members:  g.hub.RoomMembers(key),
	})

	history, err := g.dispatcher.Recent(ctx, client.UserID, key, historyLimit)
	if err != nil {
		g.logger.Warn("history fetch failed", "room", key.String(), "error", err)
		return nil // joined fine; history is best-effort
	}
	g.hub.SendToConn(client.ID, domain.EventMessageHistory, historyPayload{
		RoomType: req.RoomType,
		RoomID:   req.RoomID,
		Messages: history,
	})
	return nil
}

func (g *Gateway) handleLeave(_ context.Context, client *hub.Client, payload json.RawMessage) error {
	var req joinRoomPayload
	if err := g.decode(payload, &req); err != nil {
		return err
	}
	key, err := domain.NewRoomKey(domain.TargetType(req.RoomType), req.RoomID)
	if err != nil {
		return err
	}
	g.hub.Leave(client.ID, key)
	g.hub.SendToConn(client.ID, domain.EventRoomLeft, roomJoinedPayload{RoomType: req.RoomType, RoomID: req.RoomID})
	return nil
}

func (g *Gateway) handleSend(ctx context.Context, client *hub.Client, payload json.RawMessage) error {
	var req sendMessagePayload
	if err := g.decode(payload, &req); err != nil {
		return err
	}
	target := domain.RoomKey{Type: domain.TargetType(req.TargetType), ID: req.TargetID}
	if target.Type != domain.TargetUser && !g.subscribed(client.ID, target) {
		return fmt.Errorf("%w: join %s before posting to it", domain.ErrAuthorization, target)
	}

	// The dispatcher owns all further outcome reporting: message_sent or
	// message_error straight to this connection, keyed by temp_id.
	g.dispatcher.Submit(ctx, dispatch.SubmitRequest{
		SenderConn:  client.ID,
		SenderID:    client.UserID,
		Target:      target,
		Content:     req.Content,
		MessageType: req.MessageType,
		ReplyTo:     req.ReplyTo,
		TempID:      req.TempID,
	})
	return nil
}

func (g *Gateway) handleEdit(ctx context.Context, client *hub.Client, payload json.RawMessage) error {
	var req editMessagePayload
	if err := g.decode(payload, &req); err != nil {
		return err
	}
	return g.dispatcher.Edit(ctx, client.UserID, req.MessageID, req.Content)
}

func (g *Gateway) handleDelete(ctx context.Context, client *hub.Client, payload json.RawMessage, forMe bool) error {
	var req messageRefPayload
	if err := g.decode(payload, &req); err != nil {
		return err
	}
	if forMe {
		return g.dispatcher.DeleteForMe(ctx, client.UserID, req.MessageID)
	}
	return g.dispatcher.Delete(ctx, client.UserID, req.MessageID)
}

func (g *Gateway) handleReaction(ctx context.Context, client *hub.Client, payload json.RawMessage, add bool) error {
	var req reactionPayload
	if err := g.decode(payload, &req); err != nil {
		return err
	}
	return g.broadcaster.Reaction(ctx, client.UserID, req.MessageID, req.Emoji, add)
}

func (g *Gateway) handleTyping(_ context.Context, client *hub.Client, payload json.RawMessage) error {
	var req typingPayload
	if err := g.decode(payload, &req); err != nil {
		return err
	}
	key, err := domain.NewRoomKey(domain.TargetType(req.TargetType), req.TargetID)
	if err != nil {
		return err
	}
	if key.Type != domain.TargetUser && !g.subscribed(client.ID, key) {
		return fmt.Errorf("%w: not subscribed to %s", domain.ErrAuthorization, key)
	}
	g.broadcaster.Typing(client.UserID, client.ID, key, req.IsTyping)
	return nil
}

func (g *Gateway) handleMarkRead(ctx context.Context, client *hub.Client, payload json.RawMessage) error {
	var req messageRefPayload
	if err := g.decode(payload, &req); err != nil {
		return err
	}
	return g.broadcaster.MarkRead(ctx, client.UserID, req.MessageID)
}

func (g *Gateway) handleChangeStatus(ctx context.Context, client *hub.Client, payload json.RawMessage) error {
	var req changeStatusPayload
	if err := g.decode(payload, &req); err != nil {
		return err
	}
	return g.registry.ChangeStatus(ctx, client.UserID, domain.PresenceStatus(req.Status), req.StatusMessage)
}

// decode unmarshals and validates one payload struct.
func (g *Gateway) decode(payload json.RawMessage, dst any) error {
	if err := json.Unmarshal(payload, dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := g.validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// subscribed reports whether the connection currently holds the room.
func (g *Gateway) subscribed(connID string, key domain.RoomKey) bool {
	for _, k := range g.hub.Rooms(connID) {
		if k == key {
			return true
		}
	}
	return false
}

// sendError reports a failed operation to the originating connection
// only; uninvolved room members observe nothing.
func (g *Gateway) sendError(connID, action string, err error) {
	g.hub.SendToConn(connID, domain.EventError, errorAck{
		Action: action,
		Code:   domain.ErrorCode(err),
		Reason: err.Error(),
	})
}
