package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"medilink/internal/dispatch/events"
	"medilink/internal/dispatch/registry"
	"medilink/internal/dispatch/service"
	"medilink/pkg/auth"
	"medilink/pkg/config"
	apperrors "medilink/pkg/errors"
	"medilink/pkg/middleware"
	"medilink/pkg/model"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

// SocketHandler serves the dispatch websocket. Each connection gets a read
// loop that runs commands in order and a write loop that owns all writes.
type SocketHandler struct {
	service  service.DispatchService
	registry *registry.Registry
	tokens   *auth.TokenService
	cfg      *config.Config
	upgrader websocket.Upgrader
}

func NewSocketHandler(svc service.DispatchService, reg *registry.Registry, tokens *auth.TokenService, cfg *config.Config) *SocketHandler {
	return &SocketHandler{
		service:  svc,
		registry: reg,
		tokens:   tokens,
		cfg:      cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Connections authenticate with a token after the upgrade.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *SocketHandler) Serve(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.cfg.Log.Warn("Websocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	// Commands on this connection share the upgrade request's id.
	s := &session{
		h:         h,
		conn:      conn,
		client:    registry.NewClient(uuid.NewString(), h.cfg.WSSendBuffer),
		done:      make(chan struct{}),
		requestID: middleware.RequestIDFrom(r.Context()),
	}
	h.cfg.Log.Debug("Websocket connected", "client_id", s.client.ID, "remote_addr", r.RemoteAddr)

	go s.writePump()
	s.readPump()
}

func (h *SocketHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/ws", h.Serve)
}

type session struct {
	h         *SocketHandler
	conn      *websocket.Conn
	client    *registry.Client
	done      chan struct{}
	once      sync.Once
	requestID string
}

func (s *session) readPump() {
	defer s.close()

	pongWait := s.h.cfg.WSPongTimeout
	s.conn.SetReadLimit(int64(s.h.cfg.MaxRequestSize))
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.h.cfg.Log.Warn("Websocket closed unexpectedly", "client_id", s.client.ID, "error", err)
			}
			return
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.handle(frame)
	}
}

func (s *session) writePump() {
	pingPeriod := s.h.cfg.WSPongTimeout * 9 / 10
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.cfg.WSWriteTimeout))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-s.client.Messages():
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.cfg.WSWriteTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.h.cfg.Log.Debug("Websocket write failed", "client_id", s.client.ID, "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.h.cfg.WSWriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			if userID, role := s.client.Identity(); role == model.RoleDriver {
				ctx, cancel := context.WithTimeout(context.Background(), s.h.cfg.WSWriteTimeout)
				s.h.service.Heartbeat(ctx, userID)
				cancel()
			}
		}
	}
}

// close runs once when the read loop ends. A driver whose connection was
// still the current one goes offline.
func (s *session) close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()

		userID, role := s.client.Identity()
		if !s.h.registry.Unregister(s.client) {
			return
		}
		s.h.cfg.Log.Debug("Websocket disconnected", "client_id", s.client.ID, "user_id", userID)
		if role == model.RoleDriver {
			ctx, cancel := context.WithTimeout(context.Background(), s.h.cfg.RequestTimeout)
			defer cancel()
			s.h.service.DriverOffline(ctx, userID)
		}
	})
}

func (s *session) handle(frame []byte) {
	env, err := events.Decode(frame)
	if err != nil {
		s.sendError("", apperrors.InvalidInput("Malformed message"))
		return
	}
	if env.Event != events.Authenticate && !s.client.Authenticated() {
		s.sendError(env.Event, apperrors.Unauthorized("Authenticate before sending "+env.Event))
		return
	}

	ctx, cancel := context.WithTimeout(middleware.WithRequestID(context.Background(), s.requestID), s.h.cfg.RequestTimeout)
	defer cancel()

	userID, role := s.client.Identity()
	actor := auth.Identity{UserID: userID, Role: role}

	switch env.Event {
	case events.Authenticate:
		err = s.authenticate(ctx, env.Data)
	case events.NewRequest:
		var input model.EmergencyRequestInput
		if err = decode(env.Data, &input); err == nil {
			_, err = s.h.service.CreateRequest(ctx, actor, &input)
		}
	case events.AcceptRequest:
		var p events.AcceptPayload
		if err = decode(env.Data, &p); err == nil {
			_, err = s.h.service.AcceptRequest(ctx, actor, p.RequestID, p.Driver)
		}
	case events.RequestStatusUpdate:
		var p events.StatusUpdatePayload
		if err = decode(env.Data, &p); err == nil {
			_, err = s.h.service.UpdateStatus(ctx, actor, p.RequestID, p.Status, p.Driver)
		}
	case events.CancelRequest:
		var p events.CancelPayload
		if err = decode(env.Data, &p); err == nil {
			_, err = s.h.service.CancelRequest(ctx, actor, p.RequestID)
		}
	default:
		err = apperrors.InvalidInput("Unknown event " + env.Event)
	}

	if err != nil {
		s.sendError(env.Event, err)
	}
}

// authenticate binds the connection to the identity in the token. The
// claimed userId and userType must agree with it. Drivers then receive every
// request that is pending right now.
func (s *session) authenticate(ctx context.Context, data json.RawMessage) error {
	var p events.AuthenticatePayload
	if err := decode(data, &p); err != nil {
		return err
	}

	identity, err := s.h.tokens.Verify(p.Token)
	if err != nil {
		s.h.cfg.Log.Warn("Websocket authentication failed", "client_id", s.client.ID, "error", err)
		return apperrors.Unauthorized("Invalid or expired token")
	}
	if (p.UserID != "" && p.UserID != identity.UserID) || (p.UserType != "" && p.UserType != identity.Role) {
		return apperrors.Unauthorized("Token does not match the claimed identity")
	}

	driver := identity.Role == model.RoleDriver
	if driver {
		// Broadcasts raised while the pending snapshot is read and replayed
		// are delivered after the replay, so a request accepted meanwhile
		// ends with its status update rather than a stale new_request.
		s.client.Hold()
		defer s.release()
	}

	s.h.registry.Register(s.client, identity.UserID, identity.Role)
	s.reply(ctx, events.Authenticated, events.AuthenticatedPayload{UserID: identity.UserID, UserType: identity.Role})
	s.h.cfg.Log.Info("Websocket authenticated", "client_id", s.client.ID, "user_id", identity.UserID, "role", identity.Role)

	if !driver {
		return nil
	}
	pending, err := s.h.service.DriverOnline(ctx, identity.UserID)
	if err != nil {
		return err
	}
	for _, req := range pending {
		s.reply(ctx, events.NewRequest, req)
	}
	return nil
}

func (s *session) release() {
	ctx, cancel := context.WithTimeout(context.Background(), s.h.cfg.WSWriteTimeout)
	defer cancel()
	if !s.client.Release(ctx) {
		s.h.cfg.Log.Warn("Dropped broadcasts held during replay", "client_id", s.client.ID)
	}
}

// reply queues a frame for this connection only, waiting for buffer space.
func (s *session) reply(ctx context.Context, event string, payload any) {
	frame, err := events.Encode(event, payload)
	if err != nil {
		s.h.cfg.Log.Error("Failed to encode reply", "event", event, "error", err)
		return
	}
	if !s.client.DeliverWait(ctx, frame) {
		s.h.cfg.Log.Warn("Dropped reply", "client_id", s.client.ID, "event", event)
	}
}

func (s *session) sendError(event string, err error) {
	appErr := apperrors.AsAppError(err)
	message := appErr.Message
	if appErr.Code == apperrors.CodeInternal {
		message = "Internal server error"
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.h.cfg.WSWriteTimeout)
	defer cancel()
	s.reply(ctx, events.Error, events.ErrorPayload{Event: event, Code: appErr.Code, Message: message})
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperrors.InvalidInput("Message data is required")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperrors.InvalidInput("Invalid message data")
	}
	return nil
}
