package realtime

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/auth"
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/rooms"
	"github.com/aura-stage/backend/internal/validation"
)

// Client to server lifecycle events.
const (
	EventJoinEvent   = "join-event"
	EventJoinDisplay = "join-display"
	EventPollVote    = "poll:vote"
)

// HandlerFunc handles one inbound event for a joined connection.
type HandlerFunc func(ctx context.Context, c models.Connection, data json.RawMessage) error

// Lifecycle registers and removes connections on events.
type Lifecycle interface {
	JoinEvent(clientID, eventID string, role models.Role, actorID string) (models.Connection, error)
	JoinDisplay(clientID, eventID, displayID string) (models.Connection, error)
	Leave(c models.Connection)
}

// Verifier checks handshake credentials for a role.
type Verifier interface {
	Verify(ctx context.Context, eventID string, role models.Role, creds auth.Credentials) (auth.Identity, error)
}

// JoinEventRequest is the `join-event` payload.
type JoinEventRequest struct {
	EventID string      `json:"eventId"`
	Role    models.Role `json:"role"`
}

// JoinDisplayRequest is the `join-display` payload.
type JoinDisplayRequest struct {
	EventID   string `json:"eventId"`
	DisplayID string `json:"displayId"`
}

// ConnectError is the `connect_error` payload.
type ConnectError struct {
	Message string        `json:"message"`
	Code    apperror.Kind `json:"code"`
}

type route struct {
	roles map[models.Role]struct{}
	fn    HandlerFunc
}

// Dispatcher authorizes inbound events by role and routes them to handlers. Failures go
// back to the originating socket only.
type Dispatcher struct {
	hub       *Hub
	lifecycle Lifecycle
	verifier  Verifier
	routes    map[string]route
	logger    *zap.Logger
}

// NewDispatcher creates a dispatcher with no routes.
func NewDispatcher(hub *Hub, lifecycle Lifecycle, verifier Verifier, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		hub:       hub,
		lifecycle: lifecycle,
		verifier:  verifier,
		routes:    make(map[string]route),
		logger:    logger,
	}
}

// Handle registers fn for event, callable by the given roles.
func (d *Dispatcher) Handle(event string, fn HandlerFunc, roles ...models.Role) {
	allowed := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	d.routes[event] = route{roles: allowed, fn: fn}
}

// Allowed reports whether role may send event.
func (d *Dispatcher) Allowed(event string, role models.Role) bool {
	r, ok := d.routes[event]
	if !ok {
		return false
	}
	_, ok = r.roles[role]
	return ok
}

// Dispatch processes one message from c.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Client, msg WSMessage) {
	switch msg.Event {
	case EventJoinEvent:
		d.joinEvent(ctx, c, msg.Data)
		return
	case EventJoinDisplay:
		d.joinDisplay(c, msg.Data)
		return
	}

	if err := d.route(ctx, c, msg); err != nil {
		d.fail(c, msg.Event, err)
	}
}

func (d *Dispatcher) route(ctx context.Context, c *Client, msg WSMessage) error {
	r, ok := d.routes[msg.Event]
	if !ok {
		return apperror.Validation("event", "unknown event %q", msg.Event)
	}
	conn, joined := c.Joined()
	if !joined {
		return apperror.Unauthorized("join an event first")
	}
	if _, ok := r.roles[conn.Role]; !ok {
		return apperror.Unauthorized("role %s may not send %s", conn.Role, msg.Event)
	}
	var scope struct {
		EventID string `json:"eventId"`
	}
	if json.Unmarshal(msg.Data, &scope) == nil && scope.EventID != "" && scope.EventID != conn.EventID {
		return apperror.Unauthorized("not joined to event %q", scope.EventID)
	}
	return r.fn(ctx, conn, msg.Data)
}

func (d *Dispatcher) fail(c *Client, event string, err error) {
	appErr := apperror.From(err)
	if errors.Is(appErr, apperror.ErrInternal) {
		d.logger.Error("event failed", zap.String("client_id", c.ID), zap.String("event", event), zap.Error(err))
	} else {
		d.logger.Debug("event rejected", zap.String("client_id", c.ID), zap.String("event", event), zap.Error(err))
	}
	name := rooms.EventError
	if event == EventPollVote {
		name = rooms.EventPollVoteError
	}
	d.hub.SendToClient(c.ID, name, apperror.ToPayload(event, err))
}

func (d *Dispatcher) connectError(c *Client, err error) {
	e := apperror.From(err)
	d.logger.Debug("join refused", zap.String("client_id", c.ID), zap.Error(err))
	d.hub.SendToClient(c.ID, rooms.EventConnectError, ConnectError{Message: e.Message, Code: e.Kind})
}

func (d *Dispatcher) joinEvent(ctx context.Context, c *Client, data json.RawMessage) {
	var req JoinEventRequest
	if err := validation.Decode(data, &req); err != nil {
		d.connectError(c, err)
		return
	}
	eventID, err := validation.EventID(req.EventID)
	if err != nil {
		d.connectError(c, err)
		return
	}
	role, err := validation.JoinRole(req.Role)
	if err != nil {
		d.connectError(c, err)
		return
	}
	id, err := d.verifier.Verify(ctx, eventID, role, c.creds)
	if err != nil {
		d.connectError(c, err)
		return
	}
	d.leave(c)
	conn, err := d.lifecycle.JoinEvent(c.ID, eventID, role, id.ActorID)
	if err != nil {
		d.connectError(c, err)
		return
	}
	c.joined = &conn
}

func (d *Dispatcher) joinDisplay(c *Client, data json.RawMessage) {
	var req JoinDisplayRequest
	if err := validation.Decode(data, &req); err != nil {
		d.connectError(c, err)
		return
	}
	if _, err := validation.EventID(req.EventID); err != nil {
		d.connectError(c, err)
		return
	}
	if _, err := validation.DisplayID(req.DisplayID); err != nil {
		d.connectError(c, err)
		return
	}
	d.leave(c)
	conn, err := d.lifecycle.JoinDisplay(c.ID, req.EventID, req.DisplayID)
	if err != nil {
		d.connectError(c, err)
		return
	}
	c.joined = &conn
}

// leave drops any previous membership before a rejoin.
func (d *Dispatcher) leave(c *Client) {
	conn, ok := c.Joined()
	if !ok {
		return
	}
	d.hub.LeaveRooms(c.ID)
	d.lifecycle.Leave(conn)
	c.joined = nil
}

// Disconnect deregisters c from its event.
func (d *Dispatcher) Disconnect(c *Client) {
	d.leave(c)
}
