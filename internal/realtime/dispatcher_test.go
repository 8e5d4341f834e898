package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-stage/backend/internal/apperror"
	"github.com/aura-stage/backend/internal/auth"
	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/rooms"
)

type fakeLifecycle struct {
	mu     sync.Mutex
	hub    *Hub
	joins  []models.Connection
	leaves []models.Connection
}

func (f *fakeLifecycle) JoinEvent(clientID, eventID string, role models.Role, actorID string) (models.Connection, error) {
	c := models.Connection{ID: clientID, EventID: eventID, Role: role, ActorID: actorID}
	if c.ActorID == "" {
		c.ActorID = clientID
	}
	f.record(c)
	return c, nil
}

func (f *fakeLifecycle) JoinDisplay(clientID, eventID, displayID string) (models.Connection, error) {
	c := models.Connection{ID: clientID, EventID: eventID, Role: models.RoleDisplay, DisplayID: displayID, ActorID: clientID}
	f.record(c)
	return c, nil
}

func (f *fakeLifecycle) record(c models.Connection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, c)
	f.hub.JoinRoom(c.ID, "joined:"+c.EventID)
}

func (f *fakeLifecycle) Leave(c models.Connection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, c)
}

type fakeVerifier struct{}

func (fakeVerifier) Verify(_ context.Context, eventID string, role models.Role, creds auth.Credentials) (auth.Identity, error) {
	switch role {
	case models.RoleProducer:
		if creds.Token != "good" {
			return auth.Identity{}, apperror.Unauthorized("invalid token")
		}
		return auth.Identity{ActorID: "u1", Role: role}, nil
	case models.RoleAVTech:
		if creds.Password != "booth" {
			return auth.Identity{}, apperror.Unauthorized("invalid avtech password")
		}
		return auth.Identity{ActorID: "avtech:" + eventID, Role: role}, nil
	}
	return auth.Identity{Role: role}, nil
}

type dispatchFixture struct {
	hub   *Hub
	life  *fakeLifecycle
	d     *Dispatcher
	calls []string
}

func newDispatchFixture() *dispatchFixture {
	hub := NewHub(nil)
	f := &dispatchFixture{hub: hub, life: &fakeLifecycle{hub: hub}}
	f.d = NewDispatcher(hub, f.life, fakeVerifier{}, nil)
	record := func(name string) HandlerFunc {
		return func(_ context.Context, c models.Connection, _ json.RawMessage) error {
			f.calls = append(f.calls, name+"@"+c.ActorID)
			return nil
		}
	}
	f.d.Handle("poll:create", record("poll:create"), models.RoleProducer)
	f.d.Handle("poll:close", record("poll:close"), models.RoleProducer, models.RoleAVTech)
	f.d.Handle(EventPollVote, func(context.Context, models.Connection, json.RawMessage) error {
		return apperror.AlreadyVoted("p1")
	}, models.RoleProducer, models.RoleAVTech, models.RoleAudience)
	return f
}

func (f *dispatchFixture) client(creds auth.Credentials) *Client {
	c := newClient(creds, 32, f.hub.logger)
	f.hub.Register(c)
	return c
}

func (f *dispatchFixture) send(c *Client, event, data string) {
	f.d.Dispatch(context.Background(), c, WSMessage{Event: event, Data: json.RawMessage(data)})
}

func lastPayload(t *testing.T, c *Client, event string, v interface{}) {
	t.Helper()
	msgs := drain(c)
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.Equal(t, event, last.Event)
	require.NoError(t, json.Unmarshal(last.Data, v))
}

func TestJoinRequiresCredentials(t *testing.T) {
	f := newDispatchFixture()

	anon := f.client(auth.Credentials{})
	f.send(anon, EventJoinEvent, `{"eventId":"keynote","role":"producer"}`)
	var refused ConnectError
	lastPayload(t, anon, rooms.EventConnectError, &refused)
	assert.Equal(t, apperror.KindUnauthorized, refused.Code)
	_, joined := anon.Joined()
	assert.False(t, joined)

	f.send(anon, EventJoinEvent, `{"eventId":"keynote","role":"display"}`)
	lastPayload(t, anon, rooms.EventConnectError, &refused)
	assert.Equal(t, apperror.KindValidation, refused.Code)

	f.send(anon, EventJoinEvent, `{"eventId":"not valid!","role":"audience"}`)
	lastPayload(t, anon, rooms.EventConnectError, &refused)
	assert.Equal(t, apperror.KindValidation, refused.Code)
	assert.Empty(t, f.life.joins)

	tech := f.client(auth.Credentials{Password: "booth"})
	f.send(tech, EventJoinEvent, `{"eventId":"keynote","role":"avtech"}`)
	conn, joined := tech.Joined()
	require.True(t, joined)
	assert.Equal(t, "avtech:keynote", conn.ActorID)
}

func TestRoleMatrixEnforced(t *testing.T) {
	f := newDispatchFixture()
	tech := f.client(auth.Credentials{Password: "booth"})
	f.send(tech, EventJoinEvent, `{"eventId":"keynote","role":"avtech"}`)
	drain(tech)

	f.send(tech, "poll:create", `{"question":"q"}`)
	var errPayload apperror.Payload
	lastPayload(t, tech, rooms.EventError, &errPayload)
	assert.Equal(t, apperror.KindUnauthorized, errPayload.Code)
	assert.Equal(t, "poll:create", errPayload.Event)

	f.send(tech, "poll:close", `{"pollId":"p1"}`)
	assert.Equal(t, []string{"poll:close@avtech:keynote"}, f.calls)

	viewer := f.client(auth.Credentials{})
	f.send(viewer, "poll:close", `{}`)
	lastPayload(t, viewer, rooms.EventError, &errPayload)
	assert.Equal(t, apperror.KindUnauthorized, errPayload.Code, "not joined yet")

	f.send(viewer, "nope:nothing", `{}`)
	lastPayload(t, viewer, rooms.EventError, &errPayload)
	assert.Equal(t, apperror.KindValidation, errPayload.Code)
}

func TestEventScopeMustMatchJoin(t *testing.T) {
	f := newDispatchFixture()
	prod := f.client(auth.Credentials{Token: "good"})
	f.send(prod, EventJoinEvent, `{"eventId":"keynote","role":"producer"}`)
	drain(prod)

	f.send(prod, "poll:close", `{"eventId":"breakout","pollId":"p1"}`)
	var errPayload apperror.Payload
	lastPayload(t, prod, rooms.EventError, &errPayload)
	assert.Equal(t, apperror.KindUnauthorized, errPayload.Code)
	assert.Empty(t, f.calls)

	f.send(prod, "poll:close", `{"eventId":"keynote","pollId":"p1"}`)
	assert.Equal(t, []string{"poll:close@u1"}, f.calls)
}

func TestVoteErrorsUseVoteChannel(t *testing.T) {
	f := newDispatchFixture()
	viewer := f.client(auth.Credentials{})
	f.send(viewer, EventJoinEvent, `{"eventId":"keynote","role":"audience"}`)
	drain(viewer)

	f.send(viewer, EventPollVote, `{"pollId":"p1","optionId":"o1"}`)
	var errPayload apperror.Payload
	lastPayload(t, viewer, rooms.EventPollVoteError, &errPayload)
	assert.Equal(t, apperror.KindAlreadyVoted, errPayload.Code)
}

func TestRejoinAndDisconnect(t *testing.T) {
	f := newDispatchFixture()
	c := f.client(auth.Credentials{})
	f.send(c, EventJoinEvent, `{"eventId":"keynote","role":"audience"}`)
	f.send(c, EventJoinDisplay, `{"eventId":"keynote","displayId":"main"}`)

	require.Len(t, f.life.leaves, 1, "the first membership is released")
	assert.Equal(t, models.RoleAudience, f.life.leaves[0].Role)
	conn, _ := c.Joined()
	assert.Equal(t, "main", conn.DisplayID)

	f.send(c, EventJoinDisplay, `{"eventId":"keynote","displayId":""}`)
	conn, joined := c.Joined()
	require.True(t, joined, "an invalid rejoin keeps the current membership")
	assert.Equal(t, "main", conn.DisplayID)

	f.d.Disconnect(c)
	require.Len(t, f.life.leaves, 2)
	assert.Equal(t, models.RoleDisplay, f.life.leaves[1].Role)
	_, joined = c.Joined()
	assert.False(t, joined)
}
