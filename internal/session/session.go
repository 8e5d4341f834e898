// Package session manages the connection lifecycle: joining an event or a display,
// replaying state to the newcomer, and leaving.
package session

import (
	"go.uber.org/zap"

	"github.com/aura-stage/backend/internal/models"
	"github.com/aura-stage/backend/internal/rooms"
	"github.com/aura-stage/backend/internal/store"
	"github.com/aura-stage/backend/internal/validation"
)

// RoomJoiner subscribes a connection to a room.
type RoomJoiner interface {
	JoinRoom(clientID, room string)
}

// Joined acknowledges a successful join.
type Joined struct {
	ConnectionID string      `json:"connectionId"`
	EventID      string      `json:"eventId"`
	Role         models.Role `json:"role"`
	DisplayID    string      `json:"displayId,omitempty"`
}

// Manager registers connections on events.
type Manager struct {
	store  *store.Store
	router *rooms.Router
	joiner RoomJoiner
	logger *zap.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(st *store.Store, router *rooms.Router, joiner RoomJoiner, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: st, router: router, joiner: joiner, logger: logger}
}

// JoinEvent registers clientID on eventID in role. Credentials must already be verified;
// actorID is the identity used for votes and rate limits and defaults to clientID.
func (m *Manager) JoinEvent(clientID, eventID string, role models.Role, actorID string) (models.Connection, error) {
	eventID, err := validation.EventID(eventID)
	if err != nil {
		return models.Connection{}, err
	}
	role, err = validation.JoinRole(role)
	if err != nil {
		return models.Connection{}, err
	}
	return m.join(models.Connection{ID: clientID, EventID: eventID, Role: role, ActorID: actorID})
}

// JoinDisplay registers clientID as display displayID of eventID.
func (m *Manager) JoinDisplay(clientID, eventID, displayID string) (models.Connection, error) {
	eventID, err := validation.EventID(eventID)
	if err != nil {
		return models.Connection{}, err
	}
	displayID, err = validation.DisplayID(displayID)
	if err != nil {
		return models.Connection{}, err
	}
	return m.join(models.Connection{ID: clientID, EventID: eventID, Role: models.RoleDisplay, DisplayID: displayID})
}

func (m *Manager) join(c models.Connection) (models.Connection, error) {
	if c.ActorID == "" {
		c.ActorID = c.ID
	}
	m.store.Ensure(c.EventID)
	err := m.store.Update(c.EventID, func(ev *store.Event) error {
		c.JoinedAt = m.store.Now()
		ev.Connections[c.ID] = c
		room := roomFor(c)
		m.joiner.JoinRoom(c.ID, room)
		m.router.SendTo(c.ID, rooms.EventJoined, Joined{
			ConnectionID: c.ID,
			EventID:      c.EventID,
			Role:         c.Role,
			DisplayID:    c.DisplayID,
		})
		m.replay(ev, c)
		m.router.StatsChanged(ev)
		return nil
	})
	if err != nil {
		return models.Connection{}, err
	}
	m.logger.Debug("connection joined",
		zap.String("event_id", c.EventID),
		zap.String("connection_id", c.ID),
		zap.String("role", string(c.Role)),
		zap.String("display_id", c.DisplayID),
	)
	return c, nil
}

// Leave deregisters c. Rate-limit counters are keyed by actor and survive.
func (m *Manager) Leave(c models.Connection) {
	err := m.store.Update(c.EventID, func(ev *store.Event) error {
		if _, ok := ev.Connections[c.ID]; !ok {
			return nil
		}
		delete(ev.Connections, c.ID)
		m.router.StatsChanged(ev)
		return nil
	})
	if err != nil {
		m.logger.Warn("leave failed", zap.String("event_id", c.EventID), zap.String("connection_id", c.ID), zap.Error(err))
		return
	}
	m.logger.Debug("connection left", zap.String("event_id", c.EventID), zap.String("connection_id", c.ID))
}

func roomFor(c models.Connection) string {
	switch c.Role {
	case models.RoleDisplay:
		return rooms.Display(c.EventID, c.DisplayID)
	case models.RoleAudience:
		return rooms.Audience(c.EventID)
	}
	return rooms.Control(c.EventID)
}

// replay sends the newcomer the full state its room would otherwise have missed.
func (m *Manager) replay(ev *store.Event, c models.Connection) {
	now := m.store.Now()
	switch c.Role {
	case models.RoleProducer, models.RoleAVTech:
		m.router.SendTo(c.ID, rooms.EventPollSync, rooms.PollSyncOf(ev))
		m.router.SendTo(c.ID, rooms.EventBundleSync, rooms.BundleSyncOf(ev))
		m.router.SendTo(c.ID, rooms.EventTimerSync, rooms.TimerSyncOf(ev, now))
		m.router.SendTo(c.ID, rooms.EventQASync, rooms.QASyncOf(ev))
		m.router.SendTo(c.ID, rooms.EventSettingsSync, ev.Settings)
		m.router.SendTo(c.ID, rooms.EventStatsUpdate, ev.Stats())
	case models.RoleDisplay:
		m.router.SendTo(c.ID, rooms.EventPollDisplay, rooms.PollDisplayOf(ev))
		m.router.SendTo(c.ID, rooms.EventTimerDisplay, rooms.TimerDisplayOf(ev, now))
		m.router.SendTo(c.ID, rooms.EventQAFeatured, rooms.QAFeaturedOf(ev))
		m.router.SendTo(c.ID, rooms.EventSettingsSync, ev.Settings)
	case models.RoleAudience:
		if active := rooms.PollActiveOf(ev); active.Poll != nil {
			m.router.SendTo(c.ID, rooms.EventPollActive, active)
		}
		m.router.SendTo(c.ID, rooms.EventQASync, rooms.PublicQASyncOf(ev))
	}
}
