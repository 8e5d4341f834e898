package models

import "time"

// Role is the kind of client behind a connection.
type Role string

const (
	RoleProducer Role = "producer"
	RoleAVTech   Role = "avtech"
	RoleAudience Role = "audience"
	RoleDisplay  Role = "display"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleProducer, RoleAVTech, RoleAudience, RoleDisplay:
		return true
	}
	return false
}

// Connection is the roster entry for one joined socket.
type Connection struct {
	ID        string    `json:"id"`
	EventID   string    `json:"eventId"`
	Role      Role      `json:"role"`
	DisplayID string    `json:"displayId,omitempty"`
	ActorID   string    `json:"-"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Stats is the aggregate pushed on `stats:update`.
type Stats struct {
	TotalReactions int `json:"totalReactions"`
	QueueLength    int `json:"queueLength"`
	ActiveDisplays int `json:"activeDisplays"`
	AudienceCount  int `json:"audienceCount"`
}

// Reaction is one emoji waiting for, or sent to, displays.
type Reaction struct {
	ID        string    `json:"id"`
	Emoji     string    `json:"emoji"`
	Surge     bool      `json:"surge"`
	CreatedAt time.Time `json:"createdAt"`
}
