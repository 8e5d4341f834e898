// Package rooms names the broadcast groups of an event and computes which of them receive
// each state delta.
package rooms

const prefix = "event:"

// Control is the room shared by producers and A/V techs.
func Control(eventID string) string {
	return prefix + eventID
}

// Audience is the room of audience phones.
func Audience(eventID string) string {
	return prefix + eventID + ":audience"
}

// Display is the room of a single display surface.
func Display(eventID, displayID string) string {
	return DisplayPrefix(eventID) + displayID
}

// DisplayPrefix matches every display room of an event.
func DisplayPrefix(eventID string) string {
	return prefix + eventID + ":display:"
}

// Broadcaster delivers events to rooms or single connections. Implementations must not
// block: payloads are encoded immediately and enqueued.
type Broadcaster interface {
	Broadcast(room, event string, payload interface{})
	BroadcastPrefix(prefix, event string, payload interface{})
	SendToClient(clientID, event string, payload interface{})
}
