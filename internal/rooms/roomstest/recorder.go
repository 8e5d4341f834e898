// Package roomstest provides a recording Broadcaster for tests.
package roomstest

import (
	"encoding/json"
	"strings"
	"sync"
)

// Message is one recorded delivery. Target is a room, a room prefix, or a client id.
type Message struct {
	Kind   string
	Target string
	Event  string
	Data   json.RawMessage
}

// Recorder captures every delivery, encoding payloads at send time like the hub does.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
}

const (
	KindRoom   = "room"
	KindPrefix = "prefix"
	KindClient = "client"
)

func (r *Recorder) record(kind, target, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		panic(err)
	}
	r.mu.Lock()
	r.messages = append(r.messages, Message{Kind: kind, Target: target, Event: event, Data: data})
	r.mu.Unlock()
}

func (r *Recorder) Broadcast(room, event string, payload interface{}) {
	r.record(KindRoom, room, event, payload)
}

func (r *Recorder) BroadcastPrefix(prefix, event string, payload interface{}) {
	r.record(KindPrefix, prefix, event, payload)
}

func (r *Recorder) SendToClient(clientID, event string, payload interface{}) {
	r.record(KindClient, clientID, event, payload)
}

// Messages returns a copy of everything recorded so far.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// Reset forgets recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.messages = nil
	r.mu.Unlock()
}

// To returns messages delivered to target with the given event name.
func (r *Recorder) To(target, event string) []Message {
	var out []Message
	for _, m := range r.Messages() {
		if m.Target == target && m.Event == event {
			out = append(out, m)
		}
	}
	return out
}

// Events returns the event names delivered to target, in order.
func (r *Recorder) Events(target string) []string {
	var out []string
	for _, m := range r.Messages() {
		if m.Target == target {
			out = append(out, m.Event)
		}
	}
	return out
}

// Has reports whether any message with event reached a target starting with target.
func (r *Recorder) Has(target, event string) bool {
	for _, m := range r.Messages() {
		if strings.HasPrefix(m.Target, target) && m.Event == event {
			return true
		}
	}
	return false
}

// Last decodes the data of the most recent message to target with event into v.
// It reports false when there is none.
func (r *Recorder) Last(target, event string, v interface{}) bool {
	msgs := r.To(target, event)
	if len(msgs) == 0 {
		return false
	}
	if err := json.Unmarshal(msgs[len(msgs)-1].Data, v); err != nil {
		panic(err)
	}
	return true
}
