// Package imtest provides in-memory fakes of the IM transport for
// package tests.
package imtest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linj121/convo/im"
)

// Contact is a fake contact that records everything said to it.
type Contact struct {
	ContactName string

	mu   sync.Mutex
	said []im.Sayable
	fail error
}

func NewContact(name string) *Contact {
	return &Contact{ContactName: name}
}

func (c *Contact) Name() string { return c.ContactName }

func (c *Contact) Say(_ context.Context, payload im.Sayable) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.said = append(c.said, payload)
	return nil
}

// FailWith makes every subsequent Say return err.
func (c *Contact) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = err
}

// Said returns a copy of all recorded payloads.
func (c *Contact) Said() []im.Sayable {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]im.Sayable, len(c.said))
	copy(out, c.said)
	return out
}

// SaidTexts returns only the recorded text payloads.
func (c *Contact) SaidTexts() []string {
	var out []string
	for _, s := range c.Said() {
		if t, ok := s.(im.Text); ok {
			out = append(out, string(t))
		}
	}
	return out
}

// Room is a fake group conversation that records everything said to it.
type Room struct {
	RoomTopic string

	mu   sync.Mutex
	said []im.Sayable
}

func NewRoom(topic string) *Room {
	return &Room{RoomTopic: topic}
}

func (r *Room) Topic() string { return r.RoomTopic }

func (r *Room) Say(_ context.Context, payload im.Sayable) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.said = append(r.said, payload)
	return nil
}

func (r *Room) Said() []im.Sayable {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]im.Sayable, len(r.said))
	copy(out, r.said)
	return out
}

func (r *Room) SaidTexts() []string {
	var out []string
	for _, s := range r.Said() {
		if t, ok := s.(im.Text); ok {
			out = append(out, string(t))
		}
	}
	return out
}

// Message is a scriptable fake inbound message.
type Message struct {
	MsgType  im.MessageType
	MsgText  string
	MsgRoom  *Room
	Sender   *Contact
	Receiver *Contact
	FromSelf bool
	SentAt   time.Time
	FileBox  *im.FileBox
}

func (m *Message) Type() im.MessageType { return m.MsgType }
func (m *Message) Text() string         { return m.MsgText }

func (m *Message) Room() im.Room {
	if m.MsgRoom == nil {
		return nil
	}
	return m.MsgRoom
}

func (m *Message) Talker() im.Contact { return m.Sender }

func (m *Message) Listener() im.Contact {
	if m.Receiver == nil {
		return nil
	}
	return m.Receiver
}

func (m *Message) Self() bool { return m.FromSelf }

func (m *Message) Date() time.Time {
	if m.SentAt.IsZero() {
		return time.Now()
	}
	return m.SentAt
}

func (m *Message) ToFileBox(context.Context) (*im.FileBox, error) {
	if m.FileBox == nil {
		return nil, fmt.Errorf("message carries no file box")
	}
	return m.FileBox, nil
}

// TextMessage builds a direct text message from sender.
func TextMessage(sender *Contact, text string) *Message {
	return &Message{MsgType: im.MessageTypeText, MsgText: text, Sender: sender}
}

// RoomTextMessage builds a group text message from sender in room.
func RoomTextMessage(room *Room, sender *Contact, text string) *Message {
	return &Message{MsgType: im.MessageTypeText, MsgText: text, MsgRoom: room, Sender: sender}
}

// Session is a fake transport session with registered contacts and
// rooms. Event emission is driven by the test through Emit helpers.
type Session struct {
	User *Contact

	mu       sync.Mutex
	contacts map[string]*Contact
	rooms    map[string]*Room
	handlers []im.Handlers
	started  bool
}

func NewSession(userName string) *Session {
	return &Session{
		User:     NewContact(userName),
		contacts: make(map[string]*Contact),
		rooms:    make(map[string]*Room),
	}
}

// AddContact registers a contact for FindContact lookups.
func (s *Session) AddContact(c *Contact) *Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contacts[c.ContactName] = c
	return c
}

// AddRoom registers a room for FindRoom lookups.
func (s *Session) AddRoom(r *Room) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.RoomTopic] = r
	return r
}

func (s *Session) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = true
	return nil
}

func (s *Session) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	return nil
}

func (s *Session) Started() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

func (s *Session) Subscribe(h im.Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, h)
}

func (s *Session) FindContact(_ context.Context, name string) (im.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[name]
	if !ok {
		return nil, nil
	}
	return c, nil
}

func (s *Session) FindRoom(_ context.Context, topic string) (im.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[topic]
	if !ok {
		return nil, nil
	}
	return r, nil
}

func (s *Session) CurrentUser() im.Contact { return s.User }

func (s *Session) snapshot() []im.Handlers {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]im.Handlers, len(s.handlers))
	copy(out, s.handlers)
	return out
}

// EmitMessage delivers msg to every subscribed message handler.
func (s *Session) EmitMessage(ctx context.Context, msg im.Message) {
	for _, h := range s.snapshot() {
		if h.OnMessage != nil {
			h.OnMessage(ctx, msg)
		}
	}
}

// EmitReady signals transport readiness to every subscriber.
func (s *Session) EmitReady(ctx context.Context) {
	for _, h := range s.snapshot() {
		if h.OnReady != nil {
			h.OnReady(ctx)
		}
	}
}

// EmitError delivers err to every subscribed error handler.
func (s *Session) EmitError(err error) {
	for _, h := range s.snapshot() {
		if h.OnError != nil {
			h.OnError(err)
		}
	}
}
