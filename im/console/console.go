// Package console implements an im.Session over stdin and stdout for
// local development. Each line typed becomes a text message from the
// configured peer; replies are printed to stdout.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/linj121/convo/im"
)

// Options configures a console Session.
type Options struct {
	// SelfName is the display name of the logged-in account.
	SelfName string
	// PeerName is the display name attributed to typed input.
	PeerName string
	// Input and Output default to os.Stdin and os.Stdout.
	Input  io.Reader
	Output io.Writer
	Logger *slog.Logger
}

type contact struct {
	name string
	out  io.Writer
	mu   *sync.Mutex
}

func (c *contact) Name() string { return c.name }

func (c *contact) Say(_ context.Context, payload im.Sayable) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch p := payload.(type) {
	case im.Text:
		_, err := fmt.Fprintf(c.out, "%s\n", string(p))
		return err
	case *im.FileBox:
		_, err := fmt.Fprintf(c.out, "[file: %s, %d bytes]\n", p.Name, len(p.Data))
		return err
	default:
		return fmt.Errorf("unsupported payload %T", payload)
	}
}

type message struct {
	text     string
	talker   im.Contact
	listener im.Contact
	date     time.Time
}

func (m *message) Type() im.MessageType  { return im.MessageTypeText }
func (m *message) Text() string          { return m.text }
func (m *message) Room() im.Room         { return nil }
func (m *message) Talker() im.Contact    { return m.talker }
func (m *message) Listener() im.Contact  { return m.listener }
func (m *message) Self() bool            { return false }
func (m *message) Date() time.Time       { return m.date }
func (m *message) ToFileBox(context.Context) (*im.FileBox, error) {
	return nil, fmt.Errorf("console messages carry no binary payload")
}

// Session is the console transport. It logs in immediately on Start
// and reads input lines on a background goroutine until Stop or EOF.
type Session struct {
	self   *contact
	peer   *contact
	input  io.Reader
	logger *slog.Logger

	mu       sync.Mutex
	handlers im.Handlers
	started  bool
	done     chan struct{}
}

func New(opts Options) (*Session, error) {
	if opts.SelfName == "" {
		return nil, fmt.Errorf("self name is required")
	}
	if opts.PeerName == "" {
		return nil, fmt.Errorf("peer name is required")
	}
	input := opts.Input
	if input == nil {
		input = os.Stdin
	}
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	outMu := &sync.Mutex{}
	return &Session{
		self:   &contact{name: opts.SelfName, out: output, mu: outMu},
		peer:   &contact{name: opts.PeerName, out: output, mu: outMu},
		input:  input,
		logger: logger,
	}, nil
}

func (s *Session) Subscribe(h im.Handlers) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = h
}

// Start emits login and ready immediately (the console needs no QR
// handshake) and begins reading input lines.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("session already started")
	}
	s.started = true
	s.done = make(chan struct{})
	handlers := s.handlers
	s.mu.Unlock()

	if handlers.OnLogin != nil {
		handlers.OnLogin(s.self)
	}
	if handlers.OnReady != nil {
		handlers.OnReady(ctx)
	}
	go s.readLoop(ctx)
	return nil
}

func (s *Session) readLoop(ctx context.Context) {
	scanner := bufio.NewScanner(s.input)
	for scanner.Scan() {
		select {
		case <-s.done:
			return
		default:
		}
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		s.mu.Lock()
		handlers := s.handlers
		s.mu.Unlock()
		if handlers.OnMessage == nil {
			continue
		}
		handlers.OnMessage(ctx, &message{
			text:     line,
			talker:   s.peer,
			listener: s.self,
			date:     time.Now(),
		})
	}
	if err := scanner.Err(); err != nil {
		s.mu.Lock()
		handlers := s.handlers
		s.mu.Unlock()
		if handlers.OnError != nil {
			handlers.OnError(fmt.Errorf("read console input: %w", err))
		}
	}
	s.logger.Debug("console input closed")
}

func (s *Session) Stop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return nil
	}
	s.started = false
	close(s.done)
	if s.handlers.OnLogout != nil {
		s.handlers.OnLogout(s.self, "session stopped")
	}
	return nil
}

// FindContact matches the peer or the logged-in account by exact name.
func (s *Session) FindContact(_ context.Context, name string) (im.Contact, error) {
	switch name {
	case s.peer.name:
		return s.peer, nil
	case s.self.name:
		return s.self, nil
	default:
		return nil, nil
	}
}

// FindRoom always reports not found; the console has no group chats.
func (s *Session) FindRoom(context.Context, string) (im.Room, error) {
	return nil, nil
}

func (s *Session) CurrentUser() im.Contact { return s.self }

var _ im.Session = (*Session)(nil)
