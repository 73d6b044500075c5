// Package bot ties the IM session, the plugin registry, and the task
// scheduler together into one runnable gateway service.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/linj121/convo/im"
	"github.com/linj121/convo/plugin"
	"github.com/linj121/convo/scheduler"
)

// Options configures a Service.
type Options struct {
	Session   im.Session
	Registry  *plugin.Registry
	Scheduler *scheduler.Scheduler
	Logger    *slog.Logger
}

// Service runs the gateway: it subscribes to session events, routes
// inbound messages through the registry, and drives the scheduler's
// lifecycle off the session's readiness.
type Service struct {
	session   im.Session
	registry  *plugin.Registry
	scheduler *scheduler.Scheduler
	logger    *slog.Logger

	mu            sync.Mutex
	started       bool
	initializedAt time.Time
}

func New(opts Options) (*Service, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		session:   opts.Session,
		registry:  opts.Registry,
		scheduler: opts.Scheduler,
		logger:    logger,
	}, nil
}

// Start subscribes the event handlers and starts the session. Messages
// dated before Start are dropped, since some transports replay history
// on login.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("service already started")
	}
	s.started = true
	s.initializedAt = time.Now()
	s.mu.Unlock()

	s.session.Subscribe(im.Handlers{
		OnScan:    s.onScan,
		OnLogin:   s.onLogin,
		OnLogout:  s.onLogout,
		OnMessage: s.onMessage,
		OnReady:   s.onReady,
		OnError:   s.onError,
	})
	if err := s.session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	s.logger.Info("gateway service started")
	return nil
}

// Stop halts the scheduler and shuts the session down.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.mu.Unlock()

	s.scheduler.StopAllJobs()
	if err := s.session.Stop(ctx); err != nil {
		return fmt.Errorf("stop session: %w", err)
	}
	s.logger.Info("gateway service stopped")
	return nil
}

func (s *Service) onScan(qrcode string, status im.ScanStatus) {
	if status == im.ScanStatusWaiting || status == im.ScanStatusTimeout {
		s.logger.Info("scan QR code to log in",
			"status", status,
			"url", "https://wechaty.js.org/qrcode/"+url.QueryEscape(qrcode))
		return
	}
	s.logger.Info("scan status changed", "status", status)
}

func (s *Service) onLogin(user im.Contact) {
	s.logger.Info("logged in", "user", user.Name())
}

func (s *Service) onLogout(user im.Contact, reason string) {
	s.logger.Info("logged out", "user", user.Name(), "reason", reason)
}

func (s *Service) onReady(ctx context.Context) {
	s.logger.Info("session ready, starting scheduled tasks")
	s.scheduler.StartAllJobs()
}

// onMessage routes one inbound message through the registry. Dispatch
// errors are logged here and never crash the event loop.
func (s *Service) onMessage(ctx context.Context, msg im.Message) {
	s.mu.Lock()
	initializedAt := s.initializedAt
	s.mu.Unlock()
	if msg.Date().Before(initializedAt) {
		s.logger.Debug("dropping message predating service start", "date", msg.Date())
		return
	}

	if err := s.registry.Dispatch(ctx, msg); err != nil {
		s.logger.Error("message dispatch failed", "error", err)
	}
}

func (s *Service) onError(err error) {
	s.logger.Error("session error", "error", err)
}
