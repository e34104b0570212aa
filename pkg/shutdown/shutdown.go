// Package shutdown runs registered cleanup hooks once, newest first.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/psantana5/buildtime-profiler/pkg/logging"
)

// Hook is a named cleanup step
type Hook struct {
	Name string
	Fn   func(context.Context) error
}

// Manager handles graceful shutdown
type Manager struct {
	hooks    []Hook
	mu       sync.Mutex
	timeout  time.Duration
	doneChan chan struct{}
	once     sync.Once
	errs     error
	logger   *logging.Logger
}

// New creates a new shutdown manager
func New(timeout time.Duration, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Manager{
		timeout:  timeout,
		doneChan: make(chan struct{}),
		logger:   logger.WithComponent("shutdown"),
	}
}

// Register adds a shutdown hook. Hooks run in reverse order (LIFO).
func (m *Manager) Register(name string, fn func(context.Context) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, Hook{Name: name, Fn: fn})
}

// Done returns a channel that is closed when shutdown is initiated
func (m *Manager) Done() <-chan struct{} {
	return m.doneChan
}

// Shutdown runs every hook once and returns their joined errors. Later
// calls return the same result.
func (m *Manager) Shutdown() error {
	m.once.Do(func() {
		close(m.doneChan)

		m.mu.Lock()
		hooks := append([]Hook(nil), m.hooks...)
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
		defer cancel()

		var errs []error
		for i := len(hooks) - 1; i >= 0; i-- {
			h := hooks[i]
			if err := h.Fn(ctx); err != nil {
				m.logger.Warn("shutdown hook failed", map[string]interface{}{"hook": h.Name, "error": err.Error()})
				errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
				continue
			}
			m.logger.Debug("shutdown hook done", map[string]interface{}{"hook": h.Name})
		}
		m.errs = errors.Join(errs...)
		m.logger.Info("graceful shutdown complete")
	})
	return m.errs
}

// WaitWithContext blocks until SIGINT/SIGTERM or ctx is cancelled, then
// shuts down. A cancelled ctx still runs the hooks.
func (m *Manager) WaitWithContext(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		m.logger.Info("received signal, shutting down", map[string]interface{}{"signal": sig.String()})
	case <-ctx.Done():
		m.logger.Info("context cancelled, shutting down")
	}
	return m.Shutdown()
}

// StopHTTPServer creates a hook for an http.Server
func StopHTTPServer(server interface{ Shutdown(context.Context) error }) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
		return nil
	}
}
