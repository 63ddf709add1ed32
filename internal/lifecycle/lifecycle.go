// Package lifecycle shuts down long-lived components in reverse order of
// start-up.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultTimeout bounds a whole graceful shutdown.
const DefaultTimeout = 5 * time.Second

// Component is something that needs cleanup on exit.
type Component interface {
	// Name returns the component name for logging.
	Name() string

	// Shutdown releases the component gracefully.
	Shutdown(ctx context.Context) error

	// ForceStop is called when Shutdown fails or the deadline passes.
	ForceStop() error
}

// Manager coordinates shutdown of registered components.
type Manager struct {
	mu         sync.Mutex
	components []Component
	isShutdown bool
	timeout    time.Duration
}

// NewManager creates a manager. A non-positive timeout uses DefaultTimeout.
func NewManager(timeout time.Duration) *Manager {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Manager{timeout: timeout}
}

// Register adds a component. Components registered after Shutdown has
// started are ignored.
func (m *Manager) Register(c Component) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isShutdown {
		log.Warn("Cannot register component during shutdown", "component", c.Name())
		return
	}
	m.components = append(m.components, c)
	log.Debug("Registered lifecycle component", "name", c.Name())
}

// Shutdown stops every component in reverse order of registration. A
// component whose graceful shutdown fails, or that is reached after the
// deadline, is force-stopped. Calling Shutdown again is a no-op.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.isShutdown {
		m.mu.Unlock()
		return nil
	}
	m.isShutdown = true
	components := m.components
	m.mu.Unlock()

	log.Debug("Starting graceful shutdown", "components", len(components))

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	var errs []error
	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]

		err := ctx.Err()
		if err == nil {
			err = c.Shutdown(ctx)
		}
		if err == nil {
			log.Debug("Component stopped", "name", c.Name())
			continue
		}

		log.Warn("Component graceful shutdown failed", "name", c.Name(), "err", err)
		if ferr := c.ForceStop(); ferr != nil {
			log.Error("Component force stop failed", "name", c.Name(), "err", ferr)
			errs = append(errs, fmt.Errorf("%s: %w", c.Name(), ferr))
		}
	}

	return errors.Join(errs...)
}

// Func adapts a pair of functions to a Component.
type Func struct {
	Label string
	Stop  func(ctx context.Context) error
	Force func() error
}

// Name implements Component.
func (f Func) Name() string { return f.Label }

// Shutdown implements Component.
func (f Func) Shutdown(ctx context.Context) error {
	if f.Stop == nil {
		return nil
	}
	return f.Stop(ctx)
}

// ForceStop implements Component.
func (f Func) ForceStop() error {
	if f.Force == nil {
		return nil
	}
	return f.Force()
}
