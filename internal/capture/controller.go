package capture

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrControllerClosed is returned by Start after Close.
var ErrControllerClosed = errors.New("capture controller closed")

// errEmptySession is classified when a backend reports success without a session.
var errEmptySession = errors.New("backend returned no session")

// State is a point-in-time view of a controller.
type State struct {
	Session   *Session
	Err       *CaptureError
	Acquiring bool
}

// Controller owns hardware acquisition for one device type within one tool
// instance. At most one session is live at any time: Start stops the
// previous session before requesting a new one, and a session that arrives
// after Stop or Close is released immediately instead of being stored.
// It is safe for concurrent use.
type Controller struct {
	kind    Kind
	backend Backend
	group   singleflight.Group

	mu          sync.Mutex
	constraints Constraints
	session     *Session
	lastErr     *CaptureError
	acquiring   bool
	closed      bool
	generation  uint64
	stops       uint64 // bumped by Stop; keys the start flight
	listeners   []func()
}

// NewController returns a controller that acquires sessions of the given
// kind from backend.
func NewController(kind Kind, backend Backend, constraints Constraints) *Controller {
	constraints.Kind = kind
	return &Controller{
		kind:        kind,
		backend:     backend,
		constraints: constraints,
	}
}

// Kind returns the device type the controller acquires.
func (c *Controller) Kind() Kind {
	return c.kind
}

// SetConstraints replaces the constraints used by the next Start.
func (c *Controller) SetConstraints(constraints Constraints) {
	constraints.Kind = c.kind
	c.mu.Lock()
	defer c.mu.Unlock()
	c.constraints = constraints
}

// OnChange registers fn to be called after every state change. Listeners
// run on the goroutine that caused the change, without locks held.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// State returns the current session, error and acquisition flag.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Session:   c.session,
		Err:       c.lastErr,
		Acquiring: c.acquiring,
	}
}

// Start stops any live session and acquires a new one. Concurrent calls
// share a single acquisition. On failure no session is stored and the
// classified *CaptureError is both recorded and returned. Start never
// retries on its own.
//
// A Start issued after Stop never joins an acquisition that Stop already
// discarded; it begins a new one.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	key := strconv.FormatUint(c.stops, 10)
	c.mu.Unlock()

	_, err, _ := c.group.Do(key, func() (any, error) {
		return nil, c.start(ctx)
	})
	return err
}

// Restart is Start; the previous session is always released first.
func (c *Controller) Restart(ctx context.Context) error {
	return c.Start(ctx)
}

func (c *Controller) start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrControllerClosed
	}
	prior := c.session
	c.session = nil
	c.acquiring = true
	c.generation++
	gen := c.generation
	constraints := c.constraints
	c.mu.Unlock()

	c.release(prior, "restart")
	c.notify()

	slog.Info("requesting capture", "kind", c.kind, "device", constraints.DeviceID)
	started := time.Now()
	sess, err := c.backend.Acquire(ctx, constraints)
	if err == nil && sess == nil {
		err = errEmptySession
	}

	c.mu.Lock()
	superseded := c.closed || c.generation != gen
	if !superseded {
		c.acquiring = false
	}
	closed := c.closed
	if !superseded {
		if err != nil {
			c.lastErr = ClassifyError(err)
		} else {
			c.session = sess
			c.lastErr = nil
		}
	}
	ce := c.lastErr
	c.mu.Unlock()

	if superseded {
		if err == nil {
			recordSessionOpened(c.kind)
			c.release(sess, "released after teardown")
		} else {
			slog.Debug("discarding result of stopped acquisition", "kind", c.kind, "error", err)
		}
		c.notify()
		if closed {
			return ErrControllerClosed
		}
		return nil
	}

	if err != nil {
		recordAcquisition(c.kind, string(ce.Kind), started)
		slog.Warn("capture failed", "kind", c.kind, "error_kind", ce.Kind, "error", err)
		c.notify()
		return ce
	}

	recordAcquisition(c.kind, outcomeOK, started)
	recordSessionOpened(c.kind)
	slog.Info("capture started", "kind", c.kind, "session", sess.ID, "tracks", len(sess.Tracks))
	c.notify()
	return nil
}

// Stop stops every track of the current session and clears it. An
// acquisition in flight is released as soon as it resolves. Stop is a no-op
// when there is no session.
func (c *Controller) Stop() {
	c.mu.Lock()
	sess := c.session
	c.session = nil
	c.stops++
	pending := c.acquiring
	if pending {
		c.generation++
		c.acquiring = false
	}
	c.mu.Unlock()

	if sess == nil {
		if pending {
			c.notify()
		}
		return
	}
	c.release(sess, "stop")
	c.notify()
}

// Close tears the controller down. It releases the live session, makes any
// pending acquisition release its result on arrival, and drops listeners.
// Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.generation++
	c.acquiring = false
	sess := c.session
	c.session = nil
	c.listeners = nil
	c.mu.Unlock()

	c.release(sess, "teardown")
}

// release stops all tracks of sess, logging failures.
func (c *Controller) release(sess *Session, reason string) {
	if sess == nil {
		return
	}
	if err := sess.Stop(); err != nil {
		slog.Warn("failed to stop capture session", "kind", c.kind, "session", sess.ID, "reason", reason, "error", err)
	} else {
		slog.Info("capture stopped", "kind", c.kind, "session", sess.ID, "reason", reason)
	}
	recordSessionClosed(c.kind)
}

// notify calls the registered listeners.
func (c *Controller) notify() {
	c.mu.Lock()
	listeners := make([]func(), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
