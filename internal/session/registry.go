package session

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"gruebox/internal/engine"
)

var (
	// ErrNotFound is the normal result for an unknown or expired session
	// identifier. Callers translate it into a structured response; it never
	// aborts the calling agent.
	ErrNotFound = errors.New("session not found")

	// ErrBusy means another call currently holds this session's engine.
	ErrBusy = errors.New("session busy")
)

// DefaultTimeout matches the upstream behavior of expiring sessions after
// an hour of inactivity.
const DefaultTimeout = time.Hour

// Registry is the process-scoped map of opaque session identifiers to live
// sessions. The map itself is safe for concurrent use; each session's
// engine stays exclusively owned and is reached only through With. Expiry
// is amortized: every registry operation starts with a sweep, so no
// background timer is needed.
type Registry struct {
	factory engine.Factory
	timeout time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry builds a registry that constructs engines through factory and
// expires sessions idle longer than timeout (DefaultTimeout when <= 0).
func NewRegistry(factory engine.Factory, timeout time.Duration, logger *slog.Logger) *Registry {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		factory:  factory,
		timeout:  timeout,
		logger:   logger,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// Create instantiates a fresh engine for gameName, resets it to produce the
// initial snapshot, and registers the session under a newly generated
// identifier. Identifiers are never reused.
func (r *Registry) Create(gameName string) (*Session, Snapshot, error) {
	r.SweepExpired()

	eng, err := r.factory(gameName)
	if err != nil {
		return nil, Snapshot{}, err
	}

	sess := &Session{
		ID:         uuid.NewString(),
		GameName:   gameName,
		CreatedAt:  r.now(),
		lastAccess: r.now(),
		eng:        eng,
		logger:     r.logger,
		visited:    make(map[string]struct{}),
		milestones: make(map[int]struct{}),
	}

	snap, err := sess.Reset()
	if err != nil {
		_ = eng.Close()
		return nil, Snapshot{}, err
	}

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	total := len(r.sessions)
	r.mu.Unlock()

	r.logger.Info("session created", "session", sess.ID, "game", gameName, "active", total)
	return sess, snap, nil
}

// Resolve looks up a session and refreshes its access time. A missing or
// expired identifier yields ErrNotFound.
func (r *Registry) Resolve(id string) (*Session, error) {
	r.SweepExpired()

	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	sess.lastAccess = r.now()
	return sess, nil
}

// With resolves id and runs fn inside the session's critical section.
// A concurrent caller on the same session is rejected with ErrBusy rather
// than queueing; calls on different sessions proceed independently.
func (r *Registry) With(id string, fn func(*Session) error) error {
	sess, err := r.Resolve(id)
	if err != nil {
		return err
	}
	if !sess.mu.TryLock() {
		return ErrBusy
	}
	defer sess.mu.Unlock()
	return fn(sess)
}

// Remove destroys a session and releases its engine. It reports whether the
// session existed. Removal waits for any in-flight engine call to finish so
// the interpreter is never closed mid-call.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if err := sess.eng.Close(); err != nil {
		r.logger.Warn("engine close failed", "session", id, "error", err)
	}
	r.logger.Info("session removed", "session", id, "game", sess.GameName)
	return true
}

// SweepExpired removes every session idle longer than the registry timeout
// and returns the count removed.
func (r *Registry) SweepExpired() int {
	now := r.now()

	r.mu.Lock()
	var expired []*Session
	for id, sess := range r.sessions {
		if now.Sub(sess.lastAccess) > r.timeout {
			expired = append(expired, sess)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, sess := range expired {
		sess.mu.Lock()
		if err := sess.eng.Close(); err != nil {
			r.logger.Warn("engine close failed", "session", sess.ID, "error", err)
		}
		sess.mu.Unlock()
	}
	if len(expired) > 0 {
		r.logger.Info("expired sessions swept", "count", len(expired))
	}
	return len(expired)
}

// Count reports the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
