package session

import (
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gruebox/internal/engine"
	"gruebox/internal/engine/enginetest"
)

func newTestRegistry(t *testing.T, timeout time.Duration) (*Registry, map[string]*enginetest.Fake) {
	t.Helper()
	engines := make(map[string]*enginetest.Fake)
	factory := func(game string) (engine.Engine, error) {
		if game == "broken" {
			return nil, engine.ErrLoadFailed
		}
		fake := &enginetest.Fake{ResetObservation: "You are here.", Max: 100}
		engines[game] = fake
		return fake, nil
	}
	return NewRegistry(factory, timeout, slog.Default()), engines
}

func TestCreateResolveRemove(t *testing.T) {
	reg, engines := newTestRegistry(t, time.Minute)

	sess, snap, err := reg.Create("zork1")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "You are here.", snap.Observation)
	assert.Equal(t, 1, reg.Count())

	got, err := reg.Resolve(sess.ID)
	require.NoError(t, err)
	assert.Same(t, sess, got)

	assert.True(t, reg.Remove(sess.ID))
	assert.False(t, reg.Remove(sess.ID), "second remove reports not found")
	assert.True(t, engines["zork1"].Closed, "engine must be released on remove")

	_, err = reg.Resolve(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateNeverReusesIdentifiers(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute)

	a, _, err := reg.Create("zork1")
	require.NoError(t, err)
	b, _, err := reg.Create("zork1")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.NotSame(t, a.Engine(), b.Engine(), "each session owns its own engine")
}

func TestCreateLoadFailure(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute)

	_, _, err := reg.Create("broken")
	assert.ErrorIs(t, err, engine.ErrLoadFailed)
	assert.Equal(t, 0, reg.Count(), "failed create must not leak a session")
}

func TestExpiryBoundary(t *testing.T) {
	const timeout = time.Minute
	reg, engines := newTestRegistry(t, timeout)

	now := time.Unix(1000, 0)
	reg.now = func() time.Time { return now }

	sess, _, err := reg.Create("zork1")
	require.NoError(t, err)

	// One second inside the window: still alive.
	now = now.Add(timeout - time.Second)
	assert.Equal(t, 0, reg.SweepExpired())
	_, err = reg.Resolve(sess.ID)
	require.NoError(t, err)

	// Resolve refreshed the access time; push past it.
	now = now.Add(timeout + time.Second)
	assert.Equal(t, 1, reg.SweepExpired())
	assert.True(t, engines["zork1"].Closed)

	_, err = reg.Resolve(sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveRefreshesAccessTime(t *testing.T) {
	const timeout = time.Minute
	reg, _ := newTestRegistry(t, timeout)

	now := time.Unix(1000, 0)
	reg.now = func() time.Time { return now }

	sess, _, err := reg.Create("zork1")
	require.NoError(t, err)

	// Keep touching the session at half-timeout intervals; it must survive
	// well past the raw timeout.
	for i := 0; i < 5; i++ {
		now = now.Add(timeout / 2)
		_, err = reg.Resolve(sess.ID)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, reg.Count())
}

func TestWithRejectsConcurrentCallsOnSameSession(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute)
	sess, _, err := reg.Create("zork1")
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = reg.With(sess.ID, func(*Session) error {
			close(entered)
			<-release
			return nil
		})
	}()

	<-entered
	err = reg.With(sess.ID, func(*Session) error { return nil })
	assert.ErrorIs(t, err, ErrBusy)
	close(release)
	wg.Wait()

	// Once released the session is usable again.
	err = reg.With(sess.ID, func(*Session) error { return nil })
	assert.NoError(t, err)
}

func TestWithAllowsIndependentSessions(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute)
	a, _, err := reg.Create("zork1")
	require.NoError(t, err)
	b, _, err := reg.Create("advent")
	require.NoError(t, err)

	release := make(chan struct{})
	entered := make(chan struct{})
	go func() {
		_ = reg.With(a.ID, func(*Session) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	defer close(release)

	// A held critical section on session A must not block session B.
	err = reg.With(b.ID, func(*Session) error { return nil })
	assert.NoError(t, err)
}

func TestWithPropagatesCallbackError(t *testing.T) {
	reg, _ := newTestRegistry(t, time.Minute)
	sess, _, err := reg.Create("zork1")
	require.NoError(t, err)

	boom := errors.New("boom")
	err = reg.With(sess.ID, func(*Session) error { return boom })
	assert.ErrorIs(t, err, boom)
}
