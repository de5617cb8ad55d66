package capture

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_StartStop(t *testing.T) {
	backend := &fakeBackend{}
	c := NewController(KindAudio, backend, Constraints{DeviceID: "hw:0"})
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	state := c.State()
	require.NotNil(t, state.Session)
	assert.Nil(t, state.Err)
	assert.False(t, state.Acquiring)
	assert.True(t, state.Session.IsLive())
	assert.Equal(t, "hw:0", state.Session.Track().Settings().DeviceID)

	c.Stop()
	assert.Nil(t, c.State().Session)
	assert.Zero(t, backend.liveCount())
}

func TestController_StopWithoutSession(t *testing.T) {
	c := NewController(KindVideo, &fakeBackend{}, Constraints{})
	assert.NotPanics(t, func() {
		c.Stop()
		c.Stop()
	})
	assert.Nil(t, c.State().Session)
}

func TestController_PermissionDeniedThenRetry(t *testing.T) {
	backend := &fakeBackend{errs: []error{NewNamedError("NotAllowedError", "Permission denied by user")}}
	c := NewController(KindAudio, backend, Constraints{})
	ctx := context.Background()

	err := c.Start(ctx)
	require.Error(t, err)
	var ce *CaptureError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, PermissionDenied, ce.Kind)

	state := c.State()
	assert.Nil(t, state.Session)
	require.NotNil(t, state.Err)
	assert.Equal(t, PermissionDenied, state.Err.Kind)

	// User grants permission and clicks retry.
	require.NoError(t, c.Start(ctx))
	state = c.State()
	assert.NotNil(t, state.Session)
	assert.Nil(t, state.Err)
}

func TestController_RestartReleasesPreviousSession(t *testing.T) {
	backend := &fakeBackend{}
	c := NewController(KindVideo, backend, Constraints{})
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	first := c.State().Session
	require.NoError(t, c.Restart(ctx))
	second := c.State().Session

	require.NotNil(t, second)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.IsLive(), "previous session must be stopped")
	assert.Equal(t, 1, backend.liveCount())
}

func TestController_AtMostOneLiveSession(t *testing.T) {
	backend := &fakeBackend{}
	c := NewController(KindAudio, backend, Constraints{})
	ctx := context.Background()

	ops := []string{"start", "start", "stop", "stop", "start", "start", "start", "stop", "start"}
	for _, op := range ops {
		switch op {
		case "start":
			require.NoError(t, c.Start(ctx))
		case "stop":
			c.Stop()
		}
		assert.LessOrEqual(t, backend.liveCount(), 1, "after %s", op)
	}
}

func TestController_ConcurrentStartsShareAcquisition(t *testing.T) {
	backend := &fakeBackend{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 8),
	}
	c := NewController(KindAudio, backend, Constraints{})
	ctx := context.Background()

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, c.Start(ctx))
		}()
	}

	<-backend.entered
	assert.True(t, c.State().Acquiring)
	time.Sleep(50 * time.Millisecond)
	close(backend.gate)
	wg.Wait()

	assert.Equal(t, 1, backend.callCount())
	assert.Equal(t, 1, backend.liveCount())
}

func TestController_CloseDuringPendingAcquisition(t *testing.T) {
	backend := &fakeBackend{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := NewController(KindVideo, backend, Constraints{})

	done := make(chan error, 1)
	go func() {
		done <- c.Start(context.Background())
	}()

	<-backend.entered
	c.Close()
	close(backend.gate)

	assert.ErrorIs(t, <-done, ErrControllerClosed)
	assert.Nil(t, c.State().Session)

	sessions := backend.allSessions()
	require.Len(t, sessions, 1)
	for _, track := range sessions[0].Tracks {
		assert.True(t, track.Stopped(), "track %s leaked after teardown", track.ID())
	}
}

func TestController_StopDuringPendingAcquisition(t *testing.T) {
	backend := &fakeBackend{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := NewController(KindAudio, backend, Constraints{})

	done := make(chan error, 1)
	go func() {
		done <- c.Start(context.Background())
	}()

	<-backend.entered
	c.Stop()
	assert.False(t, c.State().Acquiring)
	close(backend.gate)

	assert.NoError(t, <-done)
	assert.Nil(t, c.State().Session)
	assert.Zero(t, backend.liveCount())
}

func TestController_StartAfterStopDuringPendingAcquisition(t *testing.T) {
	backend := &fakeBackend{
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	c := NewController(KindAudio, backend, Constraints{})

	first := make(chan error, 1)
	go func() {
		first <- c.Start(context.Background())
	}()
	<-backend.entered

	c.Stop()

	second := make(chan error, 1)
	go func() {
		second <- c.Start(context.Background())
	}()
	<-backend.entered
	close(backend.gate)

	assert.NoError(t, <-first)
	require.NoError(t, <-second)

	state := c.State()
	require.NotNil(t, state.Session)
	assert.True(t, state.Session.IsLive())
	assert.Nil(t, state.Err)
	assert.False(t, state.Acquiring)
	assert.Equal(t, 2, backend.callCount())
	assert.Equal(t, 1, backend.liveCount())
}

func TestController_StartAfterClose(t *testing.T) {
	backend := &fakeBackend{}
	c := NewController(KindAudio, backend, Constraints{})
	require.NoError(t, c.Start(context.Background()))

	c.Close()
	c.Close()

	assert.Zero(t, backend.liveCount())
	assert.ErrorIs(t, c.Start(context.Background()), ErrControllerClosed)
	assert.Equal(t, 1, backend.callCount())
}

func TestController_OnChange(t *testing.T) {
	backend := &fakeBackend{}
	c := NewController(KindAudio, backend, Constraints{})

	var calls atomic.Int32
	c.OnChange(func() {
		// Listeners may read state without deadlocking.
		_ = c.State()
		calls.Add(1)
	})

	require.NoError(t, c.Start(context.Background()))
	afterStart := calls.Load()
	assert.GreaterOrEqual(t, afterStart, int32(2), "acquiring and acquired")

	c.Stop()
	assert.Greater(t, calls.Load(), afterStart)
}

func TestController_SetConstraintsKeepsKind(t *testing.T) {
	backend := &fakeBackend{}
	c := NewController(KindVideo, backend, Constraints{})
	c.SetConstraints(Constraints{Kind: KindAudio, DeviceID: "cam-2"})

	require.NoError(t, c.Start(context.Background()))
	sess := c.State().Session
	assert.Equal(t, KindVideo, sess.Kind)
	assert.Equal(t, "cam-2", sess.Track().Settings().DeviceID)
}
