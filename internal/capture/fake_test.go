package capture

import (
	"context"
	"sync"
)

// fakeBackend hands out sessions with plain tracks. Each call consumes the
// next entry of errs; calls beyond errs succeed.
type fakeBackend struct {
	mu       sync.Mutex
	errs     []error
	calls    int
	gate     chan struct{}
	entered  chan struct{}
	sessions []*Session
}

func (f *fakeBackend) Acquire(ctx context.Context, c Constraints) (*Session, error) {
	f.mu.Lock()
	idx := f.calls
	f.calls++
	var err error
	if idx < len(f.errs) {
		err = f.errs[idx]
	}
	gate := f.gate
	entered := f.entered
	f.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	sess := NewSession(c.Kind, NewBaseTrack(c.Kind, Settings{DeviceID: c.DeviceID}, nil))
	f.mu.Lock()
	f.sessions = append(f.sessions, sess)
	f.mu.Unlock()
	return sess, nil
}

func (f *fakeBackend) Devices(kind Kind) ([]Device, error) {
	return []Device{{ID: "default", Name: "Default", Kind: kind}}, nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeBackend) allSessions() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*Session(nil), f.sessions...)
}

func (f *fakeBackend) liveCount() int {
	n := 0
	for _, s := range f.allSessions() {
		if s.IsLive() {
			n++
		}
	}
	return n
}
