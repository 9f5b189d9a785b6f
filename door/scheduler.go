package door

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrDuplicateSession is returned when adding a session under an
	// identifier which is already in use.
	ErrDuplicateSession = errors.New("duplicate session")

	// ErrUnknownSession is returned for identifiers we don't hold.
	ErrUnknownSession = errors.New("unknown session")
)

// Scheduler ticks a collection of sessions, one per connected user.
//
// Sessions are ticked in parallel, each by at most one goroutine at a
// time, and are released once they terminate.
type Scheduler struct {
	// OnRelease is called, outside of any lock, for each session which
	// is removed, whether because it terminated or via Remove.
	OnRelease func(id string, s *Session)

	mu       sync.Mutex
	sessions map[string]*Session
	logger   *slog.Logger
	limit    int
}

// NewScheduler returns an empty scheduler.
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &Scheduler{
		sessions: make(map[string]*Session),
		logger:   logger,
		limit:    runtime.GOMAXPROCS(0),
	}
}

// Add registers a session, starting it if it hasn't been already.
func (sc *Scheduler) Add(id string, s *Session) error {
	sc.mu.Lock()
	if _, ok := sc.sessions[id]; ok {
		sc.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateSession, id)
	}
	sc.sessions[id] = s
	sc.mu.Unlock()

	if s.State() == Created {
		if err := s.Start(); err != nil {
			sc.mu.Lock()
			delete(sc.sessions, id)
			sc.mu.Unlock()
			return err
		}
	}

	sc.logger.Debug("Session added", slog.String("id", id))
	return nil
}

// Remove terminates and releases a session.
func (sc *Scheduler) Remove(id string) error {
	sc.mu.Lock()
	s, ok := sc.sessions[id]
	delete(sc.sessions, id)
	sc.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	s.Terminate()
	sc.release(id, s)
	return nil
}

// Get returns the session with the given identifier.
func (sc *Scheduler) Get(id string) (*Session, bool) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	s, ok := sc.sessions[id]
	return s, ok
}

// Len returns the number of sessions held.
func (sc *Scheduler) Len() int {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return len(sc.sessions)
}

// IDs returns the identifiers of the sessions held, sorted.
func (sc *Scheduler) IDs() []string {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	ids := make([]string, 0, len(sc.sessions))
	for id := range sc.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Input passes input to the named session.
func (sc *Scheduler) Input(id string, p []byte) error {
	s, ok := sc.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	s.Input(p)
	return nil
}

// Tick runs one slice of every session, and releases those which have
// terminated.
func (sc *Scheduler) Tick() {
	sc.mu.Lock()
	snapshot := make(map[string]*Session, len(sc.sessions))
	for id, s := range sc.sessions {
		snapshot[id] = s
	}
	sc.mu.Unlock()

	var (
		finished []string
		fmu      sync.Mutex
	)

	var g errgroup.Group
	g.SetLimit(sc.limit)
	for id, s := range snapshot {
		id, s := id, s
		g.Go(func() error {
			if s.Tick().Terminal() {
				fmu.Lock()
				finished = append(finished, id)
				fmu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, id := range finished {
		sc.mu.Lock()
		s, ok := sc.sessions[id]
		if ok && s == snapshot[id] {
			delete(sc.sessions, id)
		}
		sc.mu.Unlock()

		if ok && s == snapshot[id] {
			sc.logger.Debug("Session finished",
				slog.String("id", id),
				slog.String("state", s.State().String()))
			sc.release(id, s)
		}
	}
}

// Run ticks every session once per interval, until ctx is canceled, at
// which point all remaining sessions are terminated.
func (sc *Scheduler) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			for _, id := range sc.IDs() {
				_ = sc.Remove(id)
			}
			return ctx.Err()
		case <-t.C:
			sc.Tick()
		}
	}
}

func (sc *Scheduler) release(id string, s *Session) {
	if sc.OnRelease != nil {
		sc.OnRelease(id, s)
	}
}
