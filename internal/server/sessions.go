package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/questlab/player/internal/backend"
	"github.com/questlab/player/internal/player"
	"github.com/questlab/player/internal/questlab"
)

var errShuttingDown = errors.New("server is shutting down")

type SessionsConfig struct {
	Loader    player.Loader
	Submitter player.Submitter
	// Recorder is optional.
	Recorder player.Recorder
	Broker   *Broker
	Clock    clockwork.Clock
	Logger   *slog.Logger
	// IdleTTL is how long an untouched session survives. Zero disables reaping.
	IdleTTL time.Duration
}

// Sessions owns every live game session. Sessions outlive the request that
// created them and end on Remove, Reap or Close.
type Sessions struct {
	cfg    SessionsConfig
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.RWMutex
	sessions map[string]*player.Session
	closed   bool
}

func NewSessions(cfg SessionsConfig) *Sessions {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Broker == nil {
		cfg.Broker = NewBroker()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Sessions{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*player.Session),
	}
}

// Create loads a game with the player's token and starts a session for it.
// The token stays attached for the result submission.
func (s *Sessions) Create(ctx context.Context, gameID, token string) (*player.Session, error) {
	def, err := s.cfg.Loader.LoadGame(backend.WithToken(ctx, token), gameID)
	if err != nil {
		return nil, &player.LoadError{GameID: gameID, Err: err}
	}
	// Results are submitted for the game the player asked for.
	def.ID = gameID

	sess, err := s.start(def, token)
	var le *player.LoadError
	if errors.As(err, &le) {
		s.invalidate(ctx, gameID)
	}
	return sess, err
}

// invalidator is implemented by loaders that cache definitions.
type invalidator interface {
	Invalidate(ctx context.Context, id string) error
}

// invalidate drops a cached definition the player could not run, so the next
// attempt reads the backend again.
func (s *Sessions) invalidate(ctx context.Context, gameID string) {
	inv, ok := s.cfg.Loader.(invalidator)
	if !ok {
		return
	}
	if err := inv.Invalidate(ctx, gameID); err != nil {
		s.cfg.Logger.Warn("invalidating cached definition failed", "game_id", gameID, "error", err)
	}
}

func (s *Sessions) start(def questlab.Definition, token string) (*player.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errShuttingDown
	}

	id := uuid.NewString()
	sess, err := player.Start(backend.WithToken(s.ctx, token), def, player.Options{
		ID:        id,
		Clock:     s.cfg.Clock,
		Logger:    s.cfg.Logger,
		Submitter: s.cfg.Submitter,
		Recorder:  s.cfg.Recorder,
		Observer:  sessionFeed{broker: s.cfg.Broker, id: id},
	})
	if err != nil {
		return nil, err
	}
	s.sessions[id] = sess
	return sess, nil
}

// Broker carries the snapshots of every session in the registry.
func (s *Sessions) Broker() *Broker { return s.cfg.Broker }

func (s *Sessions) Get(id string) (*player.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

// Remove stops a session without submitting anything. Pending timers die
// with it.
func (s *Sessions) Remove(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.Close()
		s.cfg.Logger.Info("session removed", "session_id", id)
	}
	return ok
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Reap removes sessions idle for longer than idle and returns how many.
func (s *Sessions) Reap(idle time.Duration) int {
	now := s.cfg.Clock.Now()

	s.mu.Lock()
	var stale []*player.Session
	for id, sess := range s.sessions {
		if now.Sub(sess.IdleSince()) > idle {
			stale = append(stale, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()

	for _, sess := range stale {
		sess.Close()
	}
	if len(stale) > 0 {
		s.cfg.Logger.Info("reaped idle sessions", "count", len(stale))
	}
	return len(stale)
}

// Run reaps idle sessions until ctx is done.
func (s *Sessions) Run(ctx context.Context) error {
	if s.cfg.IdleTTL <= 0 {
		<-ctx.Done()
		return nil
	}

	interval := s.cfg.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := s.cfg.Clock.NewTimer(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.Chan():
			s.Reap(s.cfg.IdleTTL)
			t.Reset(interval)
		}
	}
}

// Close ends every session and refuses new ones.
func (s *Sessions) Close() {
	s.mu.Lock()
	s.closed = true
	all := s.sessions
	s.sessions = make(map[string]*player.Session)
	s.mu.Unlock()

	s.cancel()
	for _, sess := range all {
		<-sess.Done()
	}
}
