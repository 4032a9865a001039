package player

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/questlab/player/internal/questlab"
)

// Loader fetches a game definition from the backend.
type Loader interface {
	LoadGame(ctx context.Context, id string) (questlab.Definition, error)
}

// Submitter posts a finished session's result to the backend.
type Submitter interface {
	SubmitResult(ctx context.Context, res questlab.Result) (questlab.Receipt, error)
}

// Recorder receives every submission attempt for local bookkeeping. Optional.
type Recorder interface {
	RecordResult(ctx context.Context, entry questlab.JournalEntry) error
}

// Observer is notified with a fresh snapshot after every state change. It is
// called from the session goroutine and must not block.
type Observer interface {
	Observe(Snapshot)
}

// Snapshot is the externally visible state of a session.
type Snapshot struct {
	SessionID string `json:"sessionId"`
	State
	Receipt     *questlab.Receipt `json:"receipt,omitempty"`
	SubmitError string            `json:"submitError,omitempty"`
}

type Options struct {
	// ID defaults to a random UUID.
	ID        string
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Submitter Submitter
	Recorder  Recorder
	Observer  Observer
}

// Session runs one machine on its own goroutine. Commands, countdown ticks and
// feedback windows are all handled there, one at a time.
type Session struct {
	id        string
	def       questlab.Definition
	clock     clockwork.Clock
	logger    *slog.Logger
	submitter Submitter
	recorder  Recorder
	observer  Observer

	cmds   chan func(context.Context)
	cancel context.CancelFunc
	done   chan struct{}

	lastActive atomic.Int64

	// Owned by the run goroutine.
	m         *Machine
	countdown *countdown
	window    *window
	receipt   *questlab.Receipt
	submitErr error
}

// Open loads the game and starts a session for it. ctx bounds the load and
// the lifetime of the session.
func Open(ctx context.Context, loader Loader, gameID string, opts Options) (*Session, error) {
	def, err := loader.LoadGame(ctx, gameID)
	if err != nil {
		return nil, &LoadError{GameID: gameID, Err: err}
	}
	return Start(ctx, def, opts)
}

// Start begins a session for an already loaded definition.
func Start(ctx context.Context, def questlab.Definition, opts Options) (*Session, error) {
	if opts.Submitter == nil {
		return nil, errors.New("player: submitter is required")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}

	m, err := NewMachine(def, opts.Clock)
	if err != nil {
		return nil, &LoadError{GameID: def.ID, Err: err}
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:        opts.ID,
		def:       def,
		clock:     opts.Clock,
		submitter: opts.Submitter,
		recorder:  opts.Recorder,
		observer:  opts.Observer,
		logger: opts.Logger.With(
			"session_id", opts.ID,
			"game_id", def.ID,
			"game_type", string(def.Type),
		),
		cmds:   make(chan func(context.Context)),
		cancel: cancel,
		done:   make(chan struct{}),
		m:      m,
	}
	s.touch()

	if err := m.Start(); err != nil {
		cancel()
		return nil, err
	}
	s.startClock()
	s.logger.Info("session started")

	go s.run(ctx)
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Done is closed once the session goroutine has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

// IdleSince is the last time a caller touched the session.
func (s *Session) IdleSince() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Handle applies a player input.
func (s *Session) Handle(in Input) (Outcome, error) {
	var out Outcome
	err := s.do(func(ctx context.Context) error {
		o, err := s.m.Handle(in)
		if err != nil {
			return err
		}
		out = o
		if o.Wait > 0 {
			s.window = openWindow(s.clock, o.Wait)
		}
		s.publish()
		return nil
	})
	return out, err
}

// Finish ends the session before its natural end and submits the result.
func (s *Session) Finish() error {
	return s.do(func(ctx context.Context) error {
		if !s.m.Finish() {
			return ErrNotPlaying
		}
		s.finished(ctx)
		s.publish()
		return nil
	})
}

// Restart plays the same game again with fresh scores and a fresh clock.
func (s *Session) Restart() error {
	return s.do(func(ctx context.Context) error {
		if err := s.m.Restart(); err != nil {
			return err
		}
		s.receipt = nil
		s.submitErr = nil
		s.startClock()
		s.logger.Info("session restarted")
		s.publish()
		return nil
	})
}

func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.do(func(context.Context) error {
		snap = s.snapshot()
		return nil
	})
	return snap, err
}

// Close stops the session and waits for its goroutine to exit. Pending timers
// are released; no state changes happen afterwards.
func (s *Session) Close() {
	s.cancel()
	<-s.done
}

func (s *Session) do(fn func(context.Context) error) error {
	errc := make(chan error, 1)
	select {
	case s.cmds <- func(ctx context.Context) { errc <- fn(ctx) }:
	case <-s.done:
		return ErrClosed
	}
	s.touch()
	return <-errc
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.release()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("session closed", "phase", string(s.m.Phase()))
			return
		case cmd := <-s.cmds:
			cmd(ctx)
		case <-s.countdown.C():
			s.countdown.Next()
			if s.m.Tick() {
				s.logger.Info("time expired")
				s.finished(ctx)
			}
			s.publish()
		case <-s.window.C():
			s.window = nil
			if s.m.Resume() {
				s.finished(ctx)
			}
			s.publish()
		}
	}
}

func (s *Session) startClock() {
	s.countdown.Stop()
	s.countdown = nil
	if s.m.Timed() {
		s.countdown = startCountdown(s.clock)
	}
}

func (s *Session) release() {
	s.countdown.Stop()
	s.countdown = nil
	s.window.Stop()
	s.window = nil
}

// finished runs once per play-through, right after the machine reported its
// one-way transition to PhaseFinished.
func (s *Session) finished(ctx context.Context) {
	s.release()

	res := *s.m.Result()
	entry := questlab.JournalEntry{
		SessionID:   s.id,
		GameID:      res.GameID,
		GameType:    s.def.Type,
		Score:       res.Score,
		BonusPoints: res.BonusPoints,
		TimeTaken:   res.TimeTaken,
		FinishedAt:  s.clock.Now().UTC(),
	}

	receipt, err := s.submitter.SubmitResult(ctx, res)
	if err != nil {
		s.submitErr = &SubmitError{GameID: res.GameID, Err: err}
		entry.SubmitError = err.Error()
		s.logger.Error("submitting result failed", "score", res.Score, "error", err)
	} else {
		s.receipt = &receipt
		points := receipt.PointsEarned
		entry.PointsEarned = &points
		s.logger.Info("result submitted",
			"score", res.Score,
			"time_taken", res.TimeTaken,
			"points_earned", receipt.PointsEarned,
		)
	}

	if s.recorder != nil {
		if err := s.recorder.RecordResult(ctx, entry); err != nil {
			s.logger.Warn("recording result failed", "error", err)
		}
	}
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		SessionID: s.id,
		State:     s.m.State(),
		Receipt:   s.receipt,
	}
	if s.submitErr != nil {
		snap.SubmitError = s.submitErr.Error()
	}
	return snap
}

func (s *Session) publish() {
	if s.observer != nil {
		s.observer.Observe(s.snapshot())
	}
}

func (s *Session) touch() {
	s.lastActive.Store(s.clock.Now().UnixNano())
}

// SubmitErr returns the failure from the last submission, if any.
func (s *Session) SubmitErr() error {
	var err error
	if doErr := s.do(func(context.Context) error {
		err = s.submitErr
		return nil
	}); doErr != nil {
		return doErr
	}
	return err
}
