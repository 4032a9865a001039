// Package player runs QuestLab mini-game sessions: one state machine per game
// type, a countdown clock, and exactly-once result submission.
package player

import (
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/questlab/player/internal/questlab"
)

type Phase string

const (
	PhaseLoading  Phase = "loading"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

const (
	PointsPerItem = 10

	FeedbackDelay = 1500 * time.Millisecond
	HintDelay     = 2 * time.Second
	EndingDelay   = 2 * time.Second
)

type FeedbackKind string

const (
	FeedbackCorrect   FeedbackKind = "correct"
	FeedbackIncorrect FeedbackKind = "incorrect"
)

type Feedback struct {
	Kind    FeedbackKind `json:"kind"`
	Message string       `json:"message"`
}

// Input is one of Answer, Option, Choose or Click.
type Input interface{ isInput() }

// Answer is free text for a skill builder problem.
type Answer struct{ Text string }

// Option selects one of a quiz battle question's options.
type Option struct{ Value string }

// Choose picks a story quest choice by position in the current scene.
type Choose struct{ Index int }

// Click is a map position in percent of the map surface.
type Click struct{ X, Y float64 }

func (Answer) isInput() {}
func (Option) isInput() {}
func (Choose) isInput() {}
func (Click) isInput()  {}

// Outcome describes how the machine reacted to an input. When Wait is non-zero
// the caller must call Resume once it has elapsed; input is refused until then.
type Outcome struct {
	Correct  bool          `json:"correct"`
	Feedback *Feedback     `json:"feedback,omitempty"`
	Wait     time.Duration `json:"-"`
}

// Prompt is what the player sees for the current item. It never carries the
// expected answer.
type Prompt struct {
	Question string            `json:"question,omitempty"`
	Hint     string            `json:"hint,omitempty"`
	Options  []string          `json:"options,omitempty"`
	SceneID  string            `json:"sceneId,omitempty"`
	Text     string            `json:"text,omitempty"`
	Choices  []questlab.Choice `json:"choices,omitempty"`
	Ending   bool              `json:"ending,omitempty"`
	Location string            `json:"location,omitempty"`
}

// State is a copy of the machine's session state.
type State struct {
	GameID        string              `json:"gameId"`
	Title         string              `json:"title"`
	GameType      questlab.GameType   `json:"gameType"`
	Phase         Phase               `json:"phase"`
	Index         int                 `json:"index"`
	Total         int                 `json:"total"`
	BaseScore     int                 `json:"baseScore"`
	BonusPoints   int                 `json:"bonusPoints"`
	TimeRemaining *int                `json:"timeRemaining,omitempty"`
	Feedback      *Feedback           `json:"feedback,omitempty"`
	Prompt        *Prompt             `json:"prompt,omitempty"`
	StoryPath     []string            `json:"storyPath,omitempty"`
	MapGuesses    []questlab.Location `json:"mapGuesses,omitempty"`
	Result        *questlab.Result    `json:"result,omitempty"`
}

// handler is the per-type interaction logic. Exactly one is active per machine.
type handler interface {
	init(m *Machine)
	handle(m *Machine, in Input) (Outcome, error)
	prompt(m *Machine) *Prompt
	total() int
}

// Machine is the synchronous session state machine. It is not safe for
// concurrent use; Session serializes access to it.
type Machine struct {
	def   questlab.Definition
	clock clockwork.Clock
	game  handler

	phase       Phase
	index       int
	baseScore   int
	bonusPoints int
	remaining   int
	feedback    *Feedback
	storyPath   []string
	mapGuesses  []questlab.Location

	startedAt time.Time
	resume    func() bool
	result    *questlab.Result
}

func NewMachine(def questlab.Definition, clock clockwork.Clock) (*Machine, error) {
	var game handler
	switch cfg := def.Config.(type) {
	case questlab.SkillBuilderConfig:
		game = &skillBuilder{cfg: cfg}
	case questlab.QuizBattleConfig:
		game = &quizBattle{cfg: cfg}
	case questlab.StoryQuestConfig:
		game = &storyQuest{cfg: cfg}
	case questlab.MapChallengeConfig:
		game = &mapChallenge{cfg: cfg}
	default:
		return nil, fmt.Errorf("%w %q", questlab.ErrUnknownGameType, string(def.Type))
	}
	if def.Config.GameType() != def.Type {
		return nil, fmt.Errorf("game %s declares %s but carries %s config", def.ID, def.Type, def.Config.GameType())
	}
	return &Machine{def: def, clock: clock, game: game, phase: PhaseLoading}, nil
}

// Start moves a loaded machine to playing.
func (m *Machine) Start() error {
	if m.phase != PhaseLoading {
		return fmt.Errorf("start from %s: %w", m.phase, ErrNotPlaying)
	}
	m.reset()
	return nil
}

// Restart replays the same definition from scratch once the session is over.
func (m *Machine) Restart() error {
	if m.phase != PhaseFinished {
		return ErrNotFinished
	}
	m.reset()
	return nil
}

func (m *Machine) reset() {
	m.index = 0
	m.baseScore = 0
	m.bonusPoints = 0
	m.remaining = 0
	m.feedback = nil
	m.storyPath = nil
	m.mapGuesses = nil
	m.resume = nil
	m.result = nil
	m.startedAt = m.clock.Now()
	m.game.init(m)
	m.phase = PhasePlaying
}

func (m *Machine) Phase() Phase { return m.phase }

// Timed reports whether the countdown applies to this machine.
func (m *Machine) Timed() bool { return m.def.Type.Timed() }

// Waiting reports whether a feedback window is open.
func (m *Machine) Waiting() bool { return m.resume != nil }

// Result is set once the machine has finished.
func (m *Machine) Result() *questlab.Result { return m.result }

// Handle applies one player input.
func (m *Machine) Handle(in Input) (Outcome, error) {
	if m.phase != PhasePlaying {
		return Outcome{}, ErrNotPlaying
	}
	if m.resume != nil {
		return Outcome{}, ErrBusy
	}
	return m.game.handle(m, in)
}

// Tick advances the countdown by one second. It reports true when this tick
// finished the session.
func (m *Machine) Tick() bool {
	if m.phase != PhasePlaying || !m.Timed() {
		return false
	}
	if m.remaining <= 1 {
		m.remaining = 0
		return m.finish()
	}
	m.remaining--
	return false
}

// Resume closes the open feedback window and runs what was scheduled after it.
// It reports true when that finished the session.
func (m *Machine) Resume() bool {
	next := m.resume
	m.resume = nil
	if next == nil || m.phase != PhasePlaying {
		return false
	}
	return next()
}

// Finish ends the session early. It reports false if it had already ended.
func (m *Machine) Finish() bool {
	if m.phase != PhasePlaying {
		return false
	}
	return m.finish()
}

func (m *Machine) finish() bool {
	if m.phase == PhaseFinished {
		return false
	}
	m.phase = PhaseFinished
	m.feedback = nil
	m.resume = nil
	m.result = &questlab.Result{
		GameID:      m.def.ID,
		Score:       m.baseScore + m.bonusPoints,
		BonusPoints: m.bonusPoints,
		TimeTaken:   int(m.clock.Since(m.startedAt) / time.Second),
	}
	return true
}

// showFeedback opens a window of length wait; then runs after it closes.
func (m *Machine) showFeedback(correct bool, fb *Feedback, wait time.Duration, then func() bool) Outcome {
	m.feedback = fb
	m.resume = func() bool {
		m.feedback = nil
		return then()
	}
	return Outcome{Correct: correct, Feedback: fb, Wait: wait}
}

// advance moves to the next item or finishes after the last one.
func (m *Machine) advance() bool {
	m.index++
	if m.index >= m.game.total() {
		return m.finish()
	}
	return false
}

func (m *Machine) State() State {
	st := State{
		GameID:      m.def.ID,
		Title:       m.def.Title,
		GameType:    m.def.Type,
		Phase:       m.phase,
		Index:       m.index,
		Total:       m.game.total(),
		BaseScore:   m.baseScore,
		BonusPoints: m.bonusPoints,
		Feedback:    m.feedback,
		StoryPath:   append([]string(nil), m.storyPath...),
		MapGuesses:  append([]questlab.Location(nil), m.mapGuesses...),
		Result:      m.result,
	}
	if m.Timed() && m.phase != PhaseLoading {
		remaining := m.remaining
		st.TimeRemaining = &remaining
	}
	if m.phase == PhasePlaying {
		st.Prompt = m.game.prompt(m)
	}
	return st
}
