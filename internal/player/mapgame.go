package player

import (
	"fmt"
	"math"

	"github.com/questlab/player/internal/questlab"
)

type mapChallenge struct {
	cfg questlab.MapChallengeConfig
}

func (g *mapChallenge) init(m *Machine) {
	m.remaining = g.cfg.TimeLimit
	m.mapGuesses = []questlab.Location{}
}

func (g *mapChallenge) total() int { return len(g.cfg.Locations) }

func (g *mapChallenge) handle(m *Machine, in Input) (Outcome, error) {
	c, ok := in.(Click)
	if !ok {
		return Outcome{}, ErrWrongInput
	}
	if !onMap(c.X) || !onMap(c.Y) {
		return Outcome{}, fmt.Errorf("%w: click (%v, %v) is outside the map", ErrInvalidInput, c.X, c.Y)
	}

	loc := g.cfg.Locations[m.index]
	if math.Hypot(c.X-loc.X, c.Y-loc.Y) <= g.cfg.Tolerance {
		m.baseScore += PointsPerItem
		found := loc
		found.Found = true
		m.mapGuesses = append(m.mapGuesses, found)
		return m.showFeedback(true, &Feedback{
			Kind:    FeedbackCorrect,
			Message: fmt.Sprintf("Found %s!", loc.Name),
		}, FeedbackDelay, m.advance), nil
	}

	// The same location stays current until it is found.
	return m.showFeedback(false, &Feedback{
		Kind:    FeedbackIncorrect,
		Message: fmt.Sprintf("Try again! Hint: %s", loc.Hint),
	}, HintDelay, func() bool { return false }), nil
}

func (g *mapChallenge) prompt(m *Machine) *Prompt {
	if m.index >= len(g.cfg.Locations) {
		return nil
	}
	return &Prompt{Location: g.cfg.Locations[m.index].Name}
}

func onMap(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 100
}
