package player

import (
	"fmt"
	"slices"

	"github.com/questlab/player/internal/questlab"
)

type quizBattle struct {
	cfg questlab.QuizBattleConfig
}

func (g *quizBattle) init(m *Machine) { m.remaining = g.cfg.TimeLimit }

func (g *quizBattle) total() int { return len(g.cfg.Questions) }

func (g *quizBattle) handle(m *Machine, in Input) (Outcome, error) {
	o, ok := in.(Option)
	if !ok {
		return Outcome{}, ErrWrongInput
	}
	q := g.cfg.Questions[m.index]
	if !slices.Contains(q.Options, o.Value) {
		return Outcome{}, fmt.Errorf("%w: %q is not an option", ErrInvalidInput, o.Value)
	}

	if o.Value == q.Answer {
		m.baseScore += g.cfg.PointsPerQuestion
		return m.showFeedback(true, &Feedback{
			Kind:    FeedbackCorrect,
			Message: fmt.Sprintf("Correct! +%d points", g.cfg.PointsPerQuestion),
		}, FeedbackDelay, m.advance), nil
	}
	return m.showFeedback(false, &Feedback{
		Kind:    FeedbackIncorrect,
		Message: fmt.Sprintf("Wrong! Correct answer: %s", q.Answer),
	}, FeedbackDelay, m.advance), nil
}

func (g *quizBattle) prompt(m *Machine) *Prompt {
	if m.index >= len(g.cfg.Questions) {
		return nil
	}
	q := g.cfg.Questions[m.index]
	return &Prompt{Question: q.Question, Options: append([]string(nil), q.Options...)}
}
