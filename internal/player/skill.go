package player

import (
	"fmt"
	"strings"

	"github.com/questlab/player/internal/questlab"
)

type skillBuilder struct {
	cfg questlab.SkillBuilderConfig
}

func (g *skillBuilder) init(m *Machine) { m.remaining = g.cfg.TimeLimit() }

func (g *skillBuilder) total() int { return len(g.cfg.Problems) }

func (g *skillBuilder) handle(m *Machine, in Input) (Outcome, error) {
	a, ok := in.(Answer)
	if !ok {
		return Outcome{}, ErrWrongInput
	}
	answer := strings.TrimSpace(a.Text)
	if answer == "" {
		return Outcome{}, fmt.Errorf("%w: answer is required", ErrInvalidInput)
	}

	p := g.cfg.Problems[m.index]
	if strings.EqualFold(answer, strings.TrimSpace(p.Answer)) {
		m.baseScore += PointsPerItem
		return m.showFeedback(true, &Feedback{Kind: FeedbackCorrect, Message: "Correct!"},
			FeedbackDelay, m.advance), nil
	}
	return m.showFeedback(false, &Feedback{
		Kind:    FeedbackIncorrect,
		Message: fmt.Sprintf("Wrong! The answer was %s", p.Answer),
	}, FeedbackDelay, m.advance), nil
}

func (g *skillBuilder) prompt(m *Machine) *Prompt {
	if m.index >= len(g.cfg.Problems) {
		return nil
	}
	p := g.cfg.Problems[m.index]
	return &Prompt{Question: p.Question, Hint: p.Hint}
}
