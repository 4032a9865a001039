package player

import (
	"fmt"

	"github.com/questlab/player/internal/questlab"
)

// storyQuest branches by scene id. The cursor is the index of the current
// scene; the path records every scene visited.
type storyQuest struct {
	cfg questlab.StoryQuestConfig
}

func (g *storyQuest) init(m *Machine) {
	m.index, _ = g.cfg.SceneIndex(g.cfg.Start)
	m.storyPath = []string{g.cfg.Start}
}

func (g *storyQuest) total() int { return len(g.cfg.Scenes) }

func (g *storyQuest) handle(m *Machine, in Input) (Outcome, error) {
	c, ok := in.(Choose)
	if !ok {
		return Outcome{}, ErrWrongInput
	}
	scene := g.cfg.Scenes[m.index]
	if scene.Ending {
		return Outcome{}, ErrNotPlaying
	}
	if c.Index < 0 || c.Index >= len(scene.Choices) {
		return Outcome{}, fmt.Errorf("%w: scene %q has no choice %d", ErrInvalidInput, scene.ID, c.Index)
	}

	choice := scene.Choices[c.Index]
	m.bonusPoints += choice.BonusPoints
	if choice.Next == "" {
		return Outcome{Correct: true}, nil
	}

	next, _ := g.cfg.SceneIndex(choice.Next)
	m.storyPath = append(m.storyPath, choice.Next)
	m.index = next

	if ending := g.cfg.Scenes[next]; ending.Ending {
		m.baseScore = ending.FinalPoints
		return m.showFeedback(true, nil, EndingDelay, m.finish), nil
	}
	return Outcome{Correct: true}, nil
}

func (g *storyQuest) prompt(m *Machine) *Prompt {
	s := g.cfg.Scenes[m.index]
	return &Prompt{
		SceneID: s.ID,
		Text:    s.Text,
		Choices: append([]questlab.Choice(nil), s.Choices...),
		Ending:  s.Ending,
	}
}
