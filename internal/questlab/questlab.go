// Package questlab defines the game definitions and session results exchanged
// with the QuestLab backend. It has zero external dependencies.
package questlab

import "time"

type GameType string

const (
	GameTypeSkillBuilder GameType = "skill_builder"
	GameTypeQuizBattle   GameType = "quiz_battle"
	GameTypeStoryQuest   GameType = "story_quest"
	GameTypeMapChallenge GameType = "map_challenge"
)

// Timed reports whether sessions of this type run a countdown.
func (t GameType) Timed() bool {
	switch t {
	case GameTypeSkillBuilder, GameTypeQuizBattle, GameTypeMapChallenge:
		return true
	}
	return false
}

// Defaults applied when the backend leaves an option out or sends zero.
const (
	DefaultTimePerProblem    = 15
	DefaultTotalProblems     = 8
	DefaultQuizTimeLimit     = 60
	DefaultPointsPerQuestion = 10
	DefaultMapTimeLimit      = 120
	DefaultTolerance         = 10.0

	// StartSceneID is the story scene a quest opens on when present.
	StartSceneID = "start"
)

// Definition is a game as loaded from the backend. It is not modified after
// decoding.
type Definition struct {
	ID         string
	Title      string
	Type       GameType
	Config     Config
	Difficulty string
	Points     int
}

// Config is one of SkillBuilderConfig, QuizBattleConfig, StoryQuestConfig or
// MapChallengeConfig. The set is closed.
type Config interface {
	GameType() GameType
	isConfig()
}

type Problem struct {
	Question string `json:"question"`
	Answer   string `json:"-"`
	Hint     string `json:"hint,omitempty"`
}

type SkillBuilderConfig struct {
	Problems       []Problem
	TimePerProblem int
	TotalProblems  int
}

func (SkillBuilderConfig) GameType() GameType { return GameTypeSkillBuilder }
func (SkillBuilderConfig) isConfig()          {}

// TimeLimit is the whole-session countdown in seconds.
func (c SkillBuilderConfig) TimeLimit() int { return c.TimePerProblem * c.TotalProblems }

type Question struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"-"`
}

type QuizBattleConfig struct {
	Questions         []Question
	TimeLimit         int
	PointsPerQuestion int
}

func (QuizBattleConfig) GameType() GameType { return GameTypeQuizBattle }
func (QuizBattleConfig) isConfig()          {}

type Choice struct {
	Text        string `json:"text"`
	Next        string `json:"next,omitempty"`
	BonusPoints int    `json:"bonusPoints,omitempty"`
}

type Scene struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Choices     []Choice `json:"choices,omitempty"`
	Ending      bool     `json:"ending,omitempty"`
	FinalPoints int      `json:"-"`
}

type StoryQuestConfig struct {
	Scenes []Scene
	Start  string
}

func (StoryQuestConfig) GameType() GameType { return GameTypeStoryQuest }
func (StoryQuestConfig) isConfig()          {}

// SceneIndex returns the position of the scene with the given id.
func (c StoryQuestConfig) SceneIndex(id string) (int, bool) {
	for i, s := range c.Scenes {
		if s.ID == id {
			return i, true
		}
	}
	return -1, false
}

// Location is a point on the map surface in percentage coordinates.
type Location struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Hint  string  `json:"hint,omitempty"`
	Found bool    `json:"found,omitempty"`
}

type MapChallengeConfig struct {
	Locations []Location
	Tolerance float64
	TimeLimit int
}

func (MapChallengeConfig) GameType() GameType { return GameTypeMapChallenge }
func (MapChallengeConfig) isConfig()          {}

// Result is the client-side outcome of a finished session.
type Result struct {
	GameID      string `json:"gameId"`
	Score       int    `json:"score"`
	BonusPoints int    `json:"bonusPoints"`
	TimeTaken   int    `json:"timeTaken"`
}

// Receipt is the backend's acknowledgement of a submitted result. PointsEarned
// is authoritative.
type Receipt struct {
	PointsEarned int            `json:"pointsEarned"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// JournalEntry is one finished session as recorded locally.
type JournalEntry struct {
	SessionID    string    `json:"sessionId"`
	GameID       string    `json:"gameId"`
	GameType     GameType  `json:"gameType"`
	Score        int       `json:"score"`
	BonusPoints  int       `json:"bonusPoints"`
	TimeTaken    int       `json:"timeTaken"`
	PointsEarned *int      `json:"pointsEarned"`
	SubmitError  string    `json:"submitError,omitempty"`
	FinishedAt   time.Time `json:"finishedAt"`
}
