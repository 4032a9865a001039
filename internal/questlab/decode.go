package questlab

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrUnknownGameType = errors.New("unknown game type")

// ConfigError reports a game configuration the player cannot run.
type ConfigError struct {
	GameType GameType
	Field    string
	Reason   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s config: %s: %s", e.GameType, e.Field, e.Reason)
}

type wireDefinition struct {
	ID         json.RawMessage `json:"id"`
	Title      string          `json:"title"`
	GameType   string          `json:"game_type"`
	Config     json.RawMessage `json:"config"`
	ConfigJSON json.RawMessage `json:"config_json"`
	Difficulty text            `json:"difficulty"`
	Points     int             `json:"points"`
}

type wireSkillBuilder struct {
	Problems []struct {
		Question text `json:"question"`
		Answer   text `json:"answer"`
		Hint     text `json:"hint"`
	} `json:"problems"`
	TimePerProblem int `json:"time_per_problem"`
	TotalProblems  int `json:"total_problems"`
}

type wireQuizBattle struct {
	Questions []struct {
		Question text   `json:"question"`
		Options  []text `json:"options"`
		Answer   text   `json:"answer"`
	} `json:"questions"`
	TimeLimit         int `json:"time_limit"`
	PointsPerQuestion int `json:"points_per_question"`
}

type wireStoryQuest struct {
	Scenes []struct {
		ID      text `json:"id"`
		Text    text `json:"text"`
		Choices []struct {
			Text        text `json:"text"`
			Next        text `json:"next"`
			BonusPoints int  `json:"bonus_points"`
		} `json:"choices"`
		Ending      bool `json:"ending"`
		FinalPoints int  `json:"final_points"`
	} `json:"scenes"`
}

type wireMapChallenge struct {
	Locations []struct {
		Name text     `json:"name"`
		X    *float64 `json:"x"`
		Y    *float64 `json:"y"`
		Hint text     `json:"hint"`
	} `json:"locations"`
	Tolerance float64 `json:"tolerance"`
	TimeLimit int     `json:"time_limit"`
}

// DecodeDefinition parses a backend game record and fills in every default,
// so nothing downstream has to handle a missing option.
func DecodeDefinition(data []byte) (Definition, error) {
	var w wireDefinition
	if err := json.Unmarshal(data, &w); err != nil {
		return Definition{}, fmt.Errorf("decoding game definition: %w", err)
	}

	def := Definition{
		ID:         rawID(w.ID),
		Title:      w.Title,
		Type:       GameType(w.GameType),
		Difficulty: string(w.Difficulty),
		Points:     w.Points,
	}

	raw := w.Config
	if isNull(raw) {
		raw = w.ConfigJSON
	}
	raw, err := unwrapString(raw)
	if err != nil {
		return Definition{}, &ConfigError{GameType: def.Type, Field: "config", Reason: err.Error()}
	}

	cfg, err := DecodeConfig(def.Type, raw)
	if err != nil {
		return Definition{}, err
	}
	def.Config = cfg
	return def, nil
}

// DecodeConfig parses and validates the type-specific config payload.
func DecodeConfig(t GameType, raw []byte) (Config, error) {
	if isNull(raw) {
		raw = []byte("{}")
	}
	switch t {
	case GameTypeSkillBuilder:
		var w wireSkillBuilder
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, &ConfigError{GameType: t, Field: "config", Reason: err.Error()}
		}
		return normalizeSkillBuilder(w)
	case GameTypeQuizBattle:
		var w wireQuizBattle
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, &ConfigError{GameType: t, Field: "config", Reason: err.Error()}
		}
		return normalizeQuizBattle(w)
	case GameTypeStoryQuest:
		var w wireStoryQuest
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, &ConfigError{GameType: t, Field: "config", Reason: err.Error()}
		}
		return normalizeStoryQuest(w)
	case GameTypeMapChallenge:
		var w wireMapChallenge
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, &ConfigError{GameType: t, Field: "config", Reason: err.Error()}
		}
		return normalizeMapChallenge(w)
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownGameType, string(t))
	}
}

func normalizeSkillBuilder(w wireSkillBuilder) (SkillBuilderConfig, error) {
	cfg := SkillBuilderConfig{
		TimePerProblem: orDefault(w.TimePerProblem, DefaultTimePerProblem),
		TotalProblems:  orDefault(w.TotalProblems, DefaultTotalProblems),
	}
	if len(w.Problems) == 0 {
		return cfg, &ConfigError{GameType: GameTypeSkillBuilder, Field: "problems", Reason: "no problems"}
	}
	for i, p := range w.Problems {
		if strings.TrimSpace(string(p.Answer)) == "" {
			return cfg, &ConfigError{GameType: GameTypeSkillBuilder, Field: fmt.Sprintf("problems[%d].answer", i), Reason: "missing"}
		}
		cfg.Problems = append(cfg.Problems, Problem{
			Question: string(p.Question),
			Answer:   string(p.Answer),
			Hint:     string(p.Hint),
		})
	}
	return cfg, nil
}

func normalizeQuizBattle(w wireQuizBattle) (QuizBattleConfig, error) {
	cfg := QuizBattleConfig{
		TimeLimit:         orDefault(w.TimeLimit, DefaultQuizTimeLimit),
		PointsPerQuestion: orDefault(w.PointsPerQuestion, DefaultPointsPerQuestion),
	}
	if len(w.Questions) == 0 {
		return cfg, &ConfigError{GameType: GameTypeQuizBattle, Field: "questions", Reason: "no questions"}
	}
	for i, q := range w.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if len(q.Options) == 0 {
			return cfg, &ConfigError{GameType: GameTypeQuizBattle, Field: field, Reason: "no options"}
		}
		question := Question{Question: string(q.Question), Answer: string(q.Answer)}
		found := false
		for _, o := range q.Options {
			question.Options = append(question.Options, string(o))
			if string(o) == question.Answer {
				found = true
			}
		}
		if !found {
			return cfg, &ConfigError{GameType: GameTypeQuizBattle, Field: field, Reason: "answer is not one of the options"}
		}
		cfg.Questions = append(cfg.Questions, question)
	}
	return cfg, nil
}

func normalizeStoryQuest(w wireStoryQuest) (StoryQuestConfig, error) {
	var cfg StoryQuestConfig
	if len(w.Scenes) == 0 {
		return cfg, &ConfigError{GameType: GameTypeStoryQuest, Field: "scenes", Reason: "no scenes"}
	}

	seen := make(map[string]bool, len(w.Scenes))
	for i, s := range w.Scenes {
		id := string(s.ID)
		field := fmt.Sprintf("scenes[%d]", i)
		if id == "" {
			return cfg, &ConfigError{GameType: GameTypeStoryQuest, Field: field, Reason: "missing id"}
		}
		if seen[id] {
			return cfg, &ConfigError{GameType: GameTypeStoryQuest, Field: field, Reason: fmt.Sprintf("duplicate scene id %q", id)}
		}
		seen[id] = true

		if s.FinalPoints < 0 {
			return cfg, &ConfigError{GameType: GameTypeStoryQuest, Field: field + ".final_points", Reason: "negative"}
		}
		scene := Scene{ID: id, Text: string(s.Text), Ending: s.Ending, FinalPoints: s.FinalPoints}
		for j, c := range s.Choices {
			if c.BonusPoints < 0 {
				return cfg, &ConfigError{
					GameType: GameTypeStoryQuest,
					Field:    fmt.Sprintf("%s.choices[%d].bonus_points", field, j),
					Reason:   "negative",
				}
			}
			scene.Choices = append(scene.Choices, Choice{
				Text:        string(c.Text),
				Next:        string(c.Next),
				BonusPoints: c.BonusPoints,
			})
		}
		if !scene.Ending && len(scene.Choices) == 0 {
			return cfg, &ConfigError{GameType: GameTypeStoryQuest, Field: field, Reason: "dead end: no choices and not an ending"}
		}
		cfg.Scenes = append(cfg.Scenes, scene)
	}

	for i, s := range cfg.Scenes {
		for j, c := range s.Choices {
			if c.Next != "" && !seen[c.Next] {
				return cfg, &ConfigError{
					GameType: GameTypeStoryQuest,
					Field:    fmt.Sprintf("scenes[%d].choices[%d]", i, j),
					Reason:   fmt.Sprintf("next scene %q does not exist", c.Next),
				}
			}
		}
	}

	cfg.Start = cfg.Scenes[0].ID
	if seen[StartSceneID] {
		cfg.Start = StartSceneID
	}
	if i, _ := cfg.SceneIndex(cfg.Start); cfg.Scenes[i].Ending {
		return cfg, &ConfigError{GameType: GameTypeStoryQuest, Field: "scenes", Reason: "start scene is an ending"}
	}
	return cfg, nil
}

func normalizeMapChallenge(w wireMapChallenge) (MapChallengeConfig, error) {
	cfg := MapChallengeConfig{
		Tolerance: w.Tolerance,
		TimeLimit: orDefault(w.TimeLimit, DefaultMapTimeLimit),
	}
	if cfg.Tolerance < 0 {
		return cfg, &ConfigError{GameType: GameTypeMapChallenge, Field: "tolerance", Reason: "negative"}
	}
	if cfg.Tolerance == 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if len(w.Locations) == 0 {
		return cfg, &ConfigError{GameType: GameTypeMapChallenge, Field: "locations", Reason: "no locations"}
	}
	for i, l := range w.Locations {
		field := fmt.Sprintf("locations[%d]", i)
		if l.X == nil || l.Y == nil {
			return cfg, &ConfigError{GameType: GameTypeMapChallenge, Field: field, Reason: "missing x or y"}
		}
		if !onMap(*l.X) || !onMap(*l.Y) {
			return cfg, &ConfigError{GameType: GameTypeMapChallenge, Field: field, Reason: "x and y must be within 0..100"}
		}
		cfg.Locations = append(cfg.Locations, Location{
			Name: string(l.Name),
			X:    *l.X,
			Y:    *l.Y,
			Hint: string(l.Hint),
		})
	}
	return cfg, nil
}

// onMap reports whether a coordinate lies on the map surface, in percent.
func onMap(v float64) bool { return v >= 0 && v <= 100 }

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func isNull(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

// unwrapString accepts config stored as a JSON-encoded string.
func unwrapString(raw []byte) ([]byte, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return raw, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

// text is a string that also accepts JSON numbers and booleans, since answers
// like 4 are often authored without quotes.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case isNull(b):
		*t = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
	case string(b) == "true" || string(b) == "false":
		*t = text(b)
	default:
		if _, err := strconv.ParseFloat(string(b), 64); err != nil {
			return fmt.Errorf("expected string, got %s", b)
		}
		*t = text(b)
	}
	return nil
}
