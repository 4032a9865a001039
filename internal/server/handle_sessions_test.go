package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/questlab/player/internal/player"
	"github.com/questlab/player/internal/questlab"
)

func TestPlaySkillBuilderOverHTTP(t *testing.T) {
	env := setupEnv(t)

	snap := env.create(t, "sb")
	if snap.Phase != player.PhasePlaying || snap.Prompt == nil || snap.Prompt.Question != "2+2" {
		t.Fatalf("unexpected initial snapshot %+v", snap)
	}
	if snap.TimeRemaining == nil || *snap.TimeRemaining != 30 {
		t.Fatalf("expected 30s on the clock, got %v", snap.TimeRemaining)
	}
	if !env.backend.sawToken("player-token") {
		t.Error("expected the player's token to reach the backend")
	}
	base := "/api/sessions/" + snap.SessionID

	rec := env.do(t, http.MethodPost, base+"/answer", AnswerRequest{Answer: " 4 "})
	if rec.Code != http.StatusOK {
		t.Fatalf("answer: status %d: %s", rec.Code, rec.Body.String())
	}
	var out InputResponse
	decodeBody(t, rec, &out)
	if !out.Correct || out.Feedback == nil || out.Feedback.Message != "Correct!" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.Session.BaseScore != 10 {
		t.Errorf("expected base score 10, got %d", out.Session.BaseScore)
	}

	rec = env.do(t, http.MethodPost, base+"/answer", AnswerRequest{Answer: "6"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("answer during feedback: status %d, want 409", rec.Code)
	}

	env.clock.Advance(player.FeedbackDelay)
	env.waitState(t, snap.SessionID, "second problem", func(s player.Snapshot) bool {
		return s.Index == 1 && s.Feedback == nil
	})

	rec = env.do(t, http.MethodPost, base+"/answer", AnswerRequest{Answer: "7"})
	decodeBody(t, rec, &out)
	if out.Correct || out.Feedback.Message != "Wrong! The answer was 6" {
		t.Fatalf("unexpected outcome %+v", out)
	}

	env.clock.Advance(player.FeedbackDelay)
	final := env.waitState(t, snap.SessionID, "finish", func(s player.Snapshot) bool {
		return s.Phase == player.PhaseFinished
	})
	if final.Index != 2 || final.Result.Score != 10 {
		t.Fatalf("unexpected final state %+v", final)
	}
	if final.Receipt == nil || final.Receipt.PointsEarned != 30 || final.Receipt.Extra["level"] != "gold" {
		t.Fatalf("unexpected receipt %+v", final.Receipt)
	}

	subs := env.backend.submitted()
	if len(subs) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(subs))
	}
	if subs[0]["game_id"] != "sb" || subs[0]["score"] != float64(10) {
		t.Errorf("unexpected submission %v", subs[0])
	}

	entries, err := env.journal.List(context.Background(), "sb", 0)
	if err != nil {
		t.Fatalf("list journal: %v", err)
	}
	if len(entries) != 1 || entries[0].SessionID != snap.SessionID || *entries[0].PointsEarned != 30 {
		t.Fatalf("unexpected journal %+v", entries)
	}

	rec = env.do(t, http.MethodPost, base+"/answer", AnswerRequest{Answer: "4"})
	if rec.Code != http.StatusConflict {
		t.Errorf("answer after finish: status %d, want 409", rec.Code)
	}
}

func TestCreateSessionErrors(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		body       any
		wantStatus int
	}{
		{"missing game id", "player-token", CreateSessionRequest{}, http.StatusBadRequest},
		{"malformed body", "player-token", `{"gameId": 1`, http.StatusBadRequest},
		{"unknown field", "player-token", `{"gameId": "sb", "mode": "hard"}`, http.StatusBadRequest},
		{"game not found", "player-token", CreateSessionRequest{GameID: "nope"}, http.StatusNotFound},
		{"invalid config", "player-token", CreateSessionRequest{GameID: "bad"}, http.StatusUnprocessableEntity},
		{"unknown game type", "player-token", CreateSessionRequest{GameID: "chess"}, http.StatusUnprocessableEntity},
		{"backend failure", "player-token", CreateSessionRequest{GameID: "broken"}, http.StatusBadGateway},
		{"expired token", "expired", CreateSessionRequest{GameID: "sb"}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupEnv(t)
			env.token = tt.token

			rec := env.do(t, http.MethodPost, "/api/sessions", tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			var body ErrorResponse
			decodeBody(t, rec, &body)
			if body.Error == "" {
				t.Error("expected error message")
			}
			if env.sessions.Len() != 0 {
				t.Errorf("expected no session, got %d", env.sessions.Len())
			}
		})
	}
}

func TestInputErrors(t *testing.T) {
	env := setupEnv(t)
	story := env.create(t, "sq")
	mapGame := env.create(t, "mc")

	tests := []struct {
		name       string
		path       string
		body       any
		wantStatus int
	}{
		{"unknown session", "/api/sessions/nope/choice", ChoiceRequest{}, http.StatusNotFound},
		{"wrong input kind", "/api/sessions/" + story.SessionID + "/answer", AnswerRequest{Answer: "x"}, http.StatusBadRequest},
		{"missing index", "/api/sessions/" + story.SessionID + "/choice", `{}`, http.StatusBadRequest},
		{"choice out of range", "/api/sessions/" + story.SessionID + "/choice", `{"index": 9}`, http.StatusBadRequest},
		{"missing y", "/api/sessions/" + mapGame.SessionID + "/click", `{"x": 10}`, http.StatusBadRequest},
		{"off the map", "/api/sessions/" + mapGame.SessionID + "/click", `{"x": 10, "y": 140}`, http.StatusBadRequest},
		{"restart while playing", "/api/sessions/" + mapGame.SessionID + "/restart", nil, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestStoryQuestOverHTTP(t *testing.T) {
	env := setupEnv(t)
	snap := env.create(t, "sq")
	base := "/api/sessions/" + snap.SessionID

	if snap.TimeRemaining != nil {
		t.Error("story quest must not carry a clock")
	}

	rec := env.do(t, http.MethodPost, base+"/choice", ChoiceRequest{Index: intPtr(1)})
	var out InputResponse
	decodeBody(t, rec, &out)
	if out.Session.BonusPoints != 1 || out.Session.Prompt.SceneID != "start" {
		t.Fatalf("expected to stay on start with 1 bonus, got %+v", out.Session)
	}

	rec = env.do(t, http.MethodPost, base+"/choice", ChoiceRequest{Index: intPtr(0)})
	decodeBody(t, rec, &out)
	if !out.Session.Prompt.Ending || out.Session.BaseScore != 20 {
		t.Fatalf("expected ending scene with final points, got %+v", out.Session)
	}

	env.clock.Advance(player.EndingDelay)
	final := env.waitState(t, snap.SessionID, "finish", func(s player.Snapshot) bool {
		return s.Phase == player.PhaseFinished && s.Receipt != nil
	})
	if final.Result.Score != 26 || final.Receipt.PointsEarned != 78 {
		t.Fatalf("unexpected result %+v receipt %+v", final.Result, final.Receipt)
	}
	if got := final.StoryPath; len(got) != 2 || got[1] != "end" {
		t.Errorf("unexpected story path %v", got)
	}

	rec = env.do(t, http.MethodPost, base+"/restart", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("restart: status %d: %s", rec.Code, rec.Body.String())
	}
	var again player.Snapshot
	decodeBody(t, rec, &again)
	if again.Phase != player.PhasePlaying || again.BonusPoints != 0 || again.Receipt != nil {
		t.Fatalf("expected fresh session, got %+v", again)
	}
}

func TestFinishEarlyOverHTTP(t *testing.T) {
	env := setupEnv(t)
	snap := env.create(t, "mc")
	base := "/api/sessions/" + snap.SessionID

	env.clock.Advance(5 * time.Second)
	env.waitState(t, snap.SessionID, "clock running", func(s player.Snapshot) bool {
		return *s.TimeRemaining < 120
	})

	rec := env.do(t, http.MethodPost, base+"/finish", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finish: status %d: %s", rec.Code, rec.Body.String())
	}
	var final player.Snapshot
	decodeBody(t, rec, &final)
	if final.Phase != player.PhaseFinished || final.Result.TimeTaken != 5 {
		t.Fatalf("unexpected final state %+v", final)
	}

	rec = env.do(t, http.MethodPost, base+"/finish", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("second finish: status %d, want 409", rec.Code)
	}
	if n := len(env.backend.submitted()); n != 1 {
		t.Errorf("expected 1 submission, got %d", n)
	}
}

func TestDeleteSession(t *testing.T) {
	env := setupEnv(t)
	snap := env.create(t, "sb")
	base := "/api/sessions/" + snap.SessionID
	sess, _ := env.sessions.Get(snap.SessionID)

	env.do(t, http.MethodPost, base+"/answer", AnswerRequest{Answer: "4"})

	rec := env.do(t, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: status %d", rec.Code)
	}
	select {
	case <-sess.Done():
	default:
		t.Fatal("expected session to be closed")
	}

	// Pending feedback and the countdown must not fire after leaving.
	env.clock.Advance(time.Hour)
	if n := len(env.backend.submitted()); n != 0 {
		t.Fatalf("expected no submission after leaving, got %d", n)
	}

	rec = env.do(t, http.MethodGet, base, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete: status %d, want 404", rec.Code)
	}
}

func TestSessionsReap(t *testing.T) {
	env := setupEnv(t)
	idle := env.create(t, "sq")
	env.clock.Advance(40 * time.Second)
	active := env.create(t, "sq")
	env.clock.Advance(30 * time.Second)

	if n := env.sessions.Reap(time.Minute); n != 1 {
		t.Fatalf("expected 1 reaped session, got %d", n)
	}
	if _, ok := env.sessions.Get(idle.SessionID); ok {
		t.Error("expected idle session to be reaped")
	}
	if _, ok := env.sessions.Get(active.SessionID); !ok {
		t.Error("expected active session to survive")
	}
}

func TestSessionsRunReapsOnSchedule(t *testing.T) {
	env := setupEnv(t)
	snap := env.create(t, "sq")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.sessions.Run(ctx) }()

	// Run arms one timer; wait for it before moving time.
	env.clock.BlockUntil(1)
	env.clock.Advance(90 * time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := env.sessions.Get(snap.SessionID); !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for reaper")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestListResults(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		err := env.journal.RecordResult(ctx, questlab.JournalEntry{
			SessionID: id, GameID: "g" + id, GameType: questlab.GameTypeQuizBattle,
			FinishedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	rec := env.do(t, http.MethodGet, "/api/results?gameId=ga", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var entries []questlab.JournalEntry
	decodeBody(t, rec, &entries)
	if len(entries) != 1 || entries[0].SessionID != "a" {
		t.Fatalf("unexpected entries %+v", entries)
	}

	for _, q := range []string{"0", "-1", "abc", "501"} {
		rec := env.do(t, http.MethodGet, "/api/results?limit="+q, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s: status %d, want 400", q, rec.Code)
		}
	}
}

func intPtr(v int) *int { return &v }
