package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jonboulle/clockwork"

	"github.com/questlab/player/internal/backend"
	"github.com/questlab/player/internal/database"
	"github.com/questlab/player/internal/journal"
	"github.com/questlab/player/internal/migrations"
	"github.com/questlab/player/internal/player"
)

var games = map[string]string{
	"sb": `{"id": "sb", "title": "Sums", "game_type": "skill_builder",
		"config": {"problems": [{"question": "2+2", "answer": "4"}, {"question": "3+3", "answer": "6"}], "time_per_problem": 15, "total_problems": 2}}`,
	"sq": `{"id": "sq", "title": "Forest", "game_type": "story_quest", "config": {"scenes": [
		{"id": "start", "text": "A fork.", "choices": [{"text": "Left", "next": "end", "bonus_points": 5}, {"text": "Wait", "bonus_points": 1}]},
		{"id": "end", "text": "Home.", "ending": true, "final_points": 20}]}}`,
	"mc": `{"id": "mc", "title": "Islands", "game_type": "map_challenge",
		"config": {"locations": [{"name": "Jamaica", "x": 50, "y": 50, "hint": "Big island"}]}}`,
	"noid": `{"title": "Capitals", "game_type": "quiz_battle",
		"config": {"questions": [{"question": "Capital of Peru?", "options": ["Lima", "Cusco"], "answer": "Lima"}]}}`,
	"bad":   `{"id": "bad", "game_type": "quiz_battle", "config": {"questions": []}}`,
	"chess": `{"id": "chess", "game_type": "chess", "config": {}}`,
}

// fakeQuestLab stands in for the QuestLab backend.
type fakeQuestLab struct {
	mu          sync.Mutex
	submissions []map[string]any
	paths       []string
	tokens      []string
}

func (f *fakeQuestLab) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.tokens = append(f.tokens, r.Header.Get("Authorization"))
	f.mu.Unlock()

	if r.Header.Get("Authorization") == "Bearer expired" {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail": "Token expired"}`))
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/games/")
	id, submit := strings.CutSuffix(path, "/submit")
	switch {
	case id == "broken":
		w.WriteHeader(http.StatusInternalServerError)
	case submit:
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.submissions = append(f.submissions, body)
		f.paths = append(f.paths, r.URL.Path)
		f.mu.Unlock()
		score, _ := body["score"].(float64)
		json.NewEncoder(w).Encode(map[string]any{"points_earned": int(score) * 3, "level": "gold"})
	case games[id] != "":
		w.Write([]byte(games[id]))
	default:
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "Not found."}`))
	}
}

func (f *fakeQuestLab) submitted() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.submissions...)
}

func (f *fakeQuestLab) submitPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func (f *fakeQuestLab) sawToken(token string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tokens {
		if t == "Bearer "+token {
			return true
		}
	}
	return false
}

type testEnv struct {
	router   chi.Router
	sessions *Sessions
	clock    *clockwork.FakeClock
	backend  *fakeQuestLab
	journal  *journal.Store
	token    string
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	fake := &fakeQuestLab{}
	api := httptest.NewServer(fake)
	t.Cleanup(api.Close)
	client := backend.NewClient(backend.Config{BaseURL: api.URL + "/api", HTTPClient: api.Client()})

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	results := journal.New(db)

	clock := clockwork.NewFakeClock()
	sessions := NewSessions(SessionsConfig{
		Loader:    client,
		Submitter: client,
		Recorder:  results,
		Clock:     clock,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		IdleTTL:   time.Minute,
	})
	t.Cleanup(sessions.Close)

	router := NewRouter(slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{
		Sessions: sessions,
		Results:  results,
	})
	return &testEnv{router: router, sessions: sessions, clock: clock, backend: fake, journal: results, token: "player-token"}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) create(t *testing.T, gameID string) player.Snapshot {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/sessions", CreateSessionRequest{GameID: gameID})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create %s: status %d: %s", gameID, rec.Code, rec.Body.String())
	}
	var snap player.Snapshot
	decodeBody(t, rec, &snap)
	return snap
}

// waitState polls a session until ok holds.
func (e *testEnv) waitState(t *testing.T, id string, what string, ok func(player.Snapshot) bool) player.Snapshot {
	t.Helper()
	sess, found := e.sessions.Get(id)
	if !found {
		t.Fatalf("session %s not found", id)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, err := sess.Snapshot()
		if err != nil {
			t.Fatalf("snapshot: %v", err)
		}
		if ok(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s; last state %+v", what, snap)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}
