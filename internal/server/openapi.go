package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/questlab/player/internal/handler/health"
	"github.com/questlab/player/internal/player"
	"github.com/questlab/player/internal/questlab"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

type sessionPath struct {
	ID string `path:"id"`
}

type resultsQuery struct {
	GameID string `query:"gameId"`
	Limit  int    `query:"limit" minimum:"1" maximum:"500"`
}

type answerInput struct {
	ID     string `path:"id"`
	Answer string `json:"answer" required:"true"`
}

type optionInput struct {
	ID     string `path:"id"`
	Option string `json:"option" required:"true"`
}

type choiceInput struct {
	ID    string `path:"id"`
	Index int    `json:"index" required:"true" minimum:"0"`
}

type clickInput struct {
	ID string  `path:"id"`
	X  float64 `json:"x" required:"true" minimum:"0" maximum:"100"`
	Y  float64 `json:"y" required:"true" minimum:"0" maximum:"100"`
}

type inputOp struct {
	path, summary, description string
	req                        any
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "QuestLab Player API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Hosts QuestLab mini-game sessions and submits their results to the QuestLab backend.")

	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Reports the journal database, backend and definition cache.")
	getHealthz.AddRespStructure(health.Response{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(health.Response{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	createSession, _ := r.NewOperationContext(http.MethodPost, "/api/sessions")
	createSession.SetSummary("Start a session")
	createSession.SetDescription("Loads the game from the backend with the caller's Bearer token and starts playing it.")
	createSession.AddReqStructure(CreateSessionRequest{})
	createSession.AddRespStructure(player.Snapshot{}, openapi.WithHTTPStatus(http.StatusCreated))
	createSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	createSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	createSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	createSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	createSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(createSession)

	getSession, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{id}")
	getSession.SetSummary("Get session")
	getSession.AddReqStructure(sessionPath{})
	getSession.AddRespStructure(player.Snapshot{}, openapi.WithHTTPStatus(http.StatusOK))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getSession)

	deleteSession, _ := r.NewOperationContext(http.MethodDelete, "/api/sessions/{id}")
	deleteSession.SetSummary("Leave session")
	deleteSession.SetDescription("Stops the session and its clock. Nothing is submitted.")
	deleteSession.AddReqStructure(sessionPath{})
	deleteSession.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	deleteSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(deleteSession)

	inputs := []inputOp{
		{"/api/sessions/{id}/answer", "Answer a problem", "Skill builder only. Matching ignores case and surrounding space.", answerInput{}},
		{"/api/sessions/{id}/option", "Pick an option", "Quiz battle only.", optionInput{}},
		{"/api/sessions/{id}/choice", "Make a choice", "Story quest only. Index is the position in the current scene's choices.", choiceInput{}},
		{"/api/sessions/{id}/click", "Click the map", "Map challenge only. Coordinates are percentages of the map surface.", clickInput{}},
	}
	for _, in := range inputs {
		op, _ := r.NewOperationContext(http.MethodPost, in.path)
		op.SetSummary(in.summary)
		op.SetDescription(in.description)
		op.AddReqStructure(in.req)
		op.AddRespStructure(InputResponse{}, openapi.WithHTTPStatus(http.StatusOK))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
		op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
		_ = r.AddOperation(op)
	}

	finish, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{id}/finish")
	finish.SetSummary("Finish early")
	finish.SetDescription("Ends a playing session now and submits its result.")
	finish.AddReqStructure(sessionPath{})
	finish.AddRespStructure(player.Snapshot{}, openapi.WithHTTPStatus(http.StatusOK))
	finish.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(finish)

	restart, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{id}/restart")
	restart.SetSummary("Play again")
	restart.SetDescription("Restarts a finished session with fresh scores and clock.")
	restart.AddReqStructure(sessionPath{})
	restart.AddRespStructure(player.Snapshot{}, openapi.WithHTTPStatus(http.StatusOK))
	restart.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	_ = r.AddOperation(restart)

	events, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{id}/events")
	events.SetSummary("SSE event stream")
	events.SetDescription("Server-Sent Events stream of session snapshots, one \"state\" event per change.")
	events.AddReqStructure(sessionPath{})
	events.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(events)

	play, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{id}/play")
	play.SetSummary("Play over WebSocket")
	play.SetDescription("Upgrades to a WebSocket. Send PlayMessage commands; receive state and error events.")
	play.AddReqStructure(sessionPath{})
	play.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(play)

	results, _ := r.NewOperationContext(http.MethodGet, "/api/results")
	results.SetSummary("Result journal")
	results.SetDescription("Finished sessions recorded by this player, newest first.")
	results.AddReqStructure(resultsQuery{})
	results.AddRespStructure([]questlab.JournalEntry{}, openapi.WithHTTPStatus(http.StatusOK))
	results.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(results)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
