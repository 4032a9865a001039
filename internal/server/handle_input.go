package server

import (
	"net/http"

	"github.com/questlab/player/internal/player"
)

type AnswerRequest struct {
	Answer string `json:"answer"`
}

type OptionRequest struct {
	Option string `json:"option"`
}

type ChoiceRequest struct {
	Index *int `json:"index"`
}

type ClickRequest struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
}

// InputResponse is the immediate reaction to an input plus the session as it
// stands right after it.
type InputResponse struct {
	Correct  bool             `json:"correct"`
	Feedback *player.Feedback `json:"feedback,omitempty"`
	Session  player.Snapshot  `json:"session"`
}

func handleAnswer() http.HandlerFunc {
	return inputHandler(func(w http.ResponseWriter, r *http.Request) (player.Input, string) {
		var req AnswerRequest
		if err := readJSON(w, r, &req); err != nil {
			return nil, err.Error()
		}
		return player.Answer{Text: req.Answer}, ""
	})
}

func handleOption() http.HandlerFunc {
	return inputHandler(func(w http.ResponseWriter, r *http.Request) (player.Input, string) {
		var req OptionRequest
		if err := readJSON(w, r, &req); err != nil {
			return nil, err.Error()
		}
		return player.Option{Value: req.Option}, ""
	})
}

func handleChoice() http.HandlerFunc {
	return inputHandler(func(w http.ResponseWriter, r *http.Request) (player.Input, string) {
		var req ChoiceRequest
		if err := readJSON(w, r, &req); err != nil {
			return nil, err.Error()
		}
		if req.Index == nil {
			return nil, "index is required"
		}
		return player.Choose{Index: *req.Index}, ""
	})
}

func handleClick() http.HandlerFunc {
	return inputHandler(func(w http.ResponseWriter, r *http.Request) (player.Input, string) {
		var req ClickRequest
		if err := readJSON(w, r, &req); err != nil {
			return nil, err.Error()
		}
		if req.X == nil || req.Y == nil {
			return nil, "x and y are required"
		}
		return player.Click{X: *req.X, Y: *req.Y}, ""
	})
}

// inputHandler decodes one input, applies it and answers with the outcome.
func inputHandler(decode func(http.ResponseWriter, *http.Request) (player.Input, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		in, problem := decode(w, r)
		if problem != "" {
			writeError(w, http.StatusBadRequest, problem)
			return
		}

		sess := sessionFrom(r)
		out, err := sess.Handle(in)
		if err != nil {
			writeSessionError(w, err)
			return
		}
		snap, err := sess.Snapshot()
		if err != nil {
			writeSessionError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, InputResponse{
			Correct:  out.Correct,
			Feedback: out.Feedback,
			Session:  snap,
		})
	}
}
