package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/questlab/player/internal/player"
)

// PlayMessage is a command sent by a WebSocket client. Type selects which of
// the other fields apply.
type PlayMessage struct {
	Type   string   `json:"type"`
	Answer string   `json:"answer,omitempty"`
	Option string   `json:"option,omitempty"`
	Index  *int     `json:"index,omitempty"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
}

var errBadMessage = errors.New("bad message")

// handlePlay runs a session over one WebSocket: commands in, state and error
// events out.
func handlePlay(broker *Broker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)
		logger := logger.With("session_id", sess.ID())

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		ch := broker.Subscribe(sess.ID())
		defer broker.Unsubscribe(sess.ID(), ch)

		replies := make(chan Event, 4)
		go func() {
			defer cancel()
			for {
				var msg PlayMessage
				if err := wsjson.Read(ctx, conn, &msg); err != nil {
					logger.Debug("websocket read ended", "error", err)
					return
				}
				if err := applyPlay(sess, msg); err != nil {
					select {
					case replies <- Event{Type: "error", Error: err.Error()}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()

		snap, err := sess.Snapshot()
		if err != nil {
			conn.Close(websocket.StatusGoingAway, "session closed")
			return
		}
		if err := wsjson.Write(ctx, conn, Event{Type: "state", Session: &snap}); err != nil {
			logger.Debug("websocket write failed", "error", err)
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-sess.Done():
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			case data := <-ch:
				err = conn.Write(ctx, websocket.MessageText, data)
			case ev := <-replies:
				err = wsjson.Write(ctx, conn, ev)
			}
			if err != nil {
				logger.Debug("websocket write failed", "error", err)
				return
			}
		}
	}
}

func applyPlay(sess *player.Session, msg PlayMessage) error {
	var in player.Input
	switch msg.Type {
	case "answer":
		in = player.Answer{Text: msg.Answer}
	case "option":
		in = player.Option{Value: msg.Option}
	case "choice":
		if msg.Index == nil {
			return fmt.Errorf("%w: index is required", errBadMessage)
		}
		in = player.Choose{Index: *msg.Index}
	case "click":
		if msg.X == nil || msg.Y == nil {
			return fmt.Errorf("%w: x and y are required", errBadMessage)
		}
		in = player.Click{X: *msg.X, Y: *msg.Y}
	case "finish":
		return sess.Finish()
	case "restart":
		return sess.Restart()
	default:
		return fmt.Errorf("%w: unknown type %q", errBadMessage, msg.Type)
	}
	_, err := sess.Handle(in)
	return err
}
