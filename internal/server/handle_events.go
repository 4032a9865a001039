package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const ssePing = 30 * time.Second

// handleEvents streams "state" events for a session until the client leaves
// or the session is closed.
func handleEvents(broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := sessionFrom(r)

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		ch := broker.Subscribe(sess.ID())
		defer broker.Unsubscribe(sess.ID(), ch)

		snap, err := sess.Snapshot()
		if err != nil {
			writeSessionError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		first, _ := json.Marshal(Event{Type: "state", Session: &snap})
		fmt.Fprintf(w, "event: state\ndata: %s\n\n", first)
		flusher.Flush()

		ping := time.NewTicker(ssePing)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-sess.Done():
				fmt.Fprintf(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			case data := <-ch:
				fmt.Fprintf(w, "event: state\ndata: %s\n\n", data)
				flusher.Flush()
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
