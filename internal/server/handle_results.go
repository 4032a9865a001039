package server

import (
	"context"
	"net/http"
	"strconv"

	"github.com/questlab/player/internal/questlab"
)

// ResultLister reads the local result journal.
type ResultLister interface {
	List(ctx context.Context, gameID string, limit int) ([]questlab.JournalEntry, error)
}

const maxResultsLimit = 500

func handleListResults(results ResultLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		limit := 0
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > maxResultsLimit {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
				return
			}
			limit = n
		}

		entries, err := results.List(r.Context(), q.Get("gameId"), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
