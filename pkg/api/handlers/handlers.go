package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/cbodonnell/emberlink/pkg/log"
	"github.com/cbodonnell/emberlink/pkg/state"
)

func HandleGetSnapshot(stateManager state.StateManager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snapshot, err := stateManager.Get(r.Context())
		if err != nil {
			log.Error("failed to get snapshot: %v", err)
			http.Error(w, "Failed to get snapshot", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			log.Error("failed to encode snapshot: %v", err)
			http.Error(w, "Failed to encode snapshot", http.StatusInternalServerError)
			return
		}
	}
}

func HandleHealthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			log.Error("failed to write healthz response: %v", err)
		}
	}
}
