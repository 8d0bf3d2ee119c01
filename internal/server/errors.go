package server

import (
	"encoding/json"
	"log"
	"net/http"
)

// writeJSON renders a response body. Encoding failures are logged, not
// surfaced: by the time encoding fails the status line is already written.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("ERROR: encode response: %v", err)
	}
}

// writeError renders the generic error envelope. Bodies stay coarse so the
// API cannot be used to probe internals.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
