package middleware

import (
	"encoding/json"
	"net/http"
)

// errorResponse matches the API's error envelope
type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// writeError writes a JSON error envelope
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Success: false, Error: message})
}
