package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError emits the same JSON error envelope the API handlers use, so
// rejections look identical no matter which layer produced them.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
