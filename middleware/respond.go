package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/authgate"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteError writes the public {name, message} body for err.
func WriteError(w http.ResponseWriter, err error) {
	res := authgate.Classify(err)
	writeJSON(w, res.Status, res)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, authgate.ErrorResponse{
		Name:    authgate.KindBadRequest,
		Message: message,
	})
}
