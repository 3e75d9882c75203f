package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON writes data as the whole response body. Function contracts are flat,
// so there is no data envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func JSONError(w http.ResponseWriter, status int, err error) {
	JSONErrorMessage(w, status, err.Error())
}

func JSONErrorMessage(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// JSONErrorDetail writes an error body carrying extra structured fields
// alongside the error string.
func JSONErrorDetail(w http.ResponseWriter, status int, message string, detail map[string]any) {
	body := make(map[string]any, len(detail)+1)
	for k, v := range detail {
		body[k] = v
	}
	body["error"] = message
	JSON(w, status, body)
}
