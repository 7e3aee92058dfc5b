package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/originguard/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"Server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Message: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Message string `json:"message"`
}

// LoginRequest is the JSON body for the login endpoint.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries an issued bearer token and its lifetime string.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn string `json:"expiresIn"`
}

// ListResponse is the JSON representation of the allow-list.
type ListResponse struct {
	URLs  []string `json:"urls"`
	Count int      `json:"count"`
}

// URLRequest is the JSON body for the add and delete endpoints.
type URLRequest struct {
	URL string `json:"url"`
}

// UpdateRequest is the JSON body for the update endpoint.
type UpdateRequest struct {
	OldURL string `json:"oldUrl"`
	NewURL string `json:"newUrl"`
}

// EntryResponse is the JSON representation of a stored allow-list entry.
type EntryResponse struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	AddedBy   string `json:"addedBy"`
	UpdatedBy string `json:"updatedBy,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// MutationResponse is returned by add, update and delete.
type MutationResponse struct {
	Message string        `json:"message"`
	Doc     EntryResponse `json:"doc"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toEntryResponse converts a domain Entry to its JSON response representation.
func toEntryResponse(e model.Entry) EntryResponse {
	return EntryResponse{
		ID:        e.ID,
		URL:       e.Origin,
		AddedBy:   e.AddedBy,
		UpdatedBy: e.UpdatedBy,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt: e.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
