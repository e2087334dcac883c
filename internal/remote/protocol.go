// Package remote implements the HTTP client for a central mechmon history
// server. The client satisfies the same store contract as local history,
// so pipelines run unchanged against either.
package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorResponse is the structured error format returned by the server.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// RemoteError wraps a non-2xx server response.
type RemoteError struct {
	Status  int
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Code, e.Message)
}

// decodeError converts an HTTP error response into a RemoteError.
func decodeError(resp *http.Response) error {
	var er ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return &RemoteError{Status: resp.StatusCode, Code: "unknown", Message: resp.Status}
	}
	return &RemoteError{Status: resp.StatusCode, Code: er.Error, Message: er.Message}
}

// EntityList is the response of the entity listing endpoint.
type EntityList struct {
	Entities []string `json:"entities"`
}
