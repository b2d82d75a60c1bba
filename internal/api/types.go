package api

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/codeboxed/execd/internal/coordinator"
)

// OrderedFiles decodes the wire format's files object (path -> content)
// while preserving key order, which encoding/json's native map target
// cannot do — Go maps have unspecified iteration order, but §4.5
// requires file staging to preserve insertion order. json.Decoder's
// token stream is the one place in this codebase stdlib is used where
// no library in the example pool offers an ordered-map alternative.
type OrderedFiles struct {
	Entries []coordinator.FileEntry
}

func (o *OrderedFiles) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("api: files: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("api: files: expected a JSON object")
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("api: files: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("api: files: expected string key")
		}

		var val string
		if err := dec.Decode(&val); err != nil {
			return fmt.Errorf("api: files[%q]: %w", key, err)
		}
		o.Entries = append(o.Entries, coordinator.FileEntry{Path: key, Content: val})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("api: files: %w", err)
	}
	return nil
}

// executeRequest is the wire shape of ExecutionRequest (§3).
type executeRequest struct {
	ExecutionID    string       `json:"execution_id"`
	UserID         string       `json:"user_id"`
	Language       string       `json:"language"`
	Code           string       `json:"code"`
	TimeoutSeconds int          `json:"timeout_seconds"`
	SessionID      string       `json:"session_id,omitempty"`
	Files          OrderedFiles `json:"files,omitempty"`
}

type executeResponse struct {
	Output    string  `json:"output"`
	Error     *string `json:"error"`
	ExitCode  int     `json:"exit_code"`
	SessionID *string `json:"session_id,omitempty"`
}

type sessionCreateRequest struct {
	Language string `json:"language"`
	UserID   string `json:"user_id"`
}

type sessionCreateResponse struct {
	SessionID string `json:"session_id"`
	Language  string `json:"language"`
	Message   string `json:"message"`
}

type sessionDeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error string `json:"error"`
}
