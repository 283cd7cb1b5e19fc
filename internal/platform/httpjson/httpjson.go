// Package httpjson holds the JSON request/response helpers shared by the HTTP handlers.
package httpjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// ErrBadBody is returned by Decode for unreadable or malformed bodies.
var ErrBadBody = errors.New("invalid JSON body")

// Write encodes v as the JSON response with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Error writes {success:false, message} with the given status.
func Error(w http.ResponseWriter, status int, message string) {
	Write(w, status, ErrorBody{Success: false, Message: message})
}

// Decode reads a single JSON object from the request body into v.
func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrBadBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrBadBody)
	}
	return nil
}
