package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
)

type APIError struct {
	Error           string      `json:"error"`
	Code            string      `json:"code"`
	Details         interface{} `json:"details,omitempty"`
	ProviderDetails interface{} `json:"providerDetails,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details interface{}) {
	WriteJSON(w, status, APIError{
		Error:   msg,
		Code:    code,
		Details: details,
	})
}

// WriteProviderError carries the provider's own error body through to the caller.
func WriteProviderError(w http.ResponseWriter, status int, msg string, providerDetails interface{}) {
	WriteJSON(w, status, APIError{
		Error:           msg,
		Code:            "provider_error",
		ProviderDetails: providerDetails,
	})
}

const maxBody = 1 << 20

var errTrailing = errors.New("unexpected data after JSON body")

// DecodeJSON reads a single JSON value of at most 1 MiB.
func DecodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errTrailing
	}
	return nil
}
