package harvestapi

import (
	"io"

	"github.com/goliatone/go-harvest/harvest"
)

// Response provides a minimal response interface for transport adapters.
type Response interface {
	SetHeader(name, value string)
	WriteHeader(status int)
	Write(data []byte) (int, error)
	WriteJSON(status int, payload any) error
	Writer() (io.Writer, bool)
	Redirect(location string, status int) error
}

// ErrorResponse describes JSON error responses.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody contains error details.
type ErrorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// EntriesResponse lists entries most recent first.
type EntriesResponse struct {
	Entries []harvest.Entry `json:"entries"`
	Totals  harvest.Totals  `json:"totals"`
}

// ExportsResponse lists export history.
type ExportsResponse struct {
	Exports []harvest.ExportRecord `json:"exports"`
}
