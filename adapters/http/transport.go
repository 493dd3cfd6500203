package harvesthttp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/goliatone/go-harvest/adapters/harvestapi"
)

var (
	_ harvestapi.Request  = httpRequest{}
	_ harvestapi.Response = httpResponse{}
)

type httpRequest struct {
	r *http.Request
}

func (req httpRequest) Context() context.Context {
	if req.r == nil {
		return context.Background()
	}
	return req.r.Context()
}

func (req httpRequest) Method() string {
	if req.r == nil {
		return ""
	}
	return req.r.Method
}

func (req httpRequest) Path() string {
	if req.r == nil || req.r.URL == nil {
		return ""
	}
	return req.r.URL.Path
}

func (req httpRequest) Header(name string) string {
	if req.r == nil {
		return ""
	}
	return req.r.Header.Get(name)
}

func (req httpRequest) Query(name string) string {
	if req.r == nil || req.r.URL == nil {
		return ""
	}
	return req.r.URL.Query().Get(name)
}

// Body caps the request body one byte past the form limit so oversize
// submissions are detected by the decoder.
func (req httpRequest) Body() io.ReadCloser {
	if req.r == nil || req.r.Body == nil {
		return nil
	}
	return http.MaxBytesReader(nil, req.r.Body, harvestapi.MaxFormBytes+1)
}

type httpResponse struct {
	w   http.ResponseWriter
	req *http.Request
}

func (res httpResponse) SetHeader(name, value string) {
	res.w.Header().Set(name, value)
}

func (res httpResponse) WriteHeader(status int) {
	res.w.WriteHeader(status)
}

func (res httpResponse) Write(data []byte) (int, error) {
	if res.isHead() {
		return len(data), nil
	}
	return res.w.Write(data)
}

func (res httpResponse) WriteJSON(status int, payload any) error {
	res.w.Header().Set("Content-Type", "application/json")
	res.w.WriteHeader(status)
	if res.isHead() {
		return nil
	}
	return json.NewEncoder(res.w).Encode(payload)
}

func (res httpResponse) Writer() (io.Writer, bool) {
	if res.isHead() {
		return io.Discard, true
	}
	return res.w, true
}

func (res httpResponse) Redirect(location string, status int) error {
	if res.req != nil {
		http.Redirect(res.w, res.req, location, status)
		return nil
	}
	res.w.Header().Set("Location", location)
	res.w.WriteHeader(status)
	return nil
}

func (res httpResponse) isHead() bool {
	return res.req != nil && res.req.Method == http.MethodHead
}
