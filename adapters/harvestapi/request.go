package harvestapi

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/goliatone/go-harvest/harvest"
)

// MaxFormBytes caps entry submissions.
const MaxFormBytes int64 = 64 * 1024

// Request provides minimal request access for transport adapters.
type Request interface {
	Context() context.Context
	Method() string
	Path() string
	Header(name string) string
	Query(name string) string
	Body() io.ReadCloser
}

type entryPayload struct {
	Name       *string  `json:"name"`
	Kg         *float64 `json:"kg"`
	PricePerKg *float64 `json:"price_per_kg"`
}

// DecodeEntry reads an entry submission encoded as JSON or as a URL-encoded form.
func DecodeEntry(req Request) (harvest.EntryInput, error) {
	if req == nil {
		return harvest.EntryInput{}, harvest.NewError(harvest.KindInternal, "request is nil", nil)
	}
	body := req.Body()
	if body == nil {
		return harvest.EntryInput{}, harvest.NewError(harvest.KindValidation, "request body is required", nil)
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, MaxFormBytes+1))
	if err != nil {
		return harvest.EntryInput{}, harvest.NewError(harvest.KindValidation, "invalid request body", err)
	}
	if int64(len(data)) > MaxFormBytes {
		return harvest.EntryInput{}, harvest.NewError(harvest.KindValidation, "request body too large", nil)
	}

	if isJSON(req.Header("Content-Type")) {
		return decodeJSONEntry(data)
	}
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return harvest.EntryInput{}, harvest.NewError(harvest.KindValidation, "invalid form payload", err)
	}
	return harvest.EntryForm{
		Name:       values.Get("name"),
		Kg:         values.Get("kg"),
		PricePerKg: values.Get("price_per_kg"),
	}.Parse()
}

func decodeJSONEntry(data []byte) (harvest.EntryInput, error) {
	var payload entryPayload
	decoder := json.NewDecoder(strings.NewReader(string(data)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&payload); err != nil {
		return harvest.EntryInput{}, harvest.NewError(harvest.KindValidation, "invalid request payload", err)
	}
	switch {
	case payload.Name == nil:
		return harvest.EntryInput{}, harvest.NewError(harvest.KindValidation, "name is required", nil)
	case payload.Kg == nil:
		return harvest.EntryInput{}, harvest.NewError(harvest.KindValidation, "kg is required", nil)
	case payload.PricePerKg == nil:
		return harvest.EntryInput{}, harvest.NewError(harvest.KindValidation, "price_per_kg is required", nil)
	}
	input := harvest.NormalizeEntryInput(harvest.EntryInput{
		Name:       *payload.Name,
		Kg:         *payload.Kg,
		PricePerKg: *payload.PricePerKg,
	})
	return input, harvest.ValidateEntryInput(input)
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// wantsHTML reports whether the caller is the browser page rather than an API client.
func wantsHTML(req Request) bool {
	if strings.Contains(req.Header("Accept"), "text/html") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(req.Header("Content-Type"))
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

func parseFilter(req Request) (harvest.ExportFilter, error) {
	filter := harvest.ExportFilter{
		State:    harvest.ExportState(req.Query("state")),
		Template: harvest.TemplateKind(req.Query("template")),
	}
	switch filter.State {
	case "", harvest.StateQueued, harvest.StateRunning, harvest.StateCompleted, harvest.StateFailed:
	default:
		return harvest.ExportFilter{}, harvest.NewError(harvest.KindValidation, "invalid state filter", nil)
	}
	switch filter.Template {
	case "", harvest.TemplateReceipt, harvest.TemplateSummary:
	default:
		return harvest.ExportFilter{}, harvest.NewError(harvest.KindValidation, "invalid template filter", nil)
	}
	if raw := req.Query("limit"); raw != "" {
		limit, err := parsePositiveInt(raw)
		if err != nil {
			return harvest.ExportFilter{}, harvest.NewError(harvest.KindValidation, "invalid limit", err)
		}
		filter.Limit = limit
	}
	return filter, nil
}
