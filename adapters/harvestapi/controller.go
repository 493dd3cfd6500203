package harvestapi

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	errorslib "github.com/goliatone/go-errors"
	harvesttemplate "github.com/goliatone/go-harvest/adapters/template"
	"github.com/goliatone/go-harvest/harvest"
)

const (
	DefaultPricePerKg   = 3000
	DefaultHistoryLimit = 10
)

// PageRenderer renders the application page.
type PageRenderer interface {
	RenderPage(w io.Writer, data harvesttemplate.PageData) error
}

// Config configures the shared harvest controller.
type Config struct {
	Service           harvest.Service
	Pages             PageRenderer
	Logger            harvest.Logger
	DefaultPricePerKg float64
	HistoryLimit      int
}

// Controller serves the harvest page, API and document downloads for
// multiple transports.
type Controller struct {
	service      harvest.Service
	pages        PageRenderer
	logger       harvest.Logger
	defaultPrice float64
	historyLimit int
}

// NewController creates a shared harvest controller.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = harvest.NopLogger{}
	}
	price := cfg.DefaultPricePerKg
	if price <= 0 {
		price = DefaultPricePerKg
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &Controller{
		service:      cfg.Service,
		pages:        cfg.Pages,
		logger:       logger,
		defaultPrice: price,
		historyLimit: limit,
	}
}

// Serve routes harvest endpoints.
func (c *Controller) Serve(req Request, res Response) {
	if res == nil {
		return
	}
	if c == nil || c.service == nil {
		WriteError(res, harvest.NewError(harvest.KindInternal, "handler is nil", nil))
		return
	}
	if req == nil {
		WriteError(res, harvest.NewError(harvest.KindInternal, "request is nil", nil))
		return
	}

	trimmed := strings.Trim(req.Path(), "/")
	parts := []string{}
	if trimmed != "" {
		parts = strings.Split(trimmed, "/")
	}

	switch {
	case len(parts) == 0:
		c.only(req, res, http.MethodGet, c.handlePage)
	case len(parts) == 1 && parts[0] == "entries":
		c.only(req, res, http.MethodPost, c.handleRecord)
	case len(parts) == 3 && parts[0] == "entries" && parts[2] == "receipt":
		c.only(req, res, http.MethodGet, func(req Request, res Response) {
			c.handleReceipt(req, res, parts[1])
		})
	case len(parts) == 1 && parts[0] == "summary":
		c.only(req, res, http.MethodGet, func(req Request, res Response) {
			c.handleSummary(req, res, harvest.Format(req.Query("format")))
		})
	case len(parts) == 1 && parts[0] == "summary.pdf":
		c.only(req, res, http.MethodGet, func(req Request, res Response) {
			c.handleSummary(req, res, harvest.FormatPDF)
		})
	case len(parts) == 1 && parts[0] == "summary.xlsx":
		c.only(req, res, http.MethodGet, func(req Request, res Response) {
			c.handleSummary(req, res, harvest.FormatXLSX)
		})
	case len(parts) == 2 && parts[0] == "api" && parts[1] == "entries":
		c.only(req, res, http.MethodGet, c.handleEntries)
	case len(parts) == 2 && parts[0] == "api" && parts[1] == "totals":
		c.only(req, res, http.MethodGet, c.handleTotals)
	case len(parts) == 1 && parts[0] == "exports":
		c.only(req, res, http.MethodGet, c.handleHistory)
	case len(parts) == 2 && parts[0] == "exports":
		c.only(req, res, http.MethodGet, func(req Request, res Response) {
			c.handleStatus(req, res, parts[1])
		})
	case len(parts) == 3 && parts[0] == "exports" && parts[2] == "download":
		c.only(req, res, http.MethodGet, func(req Request, res Response) {
			c.handleDownload(req, res, parts[1])
		})
	default:
		writeNotFound(res)
	}
}

func (c *Controller) only(req Request, res Response, method string, handle func(Request, Response)) {
	if req.Method() != method && !(method == http.MethodGet && req.Method() == http.MethodHead) {
		res.SetHeader("Allow", method)
		WriteError(res, harvest.NewError(harvest.KindValidation, "method not allowed", nil), http.StatusMethodNotAllowed)
		return
	}
	handle(req, res)
}

func (c *Controller) handlePage(req Request, res Response) {
	if c.pages == nil {
		WriteError(res, harvest.NewError(harvest.KindNotImpl, "page renderer not configured", nil))
		return
	}
	ctx := req.Context()
	history, err := c.service.History(ctx, harvest.ExportFilter{Limit: c.historyLimit})
	if err != nil {
		c.logger.Errorf("load export history: %v", err)
	}

	var buf bytes.Buffer
	err = c.pages.RenderPage(&buf, harvesttemplate.PageData{
		Entries:           c.service.Entries(ctx),
		Totals:            c.service.Totals(ctx),
		History:           history,
		DefaultPricePerKg: c.defaultPrice,
		Error:             req.Query("error"),
		Notice:            req.Query("notice"),
	})
	if err != nil {
		WriteError(res, err)
		return
	}
	res.SetHeader("Content-Type", "text/html; charset=utf-8")
	res.SetHeader("Cache-Control", "no-store")
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(buf.Bytes()); err != nil {
		c.logger.Errorf("write page: %v", err)
	}
}

func (c *Controller) handleRecord(req Request, res Response) {
	html := wantsHTML(req)
	input, err := DecodeEntry(req)
	if err == nil {
		var entry harvest.Entry
		entry, err = c.service.RecordEntry(req.Context(), input)
		if err == nil {
			if html {
				c.redirectHome(res, "notice", "Registro guardado para "+entry.Name)
				return
			}
			writeJSON(res, http.StatusCreated, entry)
			return
		}
	}
	c.fail(req, res, html, err)
}

func (c *Controller) handleReceipt(req Request, res Response, rawID string) {
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		c.fail(req, res, wantsHTML(req), harvest.NewError(harvest.KindValidation, "invalid entry ID", err))
		return
	}
	result, err := c.service.ExportReceipt(req.Context(), id)
	if err != nil {
		c.fail(req, res, wantsHTML(req), err)
		return
	}
	c.writeDocument(res, result.Record.ID, result.Document)
}

func (c *Controller) handleSummary(req Request, res Response, format harvest.Format) {
	result, err := c.service.ExportSummary(req.Context(), format)
	if err != nil {
		c.fail(req, res, wantsHTML(req), err)
		return
	}
	c.writeDocument(res, result.Record.ID, result.Document)
}

func (c *Controller) handleEntries(req Request, res Response) {
	ctx := req.Context()
	writeJSON(res, http.StatusOK, EntriesResponse{
		Entries: c.service.Entries(ctx),
		Totals:  c.service.Totals(ctx),
	})
}

func (c *Controller) handleTotals(req Request, res Response) {
	writeJSON(res, http.StatusOK, c.service.Totals(req.Context()))
}

func (c *Controller) handleHistory(req Request, res Response) {
	filter, err := parseFilter(req)
	if err != nil {
		WriteError(res, err)
		return
	}
	records, err := c.service.History(req.Context(), filter)
	if err != nil {
		WriteError(res, err)
		return
	}
	if records == nil {
		records = []harvest.ExportRecord{}
	}
	writeJSON(res, http.StatusOK, ExportsResponse{Exports: records})
}

func (c *Controller) handleStatus(req Request, res Response, exportID string) {
	record, err := c.service.Status(req.Context(), exportID)
	if err != nil {
		WriteError(res, err)
		return
	}
	writeJSON(res, http.StatusOK, record)
}

func (c *Controller) handleDownload(req Request, res Response, exportID string) {
	download, err := c.service.Download(req.Context(), exportID)
	if err != nil {
		c.fail(req, res, wantsHTML(req), err)
		return
	}
	defer download.Reader.Close()

	filename := sanitizeFilename(download.Meta.Filename)
	setDownloadHeaders(res, download.Record.ID, filename, download.Meta.ContentType)
	if download.Meta.Size > 0 {
		res.SetHeader("Content-Length", strconv.FormatInt(download.Meta.Size, 10))
	}

	if writer, ok := res.Writer(); ok {
		res.WriteHeader(http.StatusOK)
		if _, err := io.Copy(writer, download.Reader); err != nil {
			c.logger.Errorf("download copy failed: %v", err)
		}
		return
	}

	data, err := io.ReadAll(download.Reader)
	if err != nil {
		WriteError(res, err)
		return
	}
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(data); err != nil {
		c.logger.Errorf("download write failed: %v", err)
	}
}

func (c *Controller) writeDocument(res Response, exportID string, doc harvest.Document) {
	setDownloadHeaders(res, exportID, sanitizeFilename(doc.Filename), doc.ContentType)
	res.SetHeader("Content-Length", strconv.Itoa(len(doc.Data)))
	res.WriteHeader(http.StatusOK)
	if _, err := res.Write(doc.Data); err != nil {
		c.logger.Errorf("document write failed: %v", err)
	}
}

// fail reports err as a page banner for browser callers and as JSON otherwise.
func (c *Controller) fail(req Request, res Response, html bool, err error) {
	if !html {
		WriteError(res, err)
		return
	}
	c.logger.Debugf("%s %s: %v", req.Method(), req.Path(), err)
	c.redirectHome(res, "error", harvest.AsGoError(err).Message)
}

func (c *Controller) redirectHome(res Response, key, message string) {
	location := "/?" + url.Values{key: []string{message}}.Encode()
	if err := res.Redirect(location, http.StatusSeeOther); err != nil {
		c.logger.Errorf("redirect failed: %v", err)
	}
}

func writeNotFound(res Response) {
	WriteError(res, harvest.NewError(harvest.KindNotFound, "not found", nil))
}

// WriteError writes err as a JSON error body. An explicit status overrides
// the one derived from the error category.
func WriteError(res Response, err error, status ...int) {
	if err == nil {
		res.WriteHeader(http.StatusNoContent)
		return
	}
	ge := harvest.AsGoError(err)
	code := statusForError(ge)
	if len(status) > 0 && status[0] > 0 {
		code = status[0]
	}
	writeJSON(res, code, ErrorResponse{
		Error: ErrorBody{
			Message: ge.Message,
			Code:    ge.TextCode,
		},
	})
}

func writeJSON(res Response, status int, payload any) {
	_ = res.WriteJSON(status, payload)
}

func statusForError(err *errorslib.Error) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	if err.TextCode == "not_implemented" {
		return http.StatusNotImplemented
	}
	switch err.Category {
	case errorslib.CategoryValidation:
		return http.StatusBadRequest
	case errorslib.CategoryNotFound:
		return http.StatusNotFound
	case errorslib.CategoryOperation:
		switch err.TextCode {
		case "canceled":
			return http.StatusConflict
		case "timeout":
			return http.StatusGatewayTimeout
		default:
			return http.StatusInternalServerError
		}
	default:
		return http.StatusInternalServerError
	}
}

func sanitizeFilename(filename string) string {
	name := strings.TrimSpace(filename)
	name = strings.ReplaceAll(name, "\"", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	if name == "" {
		return "documento"
	}
	return name
}

func setDownloadHeaders(res Response, exportID, filename, contentType string) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	res.SetHeader("Content-Type", contentType)
	res.SetHeader("Content-Disposition", contentDisposition(filename))
	if exportID != "" {
		res.SetHeader("X-Export-Id", exportID)
	}
}

// contentDisposition keeps an ASCII fallback and the UTF-8 name for names
// such as "recibo-ana-lucía-15-03-2024.pdf".
func contentDisposition(filename string) string {
	ascii := strings.Map(func(r rune) rune {
		if r > 126 || r < 32 {
			return '_'
		}
		return r
	}, filename)
	if ascii == filename {
		return fmt.Sprintf("attachment; filename=\"%s\"", filename)
	}
	return fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", ascii, url.PathEscape(filename))
}

func parsePositiveInt(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("negative value %d", value)
	}
	return value, nil
}
