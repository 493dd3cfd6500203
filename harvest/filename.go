package harvest

import (
	"bytes"
	"regexp"
	"strings"
	"text/template"
)

const (
	// DefaultReceiptFilename names single-entry receipts.
	DefaultReceiptFilename = "recibo-{{.Name}}-{{.Date}}"
	// DefaultSummaryFilename names aggregate reports.
	DefaultSummaryFilename = "reporte-recoleccion-{{.Date}}"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

type filenameData struct {
	Name string
	Date string
}

// Slug lowercases value and collapses whitespace runs into hyphens.
func Slug(value string) string {
	return whitespacePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), "-")
}

// DateSlug replaces date separators with hyphens.
func DateSlug(date string) string {
	return Slug(strings.ReplaceAll(date, "/", "-"))
}

// ReceiptFilename returns the receipt filename for entry, e.g.
// recibo-ana-lucía-15-03-2024.pdf.
func ReceiptFilename(pattern string, entry Entry, format Format) (string, error) {
	if pattern == "" {
		pattern = DefaultReceiptFilename
	}
	return renderFilename(pattern, filenameData{
		Name: Slug(entry.Name),
		Date: DateSlug(entry.Date),
	}, format)
}

// SummaryFilename returns the summary filename for the given date text.
func SummaryFilename(pattern string, date string, format Format) (string, error) {
	if pattern == "" {
		pattern = DefaultSummaryFilename
	}
	return renderFilename(pattern, filenameData{Date: DateSlug(date)}, format)
}

func renderFilename(pattern string, data filenameData, format Format) (string, error) {
	tmpl, err := template.New("filename").Parse(pattern)
	if err != nil {
		return "", NewError(KindValidation, "invalid filename pattern", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", NewError(KindValidation, "invalid filename pattern", err)
	}

	result := strings.TrimSpace(buf.String())
	if result == "" {
		return "", NewError(KindValidation, "empty filename", nil)
	}

	ext := string(format)
	if ext == "" {
		ext = string(FormatPDF)
	}
	if !strings.HasSuffix(strings.ToLower(result), "."+ext) {
		result = result + "." + ext
	}
	return result, nil
}
