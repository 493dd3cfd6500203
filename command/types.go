package command

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-harvest/harvest"
)

// RecordEntry records one harvest entry.
type RecordEntry struct {
	Input  harvest.EntryInput
	Result *harvest.Entry
}

func (RecordEntry) Type() string { return "harvest:record" }

func (msg RecordEntry) Validate() error {
	if err := harvest.ValidateEntryInput(harvest.NormalizeEntryInput(msg.Input)); err != nil {
		return errors.New(harvest.AsGoError(err).Message, errors.CategoryValidation).
			WithTextCode("ENTRY_INVALID")
	}
	return nil
}

// ExportReceipt exports the receipt PDF of one entry.
type ExportReceipt struct {
	EntryID int64
	Result  *harvest.ExportResult
}

func (ExportReceipt) Type() string { return "harvest:export_receipt" }

func (msg ExportReceipt) Validate() error {
	if msg.EntryID <= 0 {
		return errors.New("entry ID is required", errors.CategoryValidation).
			WithTextCode("ENTRY_ID_REQUIRED")
	}
	return nil
}

// ExportSummary exports the summary of all entries. An empty format means PDF.
type ExportSummary struct {
	Format harvest.Format
	Result *harvest.ExportResult
}

func (ExportSummary) Type() string { return "harvest:export_summary" }

func (msg ExportSummary) Validate() error {
	switch msg.Format {
	case "", harvest.FormatPDF, harvest.FormatXLSX:
		return nil
	default:
		return errors.New("unsupported summary format", errors.CategoryValidation).
			WithTextCode("FORMAT_UNSUPPORTED")
	}
}
