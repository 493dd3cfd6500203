package query

import (
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-harvest/harvest"
)

// ListEntries requests recorded entries, most recent first.
type ListEntries struct{}

func (ListEntries) Type() string { return "harvest:entries" }

func (ListEntries) Validate() error { return nil }

// HarvestTotals requests the running totals.
type HarvestTotals struct{}

func (HarvestTotals) Type() string { return "harvest:totals" }

func (HarvestTotals) Validate() error { return nil }

// ExportHistory requests export history.
type ExportHistory struct {
	Filter harvest.ExportFilter
}

func (ExportHistory) Type() string { return "harvest:exports" }

func (msg ExportHistory) Validate() error {
	if msg.Filter.Limit < 0 {
		return errors.New("limit must not be negative", errors.CategoryValidation).
			WithTextCode("LIMIT_INVALID")
	}
	return nil
}

// ExportStatus requests a single export record.
type ExportStatus struct {
	ExportID string
}

func (ExportStatus) Type() string { return "harvest:export_status" }

func (msg ExportStatus) Validate() error {
	if msg.ExportID == "" {
		return errors.New("export ID is required", errors.CategoryValidation).
			WithTextCode("EXPORT_ID_REQUIRED")
	}
	return nil
}
