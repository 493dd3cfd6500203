package harvest

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func TestWriteSummaryWorkbook(t *testing.T) {
	entries := []Entry{
		{ID: 2, Name: "Luis", Kg: 20, PricePerKg: 4000, Total: 80000, Date: "15/03/2024"},
		{ID: 1, Name: "Ana", Kg: 10, PricePerKg: 3000, Total: 30000, Date: "15/03/2024"},
	}
	payload := SummaryPayload{Entries: entries, Totals: SumEntries(entries), GeneratedAt: time.Now()}

	var buf bytes.Buffer
	n, err := WriteSummaryWorkbook(&buf, "Reporte", payload)
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	if n == 0 || int64(buf.Len()) != n {
		t.Fatalf("expected byte count %d to match buffer %d", n, buf.Len())
	}

	file, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() {
		_ = file.Close()
	}()

	rows, err := file.GetRows(summarySheetName)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	// title, blank, header, two entries, totals
	if len(rows) != 6 {
		t.Fatalf("expected 6 rows, got %d: %v", len(rows), rows)
	}
	if rows[2][0] != "Fecha" || rows[3][1] != "Luis" {
		t.Fatalf("unexpected layout: %v", rows)
	}
	if rows[5][0] != "Totales" {
		t.Fatalf("expected totals row, got %v", rows[5])
	}
}

func TestWriteSummaryWorkbook_Empty(t *testing.T) {
	var buf bytes.Buffer
	if _, err := WriteSummaryWorkbook(&buf, "", SummaryPayload{}); err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	file, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer func() {
		_ = file.Close()
	}()
	rows, err := file.GetRows(summarySheetName)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected header and totals rows, got %v", rows)
	}
}
