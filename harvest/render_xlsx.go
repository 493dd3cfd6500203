package harvest

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheetName = "Recolección"
	kgNumberFormat   = "0.00"
	pesoNumberFormat = `"$" #,##0`
)

var summaryHeaders = []string{"Fecha", "Nombre", "Kg", "Precio/Kg", "Total"}

// WriteSummaryWorkbook writes the summary as a single-sheet XLSX workbook
// and returns the number of bytes written.
func WriteSummaryWorkbook(w io.Writer, title string, payload SummaryPayload) (int64, error) {
	file := excelize.NewFile()
	defer func() {
		_ = file.Close()
	}()

	defaultSheet := file.GetSheetName(0)
	if defaultSheet != summarySheetName {
		file.SetSheetName(defaultSheet, summarySheetName)
	}

	styles, err := buildSummaryStyles(file)
	if err != nil {
		return 0, err
	}

	stream, err := file.NewStreamWriter(summarySheetName)
	if err != nil {
		return 0, err
	}

	rowIndex := 1
	if title != "" {
		if err := stream.SetRow("A1", []interface{}{excelize.Cell{StyleID: styles.headerID, Value: title}}); err != nil {
			return 0, err
		}
		rowIndex = 3
	}

	headers := make([]interface{}, len(summaryHeaders))
	for i, label := range summaryHeaders {
		headers[i] = excelize.Cell{StyleID: styles.headerID, Value: label}
	}
	if err := stream.SetRow(fmt.Sprintf("A%d", rowIndex), headers); err != nil {
		return 0, err
	}
	rowIndex++

	for _, entry := range payload.Entries {
		cells := []interface{}{
			excelize.Cell{Value: entry.Date},
			excelize.Cell{Value: entry.Name},
			excelize.Cell{StyleID: styles.kgID, Value: entry.Kg},
			excelize.Cell{StyleID: styles.pesoID, Value: entry.PricePerKg},
			excelize.Cell{StyleID: styles.pesoID, Value: entry.Total},
		}
		if err := stream.SetRow(fmt.Sprintf("A%d", rowIndex), cells); err != nil {
			return 0, err
		}
		rowIndex++
	}

	totals := []interface{}{
		excelize.Cell{StyleID: styles.headerID, Value: "Totales"},
		excelize.Cell{},
		excelize.Cell{StyleID: styles.kgID, Value: payload.Totals.Kg},
		excelize.Cell{},
		excelize.Cell{StyleID: styles.pesoID, Value: payload.Totals.Payment},
	}
	if err := stream.SetRow(fmt.Sprintf("A%d", rowIndex), totals); err != nil {
		return 0, err
	}

	if err := stream.Flush(); err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w}
	if _, err := file.WriteTo(cw); err != nil {
		return cw.count, err
	}
	return cw.count, nil
}

type summaryStyles struct {
	headerID int
	kgID     int
	pesoID   int
}

func buildSummaryStyles(file *excelize.File) (summaryStyles, error) {
	headerID, err := file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return summaryStyles{}, err
	}
	kgFormat := kgNumberFormat
	kgID, err := file.NewStyle(&excelize.Style{CustomNumFmt: &kgFormat})
	if err != nil {
		return summaryStyles{}, err
	}
	pesoFormat := pesoNumberFormat
	pesoID, err := file.NewStyle(&excelize.Style{CustomNumFmt: &pesoFormat})
	if err != nil {
		return summaryStyles{}, err
	}
	return summaryStyles{headerID: headerID, kgID: kgID, pesoID: pesoID}, nil
}

type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}
