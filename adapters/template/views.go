package harvesttemplate

import (
	"strconv"
	"time"

	"github.com/goliatone/go-harvest/harvest"
)

// PageData is the input for the application page.
type PageData struct {
	Entries           []harvest.Entry
	Totals            harvest.Totals
	History           []harvest.ExportRecord
	DefaultPricePerKg float64
	Error             string
	Notice            string
}

type receiptView struct {
	FarmName   string
	Title      string
	Subtitle   string
	Date       string
	Name       string
	Kg         string
	PricePerKg string
	Total      string
}

type rowView struct {
	ID         string
	Date       string
	Name       string
	Kg         string
	PricePerKg string
	Total      string
}

type summaryView struct {
	FarmName     string
	Title        string
	GeneratedOn  string
	Rows         []rowView
	TotalKg      string
	TotalPayment string
}

type historyView struct {
	ID           string
	Filename     string
	State        string
	StateLabel   string
	Error        string
	CreatedAt    string
	Downloadable bool
}

type pageView struct {
	FarmName     string
	Error        string
	Notice       string
	DefaultPrice string
	TotalKg      string
	TotalPayment string
	Rows         []rowView
	History      []historyView
}

func (r *Renderer) receiptView(entry harvest.Entry) receiptView {
	return receiptView{
		FarmName:   r.farmName,
		Title:      "Comprobante de Pago",
		Subtitle:   "Recolección de Café",
		Date:       entry.Date,
		Name:       entry.Name,
		Kg:         harvest.FormatKg(entry.Kg),
		PricePerKg: r.formatter.Price(entry.PricePerKg),
		Total:      r.formatter.Currency(entry.Total),
	}
}

func (r *Renderer) summaryView(payload harvest.SummaryPayload) summaryView {
	generatedAt := payload.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now()
	}
	return summaryView{
		FarmName:     r.farmName,
		Title:        "Reporte de Pagos - Recolección de Café",
		GeneratedOn:  r.formatter.LongDate(generatedAt),
		Rows:         r.rows(payload.Entries),
		TotalKg:      harvest.FormatKg(payload.Totals.Kg),
		TotalPayment: r.formatter.Currency(payload.Totals.Payment),
	}
}

func (r *Renderer) pageView(data PageData) pageView {
	view := pageView{
		FarmName:     r.farmName,
		Error:        data.Error,
		Notice:       data.Notice,
		DefaultPrice: strconv.FormatFloat(data.DefaultPricePerKg, 'f', -1, 64),
		TotalKg:      harvest.FormatKg(data.Totals.Kg),
		TotalPayment: r.formatter.Currency(data.Totals.Payment),
		Rows:         r.rows(data.Entries),
	}
	for _, record := range data.History {
		view.History = append(view.History, historyView{
			ID:           record.ID,
			Filename:     record.Filename,
			State:        string(record.State),
			StateLabel:   stateLabel(record.State),
			Error:        record.Error,
			CreatedAt:    r.formatter.Date(record.CreatedAt) + " " + record.CreatedAt.In(r.formatter.Location()).Format("15:04"),
			Downloadable: record.State == harvest.StateCompleted && record.DocumentKey != "",
		})
	}
	return view
}

func (r *Renderer) rows(entries []harvest.Entry) []rowView {
	rows := make([]rowView, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, rowView{
			ID:         strconv.FormatInt(entry.ID, 10),
			Date:       entry.Date,
			Name:       entry.Name,
			Kg:         harvest.FormatKg(entry.Kg),
			PricePerKg: r.formatter.Price(entry.PricePerKg),
			Total:      r.formatter.Currency(entry.Total),
		})
	}
	return rows
}

func stateLabel(state harvest.ExportState) string {
	switch state {
	case harvest.StateQueued:
		return "En cola"
	case harvest.StateRunning:
		return "Generando"
	case harvest.StateCompleted:
		return "Listo"
	case harvest.StateFailed:
		return "Falló"
	default:
		return string(state)
	}
}
