package harvestpdf

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/goliatone/go-harvest/harvest"
)

// PageWidthMM is the A4 portrait width every page is laid out on.
const PageWidthMM = 210.0

const captureImageName = "capture"

// ComposeOptions sets document metadata on the composed PDF.
type ComposeOptions struct {
	Title        string
	CreationDate time.Time
}

// LayoutFor returns the page layout for a capture of w×h pixels.
// The page is 210mm wide and h×210/w mm tall.
func LayoutFor(width, height int) (harvest.PageLayout, error) {
	if width <= 0 || height <= 0 {
		return harvest.PageLayout{}, fmt.Errorf("invalid capture size %dx%d", width, height)
	}
	return harvest.PageLayout{
		CaptureWidth:  width,
		CaptureHeight: height,
		PageWidthMM:   PageWidthMM,
		PageHeightMM:  float64(height) * PageWidthMM / float64(width),
	}, nil
}

// Compose writes the capture onto a single page spanning the whole page.
func Compose(capture Capture, opts ComposeOptions) ([]byte, harvest.PageLayout, error) {
	layout, err := LayoutFor(capture.Width, capture.Height)
	if err != nil {
		return nil, harvest.PageLayout{}, err
	}
	if len(capture.PNG) == 0 {
		return nil, harvest.PageLayout{}, fmt.Errorf("empty capture")
	}

	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "mm",
		Size:           fpdf.SizeType{Wd: layout.PageWidthMM, Ht: layout.PageHeightMM},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if opts.Title != "" {
		pdf.SetTitle(opts.Title, true)
	}
	if !opts.CreationDate.IsZero() {
		pdf.SetCreationDate(opts.CreationDate)
	}
	pdf.AddPage()

	imageOpts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader(captureImageName, imageOpts, bytes.NewReader(capture.PNG))
	pdf.ImageOptions(captureImageName, 0, 0, layout.PageWidthMM, layout.PageHeightMM, false, imageOpts, 0, "")
	if err := pdf.Error(); err != nil {
		return nil, harvest.PageLayout{}, err
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, harvest.PageLayout{}, err
	}
	return buf.Bytes(), layout, nil
}
