// Package harvestpdf turns rendered harvest documents into single-page PDFs.
//
// A Pipeline renders the HTML for a request, mounts it on an off-screen
// Surface provided by a Host (headless Chromium by default), waits for the
// page to settle, captures the render root at 2x as PNG and places the image
// on one A4-width page whose height follows the capture's aspect ratio.
// The surface is released on every exit path.
package harvestpdf
