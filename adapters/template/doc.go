// Package harvesttemplate renders receipts, summaries and the application
// page from pongo2 templates embedded in the binary.
//
// Document templates wrap their content in a fixed-width, opaque white
// #render-root container so the export pipeline can capture it without
// inheriting page styles. Output is autoescaped.
package harvesttemplate
