// Package rasterize turns an uploaded slide deck into a PDF and one PNG per
// page using LibreOffice (soffice) and poppler-utils (pdfinfo, pdftoppm).
//
// Converter.Convert produces the PDF and reports its page count; a deck
// with zero pages is an input error. Converter.Rasterize renders every
// page and returns the images ordered by page number.
package rasterize
