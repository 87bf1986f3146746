// Package raster renders PDF pages to PNG images via MuPDF.
package raster

import (
	"bytes"
	"log/slog"
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"

	"github.com/pavelanni/examparser/internal/model"
)

// DefaultDPI is the rasterization resolution used when none is given.
const DefaultDPI = 200

var pdfHeader = []byte("%PDF-")

// Page is one rendered page.
type Page struct {
	Index int
	PNG   []byte
	MIME  string
}

// Document is a validated PDF ready for rasterization. Each traversal
// reopens the underlying file, so page sequences are restartable.
type Document struct {
	path string
	dpi  int

	pageCount int
}

// Open validates the file at path and returns a Document. It fails
// when the file is missing, lacks a PDF header, or has zero pages.
func Open(path string, dpi int) (*Document, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	if err := checkHeader(path); err != nil {
		return nil, err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return nil, model.WrapErr(model.KindInput, err, "open PDF %s", path)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n == 0 {
		return nil, model.Errf(model.KindInput, "PDF has zero pages: %s", path)
	}

	return &Document{path: path, dpi: dpi, pageCount: n}, nil
}

// PageCount returns the number of pages found at open time.
func (d *Document) PageCount() int { return d.pageCount }

// Path returns the underlying file path.
func (d *Document) Path() string { return d.path }

// Pages renders every page in order, invoking fn for each. Rendering
// stops at the first fn error.
func (d *Document) Pages(fn func(Page) error) error {
	doc, err := fitz.New(d.path)
	if err != nil {
		return model.WrapErr(model.KindInput, err, "reopen PDF %s", d.path)
	}
	defer doc.Close()

	for i := 0; i < doc.NumPage(); i++ {
		png, err := doc.ImagePNG(i, float64(d.dpi))
		if err != nil {
			return model.WrapErr(model.KindInput, err, "render page %d of %s", i, d.path)
		}
		if err := fn(Page{Index: i, PNG: png, MIME: "image/png"}); err != nil {
			return err
		}
	}
	return nil
}

// Text extracts the plain text of every page, joined with page breaks.
// Pages that fail extraction are skipped with a warning; an error is
// returned only when no page yields text.
func (d *Document) Text() (string, error) {
	doc, err := fitz.New(d.path)
	if err != nil {
		return "", model.WrapErr(model.KindInput, err, "reopen PDF %s", d.path)
	}
	defer doc.Close()

	var sb strings.Builder
	extracted := 0
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			slog.Warn("page text extraction failed", "path", d.path, "page", i, "error", err)
			continue
		}
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString(text)
		extracted++
	}
	if extracted == 0 {
		return "", model.Errf(model.KindParserRuntime, "no page of %s yielded text", d.path)
	}
	return sb.String(), nil
}

// PageCount reports the page count of the PDF at path without keeping
// the document open.
func PageCount(path string) (int, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, model.WrapErr(model.KindInput, err, "open PDF %s", path)
	}
	defer doc.Close()
	return doc.NumPage(), nil
}

// IsPDF reports whether data begins with the PDF magic header.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfHeader)
}

func checkHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return model.WrapErr(model.KindInput, err, "open %s", path)
	}
	defer f.Close()

	head := make([]byte, len(pdfHeader))
	if _, err := f.Read(head); err != nil {
		return model.Errf(model.KindInput, "not a PDF file: %s", path)
	}
	if !IsPDF(head) {
		return model.Errf(model.KindInput, "not a PDF file (missing %%PDF- header): %s", path)
	}
	return nil
}
