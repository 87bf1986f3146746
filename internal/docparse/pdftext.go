package docparse

import (
	"context"
	"sync"

	"github.com/pavelanni/examparser/internal/model"
	"github.com/pavelanni/examparser/internal/raster"
)

// pdfText is the in-process fallback engine: MuPDF text extraction with
// no layout analysis. Reading order can break on two-column pages, so
// it ranks last in the catalog.
type pdfText struct {
	mu  sync.Mutex
	doc *raster.Document
}

func newPDFText() Engine { return &pdfText{} }

func (e *pdfText) Name() string { return "pdftext" }

// Available is always true: extraction needs no external binary.
func (e *pdfText) Available() bool { return true }

func (e *pdfText) SetPDFPath(path string) error {
	doc, err := raster.Open(path, raster.DefaultDPI)
	if err != nil {
		return err
	}
	e.mu.Lock()
	e.doc = doc
	e.mu.Unlock()
	return nil
}

func (e *pdfText) ExtractFromPDF(_ context.Context) (string, error) {
	e.mu.Lock()
	doc := e.doc
	e.mu.Unlock()
	if doc == nil {
		return "", model.Errf(model.KindInput, "pdftext: no PDF path set")
	}
	return doc.Text()
}
