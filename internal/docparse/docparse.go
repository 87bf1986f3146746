// Package docparse converts exam PDFs to structured Markdown through
// pluggable document parser engines.
package docparse

import (
	"context"
	"sort"

	"github.com/pavelanni/examparser/internal/config"
	"github.com/pavelanni/examparser/internal/model"
)

// Engine is one document parser variant. SetPDFPath must be called
// before ExtractFromPDF; engines may be reused across documents.
type Engine interface {
	Name() string
	SetPDFPath(path string) error
	ExtractFromPDF(ctx context.Context) (string, error)
	Available() bool
}

// Info describes an engine for listing endpoints.
type Info struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// New constructs the engine named by the model spec's parser half.
func New(name string, settings *config.Settings) (Engine, error) {
	switch name {
	case "mineru":
		return newMinerU(settings.MinerU), nil
	case "marker":
		return newMarker(), nil
	case "docling":
		return newDocling(), nil
	case "pdftext":
		return newPDFText(), nil
	default:
		return nil, model.Errf(model.KindConfig, "unknown document parser %q", name)
	}
}

// List reports every engine and whether it can run on this host.
func List(settings *config.Settings) []Info {
	engines := []Engine{
		newMinerU(settings.MinerU),
		newMarker(),
		newDocling(),
		newPDFText(),
	}
	infos := make([]Info, 0, len(engines))
	for _, e := range engines {
		infos = append(infos, Info{Name: e.Name(), Available: e.Available()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}
