package docparse

import (
	"strconv"

	"github.com/pavelanni/examparser/internal/config"
)

// newMinerU builds the preferred deep-learning layout engine. MinerU
// preserves reading order across two-column exam layouts and emits
// tables and image placeholders depending on make_mode.
func newMinerU(opts config.MinerUOptions) Engine {
	return &cliEngine{
		name:   "mineru",
		binary: "mineru",
		args: func(pdfPath, outDir string) []string {
			args := []string{
				"-p", pdfPath,
				"-o", outDir,
				"-l", opts.Language,
				"-m", opts.ParseMethod,
				"-f", strconv.FormatBool(opts.FormulaEnable),
				"-t", strconv.FormatBool(opts.TableEnable),
			}
			if opts.MakeMode != "" {
				args = append(args, "--make-mode", opts.MakeMode)
			}
			return args
		},
	}
}
