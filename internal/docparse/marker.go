package docparse

// newMarker builds the marker engine, a fallback layout parser with
// good table reconstruction but weaker Korean OCR than mineru.
func newMarker() Engine {
	return &cliEngine{
		name:   "marker",
		binary: "marker_single",
		args: func(pdfPath, outDir string) []string {
			return []string{pdfPath, "--output_dir", outDir, "--output_format", "markdown"}
		},
	}
}
