package docparse

// newDocling builds the docling engine.
func newDocling() Engine {
	return &cliEngine{
		name:   "docling",
		binary: "docling",
		args: func(pdfPath, outDir string) []string {
			return []string{pdfPath, "--to", "md", "--output", outDir}
		},
	}
}
