package pagerange

// Exported test-only accessors for unexported functions.

// ParsePdfInfoOutputForTest exposes parsePdfInfoOutput for tests in external
// package.
func ParsePdfInfoOutputForTest(s string) (int, error) { return parsePdfInfoOutput(s) }

// BuildExtractArgsForTest exposes buildExtractArgs for tests in external
// package.
func BuildExtractArgsForTest(outputPath string, pages []int, inputPath string) []string {
	return buildExtractArgs(outputPath, pages, inputPath)
}
