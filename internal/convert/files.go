package convert

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// documentExtensions are the editable document types the converter accepts.
var documentExtensions = map[string]bool{
	".doc":  true,
	".docx": true,
	".odt":  true,
	".rtf":  true,
}

// DiscoverDocuments finds all convertible documents in a given directory.
// It performs a case-insensitive extension match, does not recurse into
// subdirectories, and skips the ~$ lock files office applications leave
// next to open documents.
func DiscoverDocuments(dirPath string) ([]string, error) {
	dirEntries, readErr := os.ReadDir(dirPath)
	if readErr != nil {
		return nil, fmt.Errorf("could not read directory %s: %w", dirPath, readErr)
	}

	var documentPaths []string

	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}

		if strings.HasPrefix(entry.Name(), "~$") {
			continue
		}

		extension := strings.ToLower(filepath.Ext(entry.Name()))
		if documentExtensions[extension] {
			documentPaths = append(documentPaths, filepath.Join(dirPath, entry.Name()))
		}
	}

	return documentPaths, nil
}

// DefaultDestPath derives the destination for a source document: same base
// name, .pdf extension, placed next to the source unless an output directory
// is given.
func DefaultDestPath(sourcePath, outputDir string) string {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))

	dir := outputDir
	if dir == "" {
		dir = filepath.Dir(sourcePath)
	}

	return filepath.Join(dir, base+".pdf")
}
