// Package docdump renders a document's text content to a plain-text file,
// using the same headless application the PDF converter drives.
package docdump

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/doc-to-pdf-service/internal/command"
)

const sofficeBinary = "soffice"

// Dumper converts documents to plain text.
type Dumper struct {
	executor command.Executor
	log      *logger.Logger
}

// NewDumper creates a Dumper using the given command executor.
func NewDumper(executor command.Executor, log *logger.Logger) *Dumper {
	return &Dumper{
		executor: executor,
		log:      log,
	}
}

// Dump writes the text content of the document at sourcePath into outDir
// (the source's own directory when empty) and returns the path of the
// produced .txt file.
func (dumper *Dumper) Dump(ctx context.Context, sourcePath, outDir string) (string, error) {
	if outDir == "" {
		outDir = filepath.Dir(sourcePath)
	}

	mkdirErr := os.MkdirAll(outDir, 0o750)
	if mkdirErr != nil {
		return "", fmt.Errorf("could not create output directory %s: %w", outDir, mkdirErr)
	}

	profileDir, profileErr := os.MkdirTemp("", "soffice-profile-")
	if profileErr != nil {
		return "", fmt.Errorf("could not create application profile: %w", profileErr)
	}

	defer func() {
		_ = os.RemoveAll(profileDir)
	}()

	args := buildDumpArgs(profileDir, outDir, sourcePath)

	output, execErr := dumper.executor.RunCombined(ctx, sofficeBinary, args...)
	if execErr != nil {
		return "", fmt.Errorf(
			"soffice text dump failed: %w. Output: %s",
			execErr,
			strings.TrimSpace(string(output)),
		)
	}

	producedPath := producedTextPath(outDir, sourcePath)

	_, statErr := os.Stat(producedPath)
	if statErr != nil {
		return "", fmt.Errorf(
			"soffice reported success but %s was not produced: %w",
			producedPath,
			statErr,
		)
	}

	dumper.log.Info(
		"Dumped text of %s to %s",
		filepath.Base(sourcePath),
		filepath.Base(producedPath),
	)

	return producedPath, nil
}

// buildDumpArgs constructs the command-line arguments for a headless
// document-to-text conversion.
func buildDumpArgs(profileDir, outDir, sourcePath string) []string {
	return []string{
		"--headless", "--invisible",
		"--norestore", "--nolockcheck",
		"--nodefault", "--nofirststartwizard",
		"-env:UserInstallation=file://" + profileDir,
		"--convert-to", "txt:Text",
		"--outdir", outDir,
		sourcePath,
	}
}

// producedTextPath is where soffice places the converted file: the output
// directory, source base name, .txt extension.
func producedTextPath(outDir, sourcePath string) string {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))

	return filepath.Join(outDir, base+".txt")
}
