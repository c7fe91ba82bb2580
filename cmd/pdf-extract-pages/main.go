// Command pdf-extract-pages extracts a selection of 1-based pages from a PDF
// into a new PDF.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/doc-to-pdf-service/internal/command"
	"github.com/book-expert/doc-to-pdf-service/internal/pagerange"
)

func main() {
	ctx := context.Background()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rangesFlag := flag.String(
		"ranges",
		"",
		"1-based page selection, for example 2-6 or 2-6,9,11-12 (required).",
	)
	outputFlag := flag.String(
		"o",
		"",
		"Output PDF path (default: input name with an _extract_ suffix).",
	)
	flag.Parse()

	if flag.NArg() != 1 {
		return errors.New("usage: pdf-extract-pages -ranges 2-6,9 [-o OUT] INPUT.pdf")
	}

	inputPath := flag.Arg(0)
	if !strings.EqualFold(filepath.Ext(inputPath), ".pdf") {
		return fmt.Errorf("input is not a PDF: %s", inputPath)
	}

	log, loggerErr := logger.New(os.TempDir(), "pdf-extract-pages.log")
	if loggerErr != nil {
		return fmt.Errorf("failed to create logger: %w", loggerErr)
	}

	defer func() {
		_ = log.Close()
	}()

	extractor := pagerange.NewExtractor(&command.System{}, log)

	totalPages, countErr := extractor.PageCount(ctx, inputPath)
	if countErr != nil {
		return fmt.Errorf("could not determine page count: %w", countErr)
	}

	pages, parseErr := pagerange.ParseRanges(*rangesFlag, totalPages)
	if parseErr != nil {
		return parseErr
	}

	outputPath := *outputFlag
	if outputPath == "" {
		outputPath = pagerange.DefaultOutputPath(inputPath, *rangesFlag)
	}

	extractErr := extractor.Extract(ctx, inputPath, outputPath, pages)
	if extractErr != nil {
		return fmt.Errorf("extraction failed: %w", extractErr)
	}

	fmt.Printf(
		"extracted %d/%d page(s) from %s -> %s\n",
		len(pages),
		totalPages,
		filepath.Base(inputPath),
		outputPath,
	)

	return nil
}
