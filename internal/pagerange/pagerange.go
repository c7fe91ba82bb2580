// Package pagerange extracts a selection of pages from a PDF into a new PDF.
package pagerange

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/book-expert/logger"

	"github.com/book-expert/doc-to-pdf-service/internal/command"
)

var (
	// ErrEmptyRanges is returned when no page ranges were provided.
	ErrEmptyRanges = errors.New("page ranges are required, for example 2-6 or 2-6,9,11-12")
	// ErrNoPages is returned when a PDF reports zero pages.
	ErrNoPages = errors.New("pdf has no pages")
)

// Extractor reads page counts and extracts page selections using the
// pdfinfo and ghostscript tools.
type Extractor struct {
	executor command.Executor
	log      *logger.Logger
}

// NewExtractor creates an Extractor using the given command executor.
func NewExtractor(executor command.Executor, log *logger.Logger) *Extractor {
	return &Extractor{
		executor: executor,
		log:      log,
	}
}

// PageCount executes the `pdfinfo` command to determine the number of pages
// in a PDF.
func (extractor *Extractor) PageCount(ctx context.Context, pdfPath string) (int, error) {
	if pdfPath == "" {
		return 0, errors.New("pdf path cannot be empty")
	}

	outputBytes, execErr := extractor.executor.Run(ctx, "pdfinfo", pdfPath)
	if execErr != nil {
		return 0, fmt.Errorf(
			"pdfinfo execution failed: %w. Output: %s",
			execErr,
			string(outputBytes),
		)
	}

	return parsePdfInfoOutput(string(outputBytes))
}

// parsePdfInfoOutput scans the text output from the `pdfinfo` command to find
// and parse the page count.
func parsePdfInfoOutput(output string) (int, error) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "Pages:") {
			parts := strings.Fields(line) // e.g., ["Pages:", "123"]
			if len(parts) >= 2 {
				pageCount, convErr := strconv.Atoi(parts[1])
				if convErr == nil {
					return pageCount, nil
				}
			}
		}
	}

	return 0, errors.New("could not parse 'Pages:' line from pdfinfo output")
}

// Extract writes the selected 1-based pages of inputPath into a new PDF at
// outputPath, creating parent directories as needed.
func (extractor *Extractor) Extract(
	ctx context.Context,
	inputPath, outputPath string,
	pages []int,
) error {
	if len(pages) == 0 {
		return ErrEmptyRanges
	}

	mkdirErr := os.MkdirAll(filepath.Dir(outputPath), 0o750)
	if mkdirErr != nil {
		return fmt.Errorf(
			"failed to create output directory for %s: %w",
			outputPath,
			mkdirErr,
		)
	}

	args := buildExtractArgs(outputPath, pages, inputPath)

	outputBytes, execErr := extractor.executor.RunCombined(ctx, "ghostscript", args...)
	if execErr != nil {
		return fmt.Errorf(
			"ghostscript execution failed: %w. Output: %s",
			execErr,
			string(outputBytes),
		)
	}

	extractor.log.Info(
		"Extracted %d page(s) from %s into %s",
		len(pages),
		filepath.Base(inputPath),
		filepath.Base(outputPath),
	)

	return nil
}

// buildExtractArgs constructs the Ghostscript arguments for writing a page
// selection into a new PDF.
func buildExtractArgs(outputPath string, pages []int, inputPath string) []string {
	return []string{
		"-q", "-dNOPAUSE", "-dBATCH", // Quiet mode, non-interactive batch processing.
		"-sDEVICE=pdfwrite",            // Write the selection out as PDF.
		"-sPageList=" + pageList(pages), // The 1-based pages to keep.
		"-o", outputPath,
		inputPath,
	}
}

// pageList renders pages as the comma-separated list Ghostscript expects.
func pageList(pages []int) string {
	parts := make([]string, len(pages))
	for index, page := range pages {
		parts[index] = strconv.Itoa(page)
	}

	return strings.Join(parts, ",")
}

// ParseRanges parses a specification like "2-6,9,11-12" into a sorted,
// unique list of 1-based page numbers, validated against totalPages.
func ParseRanges(spec string, totalPages int) ([]int, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, ErrEmptyRanges
	}

	if totalPages <= 0 {
		return nil, ErrNoPages
	}

	pageSet := make(map[int]bool)

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		parseErr := addPart(pageSet, part, totalPages)
		if parseErr != nil {
			return nil, parseErr
		}
	}

	if len(pageSet) == 0 {
		return nil, ErrEmptyRanges
	}

	pages := make([]int, 0, len(pageSet))
	for page := range pageSet {
		pages = append(pages, page)
	}

	sort.Ints(pages)

	return pages, nil
}

// addPart parses a single "N" or "N-M" element into the page set.
func addPart(pageSet map[int]bool, part string, totalPages int) error {
	start, end, parseErr := parseBounds(part)
	if parseErr != nil {
		return parseErr
	}

	for page := start; page <= end; page++ {
		if page < 1 || page > totalPages {
			return fmt.Errorf(
				"page %d out of range: document has %d pages",
				page,
				totalPages,
			)
		}

		pageSet[page] = true
	}

	return nil
}

// parseBounds resolves a range element into its inclusive bounds.
func parseBounds(part string) (start, end int, err error) {
	if before, after, found := strings.Cut(part, "-"); found {
		start, err = strconv.Atoi(strings.TrimSpace(before))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range %q", part)
		}

		end, err = strconv.Atoi(strings.TrimSpace(after))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range %q", part)
		}

		if start > end {
			return 0, 0, fmt.Errorf("range %q is reversed", part)
		}

		return start, end, nil
	}

	start, err = strconv.Atoi(part)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid page number %q", part)
	}

	return start, start, nil
}

// DefaultOutputPath derives the output name for a page extraction: the input
// name with an _extract_ suffix describing the selection.
func DefaultOutputPath(inputPath, spec string) string {
	safeSpec := strings.ReplaceAll(strings.ReplaceAll(spec, " ", ""), ",", "_")
	stem := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))

	return filepath.Join(
		filepath.Dir(inputPath),
		fmt.Sprintf("%s_extract_%s.pdf", stem, safeSpec),
	)
}
