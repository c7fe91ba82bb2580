// Command doc-dump-text renders the text content of one or more documents to
// plain-text files, via the same headless application the PDF converter uses.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/book-expert/logger"

	"github.com/book-expert/doc-to-pdf-service/internal/command"
	"github.com/book-expert/doc-to-pdf-service/internal/docdump"
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
	outdirFlag := flag.String(
		"outdir",
		"",
		"Destination directory (default: alongside each source).",
	)
	flag.Parse()

	if flag.NArg() == 0 {
		return errors.New("usage: doc-dump-text [-outdir DIR] SOURCE...")
	}

	log, loggerErr := logger.New(os.TempDir(), "doc-dump-text.log")
	if loggerErr != nil {
		return fmt.Errorf("failed to create logger: %w", loggerErr)
	}

	defer func() {
		_ = log.Close()
	}()

	dumper := docdump.NewDumper(&command.System{}, log)

	var failed int

	for _, sourcePath := range flag.Args() {
		producedPath, dumpErr := dumper.Dump(ctx, sourcePath, *outdirFlag)
		if dumpErr != nil {
			failed++

			fmt.Printf("failed:  %s (%v)\n", sourcePath, dumpErr)

			continue
		}

		fmt.Printf("dumped:  %s -> %s\n", sourcePath, filepath.Base(producedPath))
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d dumps failed", failed, flag.NArg())
	}

	return nil
}
