// Command doc-to-pdf converts editable documents to PDF from the command
// line, one at a time, under a per-document deadline.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"

	"github.com/book-expert/doc-to-pdf-service/internal/convert"
)

// Define named types for each section of the configuration.
type configPaths struct {
	OutputDir string `toml:"output_dir"`
}

type configLogsDir struct {
	DocToPDF string `toml:"doc_to_pdf"`
}

type configSettings struct {
	TimeoutSeconds int      `toml:"timeout_seconds"`
	ProcessNames   []string `toml:"process_names"`
}

// config represents the structure of the project.toml file.
type config struct {
	Paths    configPaths    `toml:"paths"`
	LogsDir  configLogsDir  `toml:"logs_dir"`
	Settings configSettings `toml:"settings"`
}

func main() {
	ctx := context.Background()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main logic function, separated from main to allow for easier
// testing and clean exit handling.
func run(ctx context.Context) error {
	projectRoot, configPath, err := configurator.FindProjectRoot(".")
	if err != nil {
		return fmt.Errorf("could not find project root: %w", err)
	}

	cfg, err := safeLoadConfig(configPath)
	if err != nil {
		return err
	}

	flgs := parseFlags()

	jobs, err := assembleJobs(flgs, &cfg)
	if err != nil {
		return err
	}

	return convertWithLogger(ctx, jobs, &cfg, projectRoot)
}

// safeLoadConfig loads the TOML config, allowing missing file without error.
func safeLoadConfig(path string) (config, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			var emptyCfg config

			return emptyCfg, nil
		}

		return config{}, fmt.Errorf("error loading config file: %w", err)
	}

	return cfg, nil
}

// loadConfig reads and parses the project.toml file.
func loadConfig(path string) (config, error) {
	var cfg config

	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		var zero config

		return zero, fmt.Errorf("failed to decode config file: %w", err)
	}

	return cfg, nil
}

// flags represents the command-line arguments.
type flags struct {
	inputDir       string
	outputDir      string
	timeoutSeconds int
	sources        []string
}

// parseFlags defines and parses command-line flags. Positional arguments are
// the documents to convert.
func parseFlags() flags {
	var flagsVar flags
	flag.StringVar(
		&flagsVar.inputDir,
		"dir",
		"",
		"Convert every document found in this directory (non-recursive).",
	)
	flag.StringVar(
		&flagsVar.outputDir,
		"outdir",
		"",
		"Destination directory (default: alongside each source).",
	)
	flag.IntVar(
		&flagsVar.timeoutSeconds,
		"timeout",
		0,
		"Per-document conversion deadline in seconds.",
	)
	flag.Parse()

	flagsVar.sources = flag.Args()

	return flagsVar
}

// assembleJobs resolves the flag and config inputs into the ordered job list.
// Flags take precedence over the config file settings.
func assembleJobs(flgs flags, cfg *config) ([]convert.Job, error) {
	sources := flgs.sources

	if flgs.inputDir != "" {
		discovered, discoverErr := convert.DiscoverDocuments(flgs.inputDir)
		if discoverErr != nil {
			return nil, fmt.Errorf("could not discover documents: %w", discoverErr)
		}

		sources = append(sources, discovered...)
	}

	if len(sources) == 0 {
		return nil, errors.New(
			"no documents to convert: pass source files or use -dir",
		)
	}

	outputDir := cfg.Paths.OutputDir
	if flgs.outputDir != "" {
		outputDir = flgs.outputDir
	}

	timeoutSeconds := cfg.Settings.TimeoutSeconds
	if flgs.timeoutSeconds > 0 {
		timeoutSeconds = flgs.timeoutSeconds
	}

	jobs := make([]convert.Job, len(sources))
	for index, sourcePath := range sources {
		jobs[index] = convert.Job{
			SourcePath:     sourcePath,
			DestPath:       convert.DefaultDestPath(sourcePath, outputDir),
			TimeoutSeconds: timeoutSeconds,
		}
	}

	return jobs, nil
}

// convertWithLogger sets up the logger and runs the batch.
func convertWithLogger(
	ctx context.Context,
	jobs []convert.Job,
	cfg *config,
	projectRoot string,
) error {
	log, err := setupLogger(projectRoot, cfg.LogsDir.DocToPDF)
	if err != nil {
		return fmt.Errorf("could not set up logger: %w", err)
	}

	defer func() {
		cerr := log.Close()
		if cerr != nil {
			_, _ = fmt.Fprintf(
				os.Stderr,
				"failed to close logger: %v\n",
				cerr,
			)
		}
	}()

	converter := convert.NewConverter(&convert.Options{
		ProgressBarOutput: os.Stdout,
		ProcessNames:      cfg.Settings.ProcessNames,
		JobSettle:         0,
		ReapSettle:        0,
	}, log)

	report, runErr := converter.Run(ctx, jobs)
	if runErr != nil {
		return fmt.Errorf("batch conversion failed: %w", runErr)
	}

	printReport(report)

	if len(report.Failed) > 0 {
		return fmt.Errorf("%d of %d conversions failed", len(report.Failed), report.Total)
	}

	return nil
}

// printReport writes the per-job outcomes and aggregate counts to stdout.
func printReport(report convert.Report) {
	for _, path := range report.Succeeded {
		fmt.Printf("converted: %s\n", path)
	}

	for _, failed := range report.Failed {
		fmt.Printf("failed:    %s (%s)\n", failed.Path, failed.Message)
	}

	fmt.Printf(
		"\n%d succeeded, %d failed, %d total\n",
		len(report.Succeeded),
		len(report.Failed),
		report.Total,
	)
}

// setupLogger initializes the logger, creating the log directory if needed.
func setupLogger(projectRoot, logDirConfig string) (*logger.Logger, error) {
	logDir := logDirConfig
	if logDir == "" {
		logDir = filepath.Join(projectRoot, "logs", "doc_to_pdf")
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("20060102_150405"))

	log, err := logger.New(logDir, logFileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}
