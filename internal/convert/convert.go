// Package convert drives an external document application to render editable
// documents as fixed-layout PDF files. The application is treated as an
// opaque, occasionally-hanging black box: every conversion runs under a hard
// deadline, and a hung export is recovered by forcibly reaping the
// application's processes rather than by waiting for it to cooperate.
package convert

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/logger"
	"github.com/cheggaaa/pb/v3"

	"github.com/book-expert/doc-to-pdf-service/internal/command"
)

const (
	// DefaultTimeoutSeconds is the per-document export deadline applied when
	// a job does not specify one.
	DefaultTimeoutSeconds = 30

	defaultJobSettle  = time.Second
	defaultReapSettle = 2 * time.Second

	defaultDirMode = 0o750
)

// FailureKind classifies why a conversion did not produce a PDF. Callers
// branch on the kind, never on error message text.
type FailureKind int

const (
	// FailureNone marks a successful outcome.
	FailureNone FailureKind = iota
	// FailureTimeout means the export call did not finish within the
	// deadline and the application was reaped.
	FailureTimeout
	// FailureApplication means the external application reported an error
	// opening or exporting the document, or a filesystem step failed.
	FailureApplication
	// FailureUnknown is the defensive fallback for an export that failed
	// without reporting any reason.
	FailureUnknown
)

// Job describes one document to convert.
type Job struct {
	SourcePath     string
	DestPath       string
	TimeoutSeconds int
}

// Outcome is the terminal state of one conversion job.
type Outcome struct {
	Succeeded bool
	Kind      FailureKind
	Message   string
	// DestPath is the originally requested destination. Set only on success.
	DestPath string
}

// FailedJob pairs a source path with the reason its conversion failed.
type FailedJob struct {
	Path    string
	Message string
}

// Report aggregates the outcomes of a batch run. Every requested job appears
// in exactly one of Succeeded or Failed, in input order.
type Report struct {
	Succeeded []string
	Failed    []FailedJob
	Total     int
}

// Options holds all configurable parameters for a Converter.
type Options struct {
	ProgressBarOutput io.Writer
	// ProcessNames is the set of process names the reaper terminates.
	// Configurable because more than one application binary name may be
	// relevant on a given host.
	ProcessNames []string
	// JobSettle is the pause after each conversion attempt, giving the
	// operating system time to finish tearing the application down before
	// the next job starts.
	JobSettle time.Duration
	// ReapSettle is the pause after reaping, letting the OS release file
	// locks and handles before anything touches the same resources.
	ReapSettle time.Duration
}

// Converter converts documents to PDF, one at a time. The external
// application is a singleton, exclusive resource: only one conversion session
// may be open at any moment, so batches run strictly sequentially.
type Converter struct {
	automation Automation
	reaper     ProcessReaper
	log        *logger.Logger
	config     Options
}

// NewConverter creates a Converter with the given options and logger,
// driving a headless LibreOffice instance through the system executor.
func NewConverter(opts *Options, log *logger.Logger) *Converter {
	applyDefaultOptions(opts)

	executor := &command.System{}

	return &Converter{
		automation: NewLibreOffice(executor),
		reaper:     NewReaper(executor, opts.ProcessNames, opts.ReapSettle, log),
		log:        log,
		config:     *opts,
	}
}

// applyDefaultOptions fills zero-value fields in Options with sensible
// defaults.
func applyDefaultOptions(opts *Options) {
	if opts.ProgressBarOutput == nil {
		opts.ProgressBarOutput = os.Stdout
	}

	if len(opts.ProcessNames) == 0 {
		opts.ProcessNames = defaultProcessNames()
	}

	if opts.JobSettle <= 0 {
		opts.JobSettle = defaultJobSettle
	}

	if opts.ReapSettle <= 0 {
		opts.ReapSettle = defaultReapSettle
	}
}

// Probe verifies the external application precondition without converting
// anything.
func (converter *Converter) Probe(ctx context.Context) error {
	probeErr := converter.automation.Probe(ctx)
	if probeErr != nil {
		return fmt.Errorf("conversion precondition failed: %w", probeErr)
	}

	return nil
}

// Run converts jobs strictly in input order, one at a time, and aggregates
// per-job outcomes into a Report. A failed job never aborts the batch; the
// only error this returns is the missing-application precondition, detected
// before any job is attempted.
func (converter *Converter) Run(ctx context.Context, jobs []Job) (Report, error) {
	report := Report{
		Succeeded: nil,
		Failed:    nil,
		Total:     len(jobs),
	}

	probeErr := converter.Probe(ctx)
	if probeErr != nil {
		return report, probeErr
	}

	converter.log.Info("Starting batch conversion of %d document(s).", len(jobs))

	progressBar := pb.New(len(jobs)).
		SetTemplateString(`{{ bar . " " "━" "━" " " " "}} {{percent .}} {{rtime .}}`).
		SetWriter(converter.config.ProgressBarOutput).
		Start()
	defer progressBar.Finish()

	for index, job := range jobs {
		progressBar.Increment()

		// A previous job's worker may have left a zombie process behind;
		// reap before starting the next session on the same resource.
		if index > 0 {
			converter.reaper.KillAll(ctx)
		}

		converter.runOneJob(ctx, job, &report)
	}

	// Leave the system clean for whoever runs next.
	converter.reaper.KillAll(ctx)

	converter.log.Info(
		"Batch complete: %d succeeded, %d failed, %d total.",
		len(report.Succeeded),
		len(report.Failed),
		report.Total,
	)

	return report, nil
}

// runOneJob converts a single job and records its outcome into the report.
func (converter *Converter) runOneJob(ctx context.Context, job Job, report *Report) {
	converter.log.Info("Converting: %s", filepath.Base(job.SourcePath))

	outcome := converter.ConvertFile(ctx, job)
	if outcome.Succeeded {
		report.Succeeded = append(report.Succeeded, job.SourcePath)
		converter.log.Success(
			"Converted %s -> %s",
			filepath.Base(job.SourcePath),
			filepath.Base(outcome.DestPath),
		)

		return
	}

	report.Failed = append(report.Failed, FailedJob{
		Path:    job.SourcePath,
		Message: outcome.Message,
	})
	converter.log.Error(
		"Failed to convert %s: %s",
		filepath.Base(job.SourcePath),
		outcome.Message,
	)
}
