package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ConvertFile converts exactly one document under a hard wall-clock deadline.
// Whatever the outcome, the external application is terminated or closed and
// every temporary directory the job created is gone by the time this
// returns, except that a temporary destination survives just long enough for
// its content to be copied to the real destination on success.
func (converter *Converter) ConvertFile(ctx context.Context, job Job) Outcome {
	timeoutSeconds := job.TimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = DefaultTimeoutSeconds
	}

	source, sourceErr := sanitizeSource(job.SourcePath)
	if sourceErr != nil {
		return applicationFailure(sourceErr.Error())
	}

	defer func() {
		if source.Temporary {
			_ = os.RemoveAll(source.Dir)
		}

		// Give the operating system time to finish tearing the external
		// process down before the caller proceeds to the next job.
		time.Sleep(converter.config.JobSettle)
	}()

	dest, destErr := sanitizeDestination(job.DestPath)
	if destErr != nil {
		return applicationFailure(destErr.Error())
	}

	outcome := converter.exportWithDeadline(ctx, source.Path, dest.Path, timeoutSeconds)

	if outcome.Succeeded {
		outcome = finalizeDestination(outcome, dest, job.DestPath)
	}

	if dest.Temporary {
		// On success the content has been copied out by now; on failure
		// nothing of value was produced. Either way the directory goes.
		_ = os.RemoveAll(dest.Dir)
	}

	return outcome
}

// finalizeDestination copies a temporary destination back to the originally
// requested path. A copy-back failure downgrades the outcome: the PDF exists
// only in a directory about to be deleted.
func finalizeDestination(outcome Outcome, dest SanitizedPath, requestedPath string) Outcome {
	if dest.Temporary {
		copyErr := copyFile(dest.Path, requestedPath)
		if copyErr != nil {
			return applicationFailure(fmt.Sprintf(
				"converted, but could not deliver result to %s: %v",
				requestedPath,
				copyErr,
			))
		}
	}

	outcome.DestPath = requestedPath

	return outcome
}

// exportWithDeadline opens the document and runs the export call on an
// auxiliary goroutine with a hard deadline. A hung export is abandoned and
// the application reaped; correctness never depends on the abandoned call
// finishing.
func (converter *Converter) exportWithDeadline(
	ctx context.Context,
	sourcePath, destPath string,
	timeoutSeconds int,
) Outcome {
	session, launchErr := converter.automation.Launch(ctx)
	if launchErr != nil {
		return applicationFailure(
			fmt.Sprintf("could not start document application: %v", launchErr),
		)
	}

	document, openErr := session.Open(sourcePath)
	if openErr != nil {
		session.Quit()

		return applicationFailure(openErr.Error())
	}

	mkdirErr := os.MkdirAll(filepath.Dir(destPath), defaultDirMode)
	if mkdirErr != nil {
		document.Close()
		session.Quit()

		return applicationFailure(
			fmt.Sprintf("could not create destination directory: %v", mkdirErr),
		)
	}

	timedOut, exportErr := runBounded(func() error {
		return document.ExportPDF(destPath)
	}, time.Duration(timeoutSeconds)*time.Second)

	if timedOut {
		// Polite shutdown first, ignoring any error; these calls may
		// themselves fail against a hung application.
		document.Close()
		session.Quit()

		// A hung export leaves the process unresponsive to polite
		// shutdown. Reap it by name.
		converter.reaper.KillAll(ctx)

		return Outcome{
			Succeeded: false,
			Kind:      FailureTimeout,
			Message: fmt.Sprintf(
				"conversion timed out after %d seconds",
				timeoutSeconds,
			),
			DestPath: "",
		}
	}

	document.Close()
	session.Quit()

	if exportErr != nil {
		if exportErr.Error() == "" {
			return Outcome{
				Succeeded: false,
				Kind:      FailureUnknown,
				Message:   "conversion failed for an unknown reason",
				DestPath:  "",
			}
		}

		return applicationFailure(exportErr.Error())
	}

	return Outcome{Succeeded: true, Kind: FailureNone, Message: "", DestPath: ""}
}

// applicationFailure builds a failed outcome carrying the application's or
// filesystem's reported error verbatim.
func applicationFailure(message string) Outcome {
	return Outcome{
		Succeeded: false,
		Kind:      FailureApplication,
		Message:   message,
		DestPath:  "",
	}
}
