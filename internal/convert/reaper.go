package convert

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/doc-to-pdf-service/internal/command"
)

// ProcessReaper forcibly terminates external application processes by name.
// Reaping is the only reliable cancellation mechanism available: the export
// call cannot be cancelled cooperatively, so a hung application is killed
// from outside its automation session.
type ProcessReaper interface {
	// KillAll terminates every matching process. It never fails; a name
	// that matches nothing is not an error.
	KillAll(ctx context.Context)
}

// defaultProcessNames returns the binary names a headless LibreOffice run
// can appear under in the process table.
func defaultProcessNames() []string {
	return []string{"soffice.bin", "soffice"}
}

// Reaper terminates processes through pkill. Termination is always safe and
// idempotent with respect to job correctness: a killed session simply yields
// a failure outcome for whichever job was using it.
type Reaper struct {
	executor command.Executor
	names    []string
	settle   time.Duration
	log      *logger.Logger
}

// NewReaper creates a Reaper for the given process-name set. The settle
// duration is the pause after reaping that lets the OS fully release file
// locks and handles before any subsequent operation touches the same
// resources.
func NewReaper(
	executor command.Executor,
	names []string,
	settle time.Duration,
	log *logger.Logger,
) *Reaper {
	return &Reaper{
		executor: executor,
		names:    names,
		settle:   settle,
		log:      log,
	}
}

// KillAll sends SIGKILL to every process matching the configured names, then
// waits out the settle delay. Any problem is logged and swallowed; the
// primary outcome of the job being cleaned up after must never be masked by
// a teardown error.
func (reaper *Reaper) KillAll(ctx context.Context) {
	for _, name := range reaper.names {
		output, killErr := reaper.executor.RunCombined(ctx, "pkill", "-9", "-x", name)
		if killErr != nil && !isNoMatch(killErr) {
			reaper.log.Warn(
				"Could not reap %s processes: %v. Output: %s",
				name,
				killErr,
				string(output),
			)
		}
	}

	time.Sleep(reaper.settle)
}

// isNoMatch reports whether a pkill error simply means no process matched.
// pkill exits with code 1 in that case.
func isNoMatch(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() == 1
	}

	return false
}
