package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/book-expert/doc-to-pdf-service/internal/command"
)

// ErrApplicationUnavailable is returned by Probe when the external document
// application is not installed on the host. This is a fatal, non-retryable
// precondition for the whole run.
var ErrApplicationUnavailable = errors.New(
	"external document application is not installed",
)

// Automation is the programmatic control surface for the external document
// application. The converter never touches the concrete application directly;
// tests substitute fakes, including ones whose export never returns.
type Automation interface {
	// Probe verifies the application is installed and reachable.
	Probe(ctx context.Context) error
	// Launch starts a fresh, non-interactive application session with
	// clean state.
	Launch(ctx context.Context) (Session, error)
}

// Session is one running instance of the external application.
type Session interface {
	// Open obtains a read-only handle on the source document.
	Open(path string) (Document, error)
	// Quit shuts the session down. Best-effort: errors are swallowed.
	Quit()
}

// Document is an open document inside a session.
type Document interface {
	// ExportPDF renders the document as fixed-layout PDF at destPath. The
	// call blocks until the application finishes or hangs; it offers no
	// cooperative cancellation.
	ExportPDF(destPath string) error
	// Close releases the document handle. Best-effort: errors are
	// swallowed.
	Close()
}

const sofficeBinary = "soffice"

// pdfExportFilter selects LibreOffice's fixed-layout PDF export with the
// conversion policy baked in. The policy is fixed, not user-configurable:
// no structure tags, no bookmarks, document headers and footers kept,
// lossless print-quality images.
const pdfExportFilter = `pdf:writer_pdf_Export:{` +
	`"UseTaggedPDF":{"type":"boolean","value":"false"},` +
	`"ExportBookmarks":{"type":"boolean","value":"false"},` +
	`"UseLosslessCompression":{"type":"boolean","value":"true"},` +
	`"ReduceImageResolution":{"type":"boolean","value":"false"}}`

// LibreOffice drives a headless LibreOffice instance through its
// command-line automation interface.
type LibreOffice struct {
	executor command.Executor
	binary   string
}

// NewLibreOffice creates an Automation backed by the soffice binary.
func NewLibreOffice(executor command.Executor) *LibreOffice {
	return &LibreOffice{
		executor: executor,
		binary:   sofficeBinary,
	}
}

// Probe verifies the soffice binary is on the PATH.
func (app *LibreOffice) Probe(_ context.Context) error {
	_, lookErr := exec.LookPath(app.binary)
	if lookErr != nil {
		return fmt.Errorf("%w: %s not found on PATH", ErrApplicationUnavailable, app.binary)
	}

	return nil
}

// Launch creates a session with a private user profile directory, so every
// job's application state starts clean: no restore dialogs, no recent-files
// history, no leftover locks from a previous crash.
func (app *LibreOffice) Launch(_ context.Context) (Session, error) {
	profileDir, mkdirErr := os.MkdirTemp("", "soffice-profile-")
	if mkdirErr != nil {
		return nil, fmt.Errorf("could not create application profile: %w", mkdirErr)
	}

	return &libreSession{app: app, profileDir: profileDir}, nil
}

type libreSession struct {
	app        *LibreOffice
	profileDir string
}

// Open validates that the source document exists and is a regular file.
func (session *libreSession) Open(path string) (Document, error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return nil, fmt.Errorf("could not open document %s: %w", path, statErr)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory, not a document", path)
	}

	return &libreDocument{session: session, sourcePath: path}, nil
}

// Quit discards the session's private profile.
func (session *libreSession) Quit() {
	_ = os.RemoveAll(session.profileDir)
}

type libreDocument struct {
	session    *libreSession
	sourcePath string
}

// ExportPDF runs the blocking convert-to call and moves the produced file to
// destPath. Deliberately not context-aware: soffice offers no cooperative
// cancellation, so callers impose deadlines from outside and reap the
// process when it hangs.
func (document *libreDocument) ExportPDF(destPath string) error {
	outDir := filepath.Dir(destPath)
	args := buildSofficeArgs(document.session.profileDir, outDir, document.sourcePath)

	output, execErr := document.session.app.executor.RunBlocking(
		document.session.app.binary,
		args...)
	if execErr != nil {
		return fmt.Errorf(
			"soffice export failed: %w. Output: %s",
			execErr,
			strings.TrimSpace(string(output)),
		)
	}

	// soffice names its output after the source; rename when the caller
	// asked for a different base name.
	produced := producedPDFPath(outDir, document.sourcePath)
	if produced != destPath {
		renameErr := os.Rename(produced, destPath)
		if renameErr != nil {
			return fmt.Errorf(
				"could not move converted file to %s: %w",
				destPath,
				renameErr,
			)
		}
	}

	_, statErr := os.Stat(destPath)
	if statErr != nil {
		return fmt.Errorf(
			"soffice reported success but %s was not produced: %w",
			destPath,
			statErr,
		)
	}

	return nil
}

// Close is a no-op: the headless invocation holds no document handle between
// calls.
func (document *libreDocument) Close() {}

// buildSofficeArgs constructs the command-line arguments for a headless,
// non-interactive export.
func buildSofficeArgs(profileDir, outDir, sourcePath string) []string {
	return []string{
		"--headless", "--invisible", // never show a window
		"--norestore", "--nolockcheck", // suppress restore and lock dialogs
		"--nodefault", "--nofirststartwizard",
		"-env:UserInstallation=file://" + profileDir, // private, clean profile
		"--convert-to", pdfExportFilter,
		"--outdir", outDir,
		sourcePath,
	}
}

// producedPDFPath is where soffice places the converted file for a given
// source: the output directory, source base name, .pdf extension.
func producedPDFPath(outDir, sourcePath string) string {
	base := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))

	return filepath.Join(outDir, base+".pdf")
}
