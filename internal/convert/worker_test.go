package convert_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/doc-to-pdf-service/internal/convert"
)

// fakeAutomation substitutes the external document application. Its export
// behavior is programmable per test, including never returning at all.
type fakeAutomation struct {
	mu        sync.Mutex
	probeErr  error
	launchErr error
	openErr   error
	exportFn  func(destPath string) error
	launches  int
	closes    int
	quits     int
}

func (f *fakeAutomation) Probe(_ context.Context) error { return f.probeErr }

func (f *fakeAutomation) Launch(_ context.Context) (convert.Session, error) {
	f.mu.Lock()
	f.launches++
	f.mu.Unlock()

	if f.launchErr != nil {
		return nil, f.launchErr
	}

	return &fakeSession{parent: f}, nil
}

func (f *fakeAutomation) launchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.launches
}

type fakeSession struct {
	parent *fakeAutomation
}

func (s *fakeSession) Open(_ string) (convert.Document, error) {
	if s.parent.openErr != nil {
		return nil, s.parent.openErr
	}

	return &fakeDocument{parent: s.parent}, nil
}

func (s *fakeSession) Quit() {
	s.parent.mu.Lock()
	s.parent.quits++
	s.parent.mu.Unlock()
}

type fakeDocument struct {
	parent *fakeAutomation
}

func (d *fakeDocument) ExportPDF(destPath string) error {
	if d.parent.exportFn != nil {
		return d.parent.exportFn(destPath)
	}

	return os.WriteFile(destPath, []byte("%PDF-1.4"), 0o600)
}

func (d *fakeDocument) Close() {
	d.parent.mu.Lock()
	d.parent.closes++
	d.parent.mu.Unlock()
}

// fakeReaper counts invocations instead of killing anything.
type fakeReaper struct {
	mu    sync.Mutex
	calls int
}

func (r *fakeReaper) KillAll(_ context.Context) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
}

func (r *fakeReaper) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.calls
}

// newTestConverter builds a converter with fakes injected and settle delays
// short enough for tests.
func newTestConverter(t *testing.T) (*convert.Converter, *fakeAutomation, *fakeReaper) {
	t.Helper()

	log, loggerErr := logger.New(t.TempDir(), "test.log")
	require.NoError(t, loggerErr)

	converter := convert.NewConverter(&convert.Options{
		ProgressBarOutput: io.Discard,
		ProcessNames:      nil,
		JobSettle:         time.Millisecond,
		ReapSettle:        time.Millisecond,
	}, log)

	automation := &fakeAutomation{}
	reaper := &fakeReaper{}
	converter.SetAutomationForTest(automation)
	converter.SetReaperForTest(reaper)

	return converter, automation, reaper
}

func TestConvertFile_Success(t *testing.T) {
	t.Parallel()

	converter, automation, _ := newTestConverter(t)
	destPath := filepath.Join(t.TempDir(), "out", "doc.pdf")

	outcome := converter.ConvertFile(context.Background(), convert.Job{
		SourcePath:     "report.docx",
		DestPath:       destPath,
		TimeoutSeconds: 5,
	})

	require.True(t, outcome.Succeeded)
	assert.Empty(t, outcome.Message)
	assert.Equal(t, convert.FailureNone, outcome.Kind)
	assert.Equal(t, destPath, outcome.DestPath)
	assert.FileExists(t, destPath)
	assert.Equal(t, 1, automation.launchCount())
}

func TestConvertFile_Timeout(t *testing.T) {
	t.Parallel()

	converter, automation, reaper := newTestConverter(t)
	automation.exportFn = func(_ string) error {
		select {} // never completes
	}

	started := time.Now()
	outcome := converter.ConvertFile(context.Background(), convert.Job{
		SourcePath:     "report.docx",
		DestPath:       filepath.Join(t.TempDir(), "doc.pdf"),
		TimeoutSeconds: 1,
	})
	elapsed := time.Since(started)

	require.False(t, outcome.Succeeded)
	assert.Equal(t, convert.FailureTimeout, outcome.Kind)
	assert.Equal(t, "conversion timed out after 1 seconds", outcome.Message)
	assert.Empty(t, outcome.DestPath)
	assert.Equal(t, 1, reaper.callCount())
	assert.Less(t, elapsed, 3*time.Second)
}

func TestConvertFile_ApplicationError(t *testing.T) {
	t.Parallel()

	converter, automation, reaper := newTestConverter(t)
	automation.exportFn = func(_ string) error {
		return errors.New("the document appears to be corrupt")
	}

	outcome := converter.ConvertFile(context.Background(), convert.Job{
		SourcePath:     "report.docx",
		DestPath:       filepath.Join(t.TempDir(), "doc.pdf"),
		TimeoutSeconds: 5,
	})

	require.False(t, outcome.Succeeded)
	assert.Equal(t, convert.FailureApplication, outcome.Kind)
	assert.Contains(t, outcome.Message, "corrupt")
	assert.Zero(t, reaper.callCount())
}

func TestConvertFile_UnknownFailure(t *testing.T) {
	t.Parallel()

	converter, automation, _ := newTestConverter(t)
	automation.exportFn = func(_ string) error {
		return errors.New("")
	}

	outcome := converter.ConvertFile(context.Background(), convert.Job{
		SourcePath:     "report.docx",
		DestPath:       filepath.Join(t.TempDir(), "doc.pdf"),
		TimeoutSeconds: 5,
	})

	require.False(t, outcome.Succeeded)
	assert.Equal(t, convert.FailureUnknown, outcome.Kind)
	assert.NotEmpty(t, outcome.Message)
}

func TestConvertFile_OpenFailure(t *testing.T) {
	t.Parallel()

	converter, automation, _ := newTestConverter(t)
	automation.openErr = errors.New("unsupported document format")

	outcome := converter.ConvertFile(context.Background(), convert.Job{
		SourcePath:     "report.docx",
		DestPath:       filepath.Join(t.TempDir(), "doc.pdf"),
		TimeoutSeconds: 5,
	})

	require.False(t, outcome.Succeeded)
	assert.Equal(t, convert.FailureApplication, outcome.Kind)
	assert.Contains(t, outcome.Message, "unsupported document format")
}

func TestConvertFile_CJKDestinationCopiesBack(t *testing.T) {
	t.Parallel()

	converter, automation, _ := newTestConverter(t)

	var exportedTo string

	automation.exportFn = func(destPath string) error {
		exportedTo = destPath

		return os.WriteFile(destPath, []byte("%PDF-1.4"), 0o600)
	}

	destPath := filepath.Join(t.TempDir(), "报告.pdf")

	outcome := converter.ConvertFile(context.Background(), convert.Job{
		SourcePath:     "report.docx",
		DestPath:       destPath,
		TimeoutSeconds: 5,
	})

	require.True(t, outcome.Succeeded)
	assert.Equal(t, destPath, outcome.DestPath)
	assert.FileExists(t, destPath)

	// The application itself only ever saw a sanitized path.
	assert.NotEqual(t, destPath, exportedTo)
	assert.False(t, convert.NeedsSanitizingForTest(exportedTo))

	// The temporary destination directory must be gone by now.
	assert.NoDirExists(t, filepath.Dir(exportedTo))
}
