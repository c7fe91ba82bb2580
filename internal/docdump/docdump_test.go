package docdump_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/book-expert/doc-to-pdf-service/internal/docdump"
)

// fakeExec simulates soffice producing the converted text file.
type fakeExec struct {
	commands []string
	produce  bool
	err      error
}

func (f *fakeExec) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	return f.runAny(name, args)
}

func (f *fakeExec) RunCombined(
	_ context.Context,
	name string,
	args ...string,
) ([]byte, error) {
	return f.runAny(name, args)
}

func (f *fakeExec) RunBlocking(name string, args ...string) ([]byte, error) {
	return f.runAny(name, args)
}

func (f *fakeExec) runAny(name string, args []string) ([]byte, error) {
	f.commands = append(f.commands, name+" "+strings.Join(args, " "))

	if f.produce {
		outDir, source := findOutDirAndSource(args)
		base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))

		writeErr := os.WriteFile(
			filepath.Join(outDir, base+".txt"),
			[]byte("text body"),
			0o600,
		)
		if writeErr != nil {
			return nil, writeErr
		}
	}

	return nil, f.err
}

func findOutDirAndSource(args []string) (outDir, source string) {
	for index, arg := range args {
		if arg == "--outdir" && index+1 < len(args) {
			outDir = args[index+1]
		}
	}

	return outDir, args[len(args)-1]
}

func TestDump(t *testing.T) {
	t.Parallel()

	log, loggerErr := logger.New(t.TempDir(), "test.log")
	require.NoError(t, loggerErr)

	sourceDir := t.TempDir()
	sourcePath := filepath.Join(sourceDir, "report.docx")
	require.NoError(t, os.WriteFile(sourcePath, []byte("doc"), 0o600))

	dumper := docdump.NewDumper(&fakeExec{produce: true}, log)

	producedPath, err := dumper.Dump(context.Background(), sourcePath, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sourceDir, "report.txt"), producedPath)
	assert.FileExists(t, producedPath)
}

func TestDump_OutputNotProduced(t *testing.T) {
	t.Parallel()

	log, loggerErr := logger.New(t.TempDir(), "test.log")
	require.NoError(t, loggerErr)

	sourcePath := filepath.Join(t.TempDir(), "report.docx")
	require.NoError(t, os.WriteFile(sourcePath, []byte("doc"), 0o600))

	dumper := docdump.NewDumper(&fakeExec{produce: false}, log)

	_, err := dumper.Dump(context.Background(), sourcePath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "was not produced")
}

func TestDump_CommandFailure(t *testing.T) {
	t.Parallel()

	log, loggerErr := logger.New(t.TempDir(), "test.log")
	require.NoError(t, loggerErr)

	sourcePath := filepath.Join(t.TempDir(), "report.docx")
	require.NoError(t, os.WriteFile(sourcePath, []byte("doc"), 0o600))

	dumper := docdump.NewDumper(&fakeExec{err: os.ErrPermission}, log)

	_, err := dumper.Dump(context.Background(), sourcePath, t.TempDir())
	require.ErrorIs(t, err, os.ErrPermission)
}
