package convert

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode"

	"github.com/google/uuid"
)

// maxSafePathLength is the longest path the external application's automation
// interface is trusted to consume. Deliberately conservative.
const maxSafePathLength = 200

// SanitizedPath is a filesystem path guaranteed safe for the external
// application: pure ASCII and bounded length. When Temporary is true the path
// lives inside Dir, a directory owned exclusively by the current job and
// removed during its cleanup.
type SanitizedPath struct {
	Path      string
	Temporary bool
	Dir       string
}

// needsSanitizing reports whether a path must be replaced with a temporary
// copy before the external application may consume it. CJK characters and
// over-long paths both break the automation interface on some hosts.
func needsSanitizing(path string) bool {
	if len(path) > maxSafePathLength {
		return true
	}

	for _, char := range path {
		if unicode.Is(unicode.Han, char) {
			return true
		}
	}

	return false
}

// sanitizeSource prepares a source path for the external application. When
// the path is unsafe the file is copied into a fresh temporary directory
// under an ASCII-only name; the original file is never touched.
func sanitizeSource(path string) (SanitizedPath, error) {
	if !needsSanitizing(path) {
		return SanitizedPath{Path: path, Temporary: false, Dir: ""}, nil
	}

	tempDir, safePath, tempErr := newTempLocation(filepath.Ext(path))
	if tempErr != nil {
		return SanitizedPath{}, tempErr
	}

	copyErr := copyFile(path, safePath)
	if copyErr != nil {
		_ = os.RemoveAll(tempDir)

		return SanitizedPath{}, fmt.Errorf(
			"could not stage %s into a temporary location: %w",
			path,
			copyErr,
		)
	}

	return SanitizedPath{Path: safePath, Temporary: true, Dir: tempDir}, nil
}

// sanitizeDestination prepares a destination path for the external
// application. When the path is unsafe a temporary output location is
// reserved instead; copying the result back to the real destination is the
// caller's responsibility.
func sanitizeDestination(path string) (SanitizedPath, error) {
	if !needsSanitizing(path) {
		return SanitizedPath{Path: path, Temporary: false, Dir: ""}, nil
	}

	tempDir, safePath, tempErr := newTempLocation(filepath.Ext(path))
	if tempErr != nil {
		return SanitizedPath{}, tempErr
	}

	return SanitizedPath{Path: safePath, Temporary: true, Dir: tempDir}, nil
}

// newTempLocation creates a fresh temporary directory and derives an
// ASCII-only file path inside it. The uuid in the name guarantees uniqueness
// even for sanitizations happening in the same instant.
func newTempLocation(extension string) (tempDir, safePath string, err error) {
	tempDir, mkdirErr := os.MkdirTemp("", "doc-convert-")
	if mkdirErr != nil {
		return "", "", fmt.Errorf("could not create temporary directory: %w", mkdirErr)
	}

	safeName := "doc-" + uuid.NewString() + extension

	return tempDir, filepath.Join(tempDir, safeName), nil
}

// copyFile copies the file at sourcePath to destPath, creating destination
// parent directories as needed.
func copyFile(sourcePath, destPath string) error {
	mkdirErr := os.MkdirAll(filepath.Dir(destPath), defaultDirMode)
	if mkdirErr != nil {
		return fmt.Errorf(
			"could not create directory for %s: %w",
			destPath,
			mkdirErr,
		)
	}

	source, openErr := os.Open(sourcePath)
	if openErr != nil {
		return fmt.Errorf("could not open %s: %w", sourcePath, openErr)
	}

	defer func() {
		_ = source.Close()
	}()

	dest, createErr := os.Create(destPath)
	if createErr != nil {
		return fmt.Errorf("could not create %s: %w", destPath, createErr)
	}

	_, copyErr := io.Copy(dest, source)
	if copyErr != nil {
		_ = dest.Close()

		return fmt.Errorf("could not copy %s to %s: %w", sourcePath, destPath, copyErr)
	}

	closeErr := dest.Close()
	if closeErr != nil {
		return fmt.Errorf("could not finish writing %s: %w", destPath, closeErr)
	}

	return nil
}
