package convert

import "time"

// Exported test-only accessors for unexported functions and fields.
// This file is compiled only during tests and does not affect the public API.

// NeedsSanitizingForTest exposes needsSanitizing for tests in external package.
func NeedsSanitizingForTest(path string) bool { return needsSanitizing(path) }

// SanitizeSourceForTest exposes sanitizeSource for tests in external package.
func SanitizeSourceForTest(path string) (SanitizedPath, error) {
	return sanitizeSource(path)
}

// SanitizeDestinationForTest exposes sanitizeDestination for tests in external
// package.
func SanitizeDestinationForTest(path string) (SanitizedPath, error) {
	return sanitizeDestination(path)
}

// RunBoundedForTest exposes runBounded for tests in external package.
func RunBoundedForTest(call func() error, limit time.Duration) (bool, error) {
	return runBounded(call, limit)
}

// IsNoMatchForTest exposes isNoMatch for tests in external package.
func IsNoMatchForTest(err error) bool { return isNoMatch(err) }

// BuildSofficeArgsForTest exposes buildSofficeArgs for tests in external
// package.
func BuildSofficeArgsForTest(profileDir, outDir, sourcePath string) []string {
	return buildSofficeArgs(profileDir, outDir, sourcePath)
}

// SetBinaryForTest points the automation at a different application binary.
func (app *LibreOffice) SetBinaryForTest(name string) { app.binary = name }

// ConfigForTest returns a copy of the converter configuration for assertions
// in tests.
func (converter *Converter) ConfigForTest() Options { return converter.config }

// Allow tests to inject a fake automation surface.
func (converter *Converter) SetAutomationForTest(automation Automation) {
	converter.automation = automation
}

// Allow tests to inject a fake reaper.
func (converter *Converter) SetReaperForTest(reaper ProcessReaper) {
	converter.reaper = reaper
}
