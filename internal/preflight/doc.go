// Package preflight validates the environment before data-heavy operations.
//
// The package checks:
//   - Configuration validity
//   - Disk space under the data root (minimum 100MB)
//   - Write permissions for the data and log roots
//   - File descriptor limits (minimum 1024)
//   - A reader and writer registered for every modality
//
// Use the Checker type to run all validations (`synapsense doctor`):
//
//	checker := preflight.New()
//	results := checker.RunAll(ctx, cfg, registry)
//	if checker.HasCriticalFailures(results) {
//	    // Handle failures
//	}
//
// EnsureSpace guards single operations such as dataset downloads.
package preflight
