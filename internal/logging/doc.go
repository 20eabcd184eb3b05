// Package logging provides the SynapSense project logger.
//
// Every run logs human-readable text to the console at a level chosen by the
// logging mode, and structured JSON to a size-rotated file under
// <logs_root>/<mode>/. File names carry the logger name, experiment, mode,
// start time and a random salt so concurrent runs never share a file.
package logging
